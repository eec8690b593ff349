// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

package authz

import (
	"encoding/json"
	"fmt"
	"os"
)

// ConfigType represents the type of authorization configuration.
type ConfigType string

const (
	// ConfigTypeScopesV1 represents the declarative scope/claim policy
	// configuration format.
	ConfigTypeScopesV1 ConfigType = "scopesv1"
)

// Config represents the on-disk authorization configuration.
type Config struct {
	// Version is the version of the configuration format.
	Version string `json:"version"`

	// Type is the type of authorization configuration.
	Type ConfigType `json:"type"`

	// Policies is the list of named policies.
	Policies []Policy `json:"policies"`
}

// LoadConfig loads the authorization configuration from a file.
//
//nolint:gosec // This is intentionally loading a file specified by the user
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read authorization configuration file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse authorization configuration file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the authorization configuration.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}

	switch c.Type {
	case ConfigTypeScopesV1:
		if len(c.Policies) == 0 {
			return fmt.Errorf("at least one policy is required for type %s", c.Type)
		}
		for i := range c.Policies {
			if err := c.Policies[i].Validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported configuration type: %s", c.Type)
	}

	return nil
}

// Registry builds the immutable policy registry from the configuration.
func (c *Config) Registry() (*Registry, error) {
	return NewRegistry(c.Policies...)
}

// RegistryFromFile loads the configuration from a file and builds the
// policy registry in one step.
func RegistryFromFile(path string) (*Registry, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return config.Registry()
}
