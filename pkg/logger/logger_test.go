// SPDX-FileCopyrightText: Copyright 2026 Yapidoo
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingletonCapturesStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	old := Get()
	Set(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { Set(old) })

	Infow("token rejected", "kind", "expired", "subject", "svc-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "token rejected", entry["msg"])
	assert.Equal(t, "expired", entry["kind"])
	assert.Equal(t, "svc-1", entry["subject"])
}

func TestPrintfHelpersFormat(t *testing.T) {
	var buf bytes.Buffer
	old := Get()
	Set(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { Set(old) })

	Warnf("refresh failed after %d attempts", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "refresh failed after 3 attempts", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
}
