package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, Warn)

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "WARN")
}

func TestNamedSharesWriter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, Debug)
	l.Name = "polrecon"

	l.Named("traversal").Debug("leaf")

	assert.Contains(t, buf.String(), "[polrecon/traversal] leaf")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, Debug)
	l.JSON = true
	l.Named("metadata").Info("version %s", "1.4.22")

	var entry logEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "metadata", entry.Component)
	assert.Equal(t, "version 1.4.22", entry.Message)
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("nothing")
		l.Named("x").Warn("nothing")
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{"debug": Debug, "INFO": Info, "": Info, "warning": Warn, "error": Error}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
