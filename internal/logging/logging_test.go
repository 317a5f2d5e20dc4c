package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strata/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, config.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
	log.Warn().Str("op", "x").Msg("kept")
	assert.Contains(t, buf.String(), `"op":"x"`)
	assert.Contains(t, buf.String(), `"time"`)
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, config.LogConfig{Format: "console"})
	require.NoError(t, err)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), "{")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, config.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}
