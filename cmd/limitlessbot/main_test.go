package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitlessbot/internal/config"
)

func TestLogOutput_StderrOnly(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogFile = ""
	out, closer := logOutput(&cfg)
	assert.Nil(t, closer)
	assert.Equal(t, io.Writer(os.Stderr), out)
}

func TestLogOutput_WritesRotatingFile(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogFile = filepath.Join(t.TempDir(), "bot.log")

	out, closer := logOutput(&cfg)
	require.NotNil(t, closer)
	newLogger(out, "json", slog.LevelInfo).Info("hello from test")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello from test"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("anything"))
}
