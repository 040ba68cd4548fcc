package logging

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug().Str("k", "v").Msg("hello")

	assert.Contains(t, buf.String(), `"message":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Config{Level: "loud", Format: "json"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestNew_FileEnabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "localroute.log")

	var buf bytes.Buffer
	logger, closer, err := New(Config{
		Level:  "info",
		Format: "json",
		File:   FileConfig{Enabled: true, Path: path, MaxSize: 1, MaxBackups: 1, MaxAge: 1},
	}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("to file")
	require.NoError(t, closer.Close())

	assert.FileExists(t, path)
	assert.Contains(t, buf.String(), "to file")
}

func TestNew_FileEnabledWithoutPath(t *testing.T) {
	_, _, err := New(Config{File: FileConfig{Enabled: true}}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestCtxWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := WithCtx(context.Background(), base)

	ctx = CtxWithFields(ctx, map[string]any{
		FieldLayer:   "usecase",
		FieldUseCase: "Render",
	})
	log := FromCtx(ctx)
	log.Info().Msg("rendered")

	assert.Contains(t, buf.String(), `"layer":"usecase"`)
	assert.Contains(t, buf.String(), `"usecase":"Render"`)
}

func TestFromCtx_FallsBackToDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	SetDefault(zerolog.New(&buf))
	t.Cleanup(func() { SetDefault(prev) })

	log := FromCtx(context.Background())
	log.Info().Msg("fallback")

	assert.Contains(t, buf.String(), "fallback")
}

func TestWrapErr(t *testing.T) {
	var buf bytes.Buffer
	cause := errors.New("boom")

	err := WrapErr(zerolog.New(&buf), cause, "failed to write")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to write: boom", err.Error())
	assert.Contains(t, buf.String(), `"error":"boom"`)
}
