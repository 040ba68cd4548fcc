package logging

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Standard field names shared by every layer.
const (
	FieldLayer    = "layer"
	FieldUseCase  = "usecase"
	FieldAdapter  = "adapter"
	FieldAction   = "action"
	FieldEvent    = "event"
	FieldHandler  = "handler"
	FieldDuration = "duration"
	FieldDomain   = "domain"
	FieldStage    = "stage"
	FieldPath     = "path"
	FieldService  = "service"
	FieldRunID    = "run_id"
)

var defaultLogger atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(zerolog.InfoLevel).With().Timestamp().Logger()
	defaultLogger.Store(&l)
}

// Default returns the process-wide fallback logger.
func Default() zerolog.Logger {
	return *defaultLogger.Load()
}

// SetDefault replaces the fallback logger.
func SetDefault(l zerolog.Logger) {
	defaultLogger.Store(&l)
}

// WithCtx attaches l to ctx.
func WithCtx(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// FromCtx returns the logger carried by ctx, or the default logger.
func FromCtx(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return Default()
}

// CtxWithFields returns a context whose logger carries the extra fields.
func CtxWithFields(ctx context.Context, fields map[string]any) context.Context {
	l := FromCtx(ctx).With().Fields(fields).Logger()
	return l.WithContext(ctx)
}

// WrapErr logs err at error level and returns it wrapped with msg.
func WrapErr(l zerolog.Logger, err error, msg string) error {
	l.Error().Err(err).Msg(msg)
	return fmt.Errorf("%s: %w", msg, err)
}
