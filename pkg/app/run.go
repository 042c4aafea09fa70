package app

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	shutdownTimeout = time.Second * 5
)

func Logger(level string) *zap.Logger {

	cfg := zap.NewProductionConfig()

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		panic(err)
	}
	cfg.Level.SetLevel(lvl)

	lg, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	return lg
}

// ShutdownFn stops a component, ctx bounds the time it has.
type ShutdownFn func(ctx context.Context) error

// Shutdown stops the components in the given order and collects all their errors.
func Shutdown(logger *zap.Logger, fns ...ShutdownFn) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	for _, fn := range fns {
		err = multierr.Append(err, fn(ctx))
	}
	for _, e := range multierr.Errors(err) {
		logger.Warn("shutdown failed", zap.Error(e))
	}
	return err
}

// Closer adapts io.Closer-like functions to ShutdownFn.
func Closer(close func() error) ShutdownFn {
	return func(ctx context.Context) error {
		return close()
	}
}
