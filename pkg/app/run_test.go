package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func TestShutdown(t *testing.T) {
	var order []string
	errFirst := errors.New("first")
	errThird := errors.New("third")
	err := Shutdown(zap.NewNop(),
		func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			require.True(t, ok)
			order = append(order, "first")
			return errFirst
		},
		Closer(func() error {
			order = append(order, "second")
			return nil
		}),
		Closer(func() error {
			order = append(order, "third")
			return errThird
		}),
	)
	require.Equal(t, []string{"first", "second", "third"}, order)
	require.Equal(t, []error{errFirst, errThird}, multierr.Errors(err))
	require.ErrorIs(t, err, errThird)
}

func TestLogger(t *testing.T) {
	require.NotNil(t, Logger("DEBUG"))
	require.Panics(t, func() { Logger("LOUD") })
}
