package sse

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arnac-io/paygate/pkg/pusher/errors"
)

func Test_writeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "bad request",
			err:      errors.BadRequest("test"),
			wantCode: 400,
			wantBody: `{"error":"test"}`,
		},
		{
			name:     "wrapped not found",
			err:      fmt.Errorf("subscribe: %w", errors.NotFound("invoice not found")),
			wantCode: 404,
			wantBody: `{"error":"invoice not found"}`,
		},
		{
			name:     "internal server error",
			err:      fmt.Errorf("some-err"),
			wantCode: 500,
			wantBody: `{"error":"some-err"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)
			require.Equal(t, tt.wantCode, rec.Code)
			require.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}
