package api

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

var ErrRateLimit = errors.New("rate limit")

// ErrorStatusCode is an error response.
// Body is written as is when set, otherwise the error is rendered as {"error": "..."}.
type ErrorStatusCode struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Err        error
}

func (e *ErrorStatusCode) Error() string {
	return fmt.Sprintf("code %d: %v", e.StatusCode, e.Err)
}

func (e *ErrorStatusCode) Unwrap() error {
	return e.Err
}

func toError(code int, err error) *ErrorStatusCode {
	return &ErrorStatusCode{StatusCode: code, Err: err}
}

func errorBody(msg string) []byte {
	return encode(func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("error")
		e.Str(msg)
		e.ObjEnd()
	})
}

func writeError(w http.ResponseWriter, err error) {
	var statusErr *ErrorStatusCode
	if !errors.As(err, &statusErr) {
		statusErr = toError(http.StatusInternalServerError, err)
		if errors.Is(err, ErrRateLimit) {
			statusErr.StatusCode = http.StatusTooManyRequests
		}
	}
	body := statusErr.Body
	if body == nil {
		body = errorBody(statusErr.Err.Error())
	}
	for key, values := range statusErr.Header {
		w.Header()[key] = values
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(statusErr.StatusCode)
	w.Write(body)
}

func writeJSON(w http.ResponseWriter, code int, fn func(e *jx.Encoder)) {
	body := encode(fn)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
