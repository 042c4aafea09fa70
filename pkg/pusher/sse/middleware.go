package sse

import (
	"errors"
	"net/http"

	"github.com/go-faster/jx"

	httperrors "github.com/arnac-io/paygate/pkg/pusher/errors"
	"github.com/arnac-io/paygate/pkg/pusher/metrics"
)

func writeError(writer http.ResponseWriter, err error) {
	var httpErr httperrors.HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = httperrors.InternalServerError(err.Error())
	}
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.Str(httpErr.Message)
	e.ObjEnd()
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(httpErr.Code)
	writer.Write(e.Bytes())
}

// Stream turns a handler into an http.HandlerFunc serving text/event-stream.
func (h *Handler) Stream(handler handlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		if _, ok := writer.(http.Flusher); !ok {
			writeError(writer, httperrors.InternalServerError("streaming unsupported"))
			return
		}
		session := newSession(h.pingInterval)
		if err := handler(session, request); err != nil {
			writeError(writer, err)
			return
		}

		writer.Header().Set("Content-Type", "text/event-stream")
		writer.Header().Set("Cache-Control", "no-cache")
		writer.Header().Set("Connection", "keep-alive")
		writer.WriteHeader(http.StatusOK)

		metrics.OpenSseConnection()
		defer metrics.CloseSseConnection()

		// the status code is already sent, a failed write just ends the stream.
		_ = session.StreamEvents(request.Context(), writer)
	}
}
