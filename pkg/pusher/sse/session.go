package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arnac-io/paygate/pkg/pusher/events"
	"github.com/arnac-io/paygate/pkg/pusher/metrics"
	"github.com/arnac-io/paygate/pkg/pusher/sources"
)

// session represents an HTTP connection from a client and
// implements a loop to stream events from a channel to http.ResponseWriter.
type session struct {
	eventCh      chan Event
	cancel       sources.CancelFn
	pingInterval time.Duration
}

func newSession(pingInterval time.Duration) *session {
	return &session{
		eventCh:      make(chan Event, 16),
		cancel:       func() {},
		pingInterval: pingInterval,
	}
}

// SendEvent never blocks a dispatcher, a slow client loses the event instead.
func (s *session) SendEvent(event Event) {
	select {
	case s.eventCh <- event:
	default:
		metrics.SseEventDropped(event.Name)
	}
}

func (s *session) SetCancelFn(cancel sources.CancelFn) {
	s.cancel = cancel
}

func (s *session) StreamEvents(ctx context.Context, writer http.ResponseWriter) error {
	defer s.cancel()

	flusher := writer.(http.Flusher)
	for {
		var err error
		final := false
		select {
		case <-ctx.Done():
			return nil
		case msg, open := <-s.eventCh:
			if !open {
				return nil
			}
			_, err = fmt.Fprintf(writer, "event: %v\nid: %v\ndata: %v\n\n", msg.Name, msg.EventID, string(msg.Data))
			if err == nil {
				metrics.SseEventSent(msg.Name)
			}
			final = msg.Final
		case <-time.After(s.pingInterval):
			_, err = fmt.Fprintf(writer, "event: %v\n\n", events.PingEvent)
		}
		if err != nil {
			// closing a connection
			return err
		}
		flusher.Flush()
		if final {
			return nil
		}
	}
}
