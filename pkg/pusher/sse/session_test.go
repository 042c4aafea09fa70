package sse

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arnac-io/paygate/pkg/pusher/events"
)

func Test_session_StreamEvents(t *testing.T) {
	// to make "go test -race" happy
	cancelIsCalled := atomic.Bool{}
	s := &session{
		eventCh: make(chan Event, 10),
		cancel: func() {
			cancelIsCalled.Store(true)
		},
		pingInterval: time.Second * 1,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	rec := httptest.NewRecorder()
	done := make(chan error, 1)
	go func() {
		done <- s.StreamEvents(ctx, rec)
	}()
	s.SendEvent(Event{Name: events.InvoiceStatusEvent, EventID: 1, Data: []byte("hello")})
	s.SendEvent(Event{Name: events.InvoiceStatusEvent, EventID: 2, Data: []byte("hello")})

	require.Nil(t, <-done)
	require.True(t, cancelIsCalled.Load())
	expectedBody := `event: invoice-status
id: 1
data: hello

event: invoice-status
id: 2
data: hello

event: heartbeat

`
	require.Equal(t, expectedBody, rec.Body.String())
}

func Test_session_FinalEventEndsStream(t *testing.T) {
	s := newSession(time.Minute)
	s.SendEvent(Event{Name: events.InvoiceStatusEvent, EventID: 1, Data: []byte("pending")})
	s.SendEvent(Event{Name: events.InvoicePaidEvent, EventID: 2, Data: []byte("paid"), Final: true})
	s.SendEvent(Event{Name: events.InvoicePaidEvent, EventID: 3, Data: []byte("late")})

	rec := httptest.NewRecorder()
	require.Nil(t, s.StreamEvents(context.Background(), rec))
	expectedBody := `event: invoice-status
id: 1
data: pending

event: invoice-paid
id: 2
data: paid

`
	require.Equal(t, expectedBody, rec.Body.String())
}

func Test_session_SendEventDoesNotBlock(t *testing.T) {
	s := newSession(time.Minute)
	for i := 0; i < cap(s.eventCh)+5; i++ {
		s.SendEvent(Event{Name: events.InvoiceStatusEvent, EventID: int64(i)})
	}
	require.Equal(t, cap(s.eventCh), len(s.eventCh))
}
