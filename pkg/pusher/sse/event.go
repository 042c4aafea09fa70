package sse

import (
	"github.com/arnac-io/paygate/pkg/pusher/events"
)

type Event struct {
	Name    events.Name
	EventID int64  `json:"event_id"`
	Data    []byte `json:"data"`
	// Final closes the stream once the event is written.
	Final bool `json:"-"`
}
