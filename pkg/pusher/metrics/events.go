package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arnac-io/paygate/pkg/pusher/events"
)

var eventsQuantity = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "streaming_api_events",
	},
	[]string{
		"type",
		"event",
	},
)

var droppedEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "streaming_api_dropped_events",
		Help: "Events not delivered because a subscriber's queue was full.",
	},
	[]string{
		"type",
		"event",
	},
)

func SseEventSent(event events.Name) {
	eventsQuantity.With(map[string]string{"type": "sse", "event": event.String()}).Inc()
}

func SseEventDropped(event events.Name) {
	droppedEvents.With(map[string]string{"type": "sse", "event": event.String()}).Inc()
}
