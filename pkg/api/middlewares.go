package api

import (
	"net/http"

	"github.com/Narasimha1997/ratelimiter"
	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// operationHandler serves one operation of the API.
// A returned error is rendered by writeError.
type operationHandler func(w http.ResponseWriter, r *http.Request) error

type Middleware func(operation string, next operationHandler) operationHandler

func Logging(logger *zap.Logger) Middleware {
	return func(operation string, next operationHandler) operationHandler {
		return func(w http.ResponseWriter, r *http.Request) error {
			logger := logger.With(
				zap.String("operation", operation),
				zap.String("path", r.URL.Path),
			)
			logger.Info("Handling request")
			err := next(w, r)
			if err != nil {
				var statusErr *ErrorStatusCode
				if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
					logger.Info("Fail", zap.Error(err))
				} else {
					logger.Error("Fail", zap.Error(err))
				}
			} else {
				logger.Info("Success")
			}
			return err
		}
	}
}

var httpResponseTimeMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem:   "http",
	Name:        "request_duration_seconds",
	Help:        "",
	ConstLabels: nil,
	Buckets:     []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 10},
}, []string{"operation"})

func Metrics(operation string, next operationHandler) operationHandler {
	return func(w http.ResponseWriter, r *http.Request) error {
		t := prometheus.NewTimer(httpResponseTimeMetric.WithLabelValues(operation))
		defer t.ObserveDuration()
		return next(w, r)
	}
}

// RateLimit rejects requests over the limiter's budget with 429.
func RateLimit(limiter *ratelimiter.DefaultLimiter) Middleware {
	return func(operation string, next operationHandler) operationHandler {
		return func(w http.ResponseWriter, r *http.Request) error {
			allowed, err := limiter.ShouldAllow(1)
			if err != nil {
				return toError(http.StatusInternalServerError, err)
			}
			if !allowed {
				return toError(http.StatusTooManyRequests, ErrRateLimit)
			}
			return next(w, r)
		}
	}
}
