package facilitator

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arnac-io/paygate/pkg/core"
)

var callTimeHistogramVec = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "facilitator_call_time",
		Help:    "Facilitator calls duration distribution in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	},
	[]string{"method", "status"},
)

// ErrUnexpectedResponse is returned when the facilitator answers with a server error
// or a body the client cannot decode.
var ErrUnexpectedResponse = errors.New("unexpected facilitator response")

// Client talks to an x402 facilitator over HTTP.
// It builds payment challenges locally and delegates verification and settlement
// to the facilitator's /verify and /settle endpoints.
type Client struct {
	logger            *zap.Logger
	baseURL           string
	apiKey            string
	httpClient        *http.Client
	verifyAttempts    uint
	retryDelay        time.Duration
	maxTimeoutSeconds int
	tracer            trace.Tracer
}

type Options struct {
	apiKey            string
	timeout           time.Duration
	verifyAttempts    uint
	retryDelay        time.Duration
	maxTimeoutSeconds int
	httpClient        *http.Client
}

type Option func(o *Options)

// WithAPIKey configures the client to authorize with a bearer token.
func WithAPIKey(key string) Option {
	return func(o *Options) {
		o.apiKey = key
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.timeout = timeout
	}
}

// WithVerifyRetries sets how many times a /verify call is attempted on transport failures.
// /settle is never retried.
func WithVerifyRetries(attempts uint, delay time.Duration) Option {
	return func(o *Options) {
		o.verifyAttempts = attempts
		o.retryDelay = delay
	}
}

// WithMaxTimeoutSeconds sets how long a signed payment stays valid.
func WithMaxTimeoutSeconds(seconds int) Option {
	return func(o *Options) {
		o.maxTimeoutSeconds = seconds
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.httpClient = c
	}
}

func NewClient(logger *zap.Logger, baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("facilitator url is required")
	}
	options := &Options{
		timeout:           30 * time.Second,
		verifyAttempts:    3,
		retryDelay:        200 * time.Millisecond,
		maxTimeoutSeconds: 300,
	}
	for _, o := range opts {
		o(options)
	}
	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.timeout}
	}
	if options.verifyAttempts == 0 {
		options.verifyAttempts = 1
	}
	return &Client{
		logger:            logger,
		baseURL:           strings.TrimRight(baseURL, "/"),
		apiKey:            options.apiKey,
		httpClient:        httpClient,
		verifyAttempts:    options.verifyAttempts,
		retryDelay:        options.retryDelay,
		maxTimeoutSeconds: options.maxTimeoutSeconds,
		tracer:            otel.Tracer("github.com/arnac-io/paygate/pkg/facilitator"),
	}, nil
}

// Process answers a payment request.
// Without a credential it returns a challenge. With a credential it verifies and settles
// the payment. An error means the facilitator could not be reached or answered unexpectedly,
// the payment must not be assumed settled in that case.
func (c *Client) Process(ctx context.Context, req core.PaymentRequest) (core.FacilitatorResult, error) {
	reqs := newRequirements(req, c.maxTimeoutSeconds)
	if req.Credential == nil || *req.Credential == "" {
		return challenge("X-PAYMENT header is required", "", reqs), nil
	}
	payload, err := core.DecodeCredential(*req.Credential)
	if err != nil {
		c.logger.Info("invalid payment header", zap.String("resource", req.ResourceURL), zap.Error(err))
		return rejected("invalid payment header", "", reqs), nil
	}
	body := facilitatorRequestBody(payload, reqs)

	var verify verifyResponse
	err = retry.Do(func() error {
		return c.call(ctx, "verify", body, &verify)
	},
		retry.Attempts(c.verifyAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && !errors.Is(err, errRejected)
		}),
	)
	if err != nil {
		var rej *rejection
		if errors.As(err, &rej) {
			return rejected(rej.reason, "", reqs), nil
		}
		return core.FacilitatorResult{}, err
	}
	if !verify.IsValid {
		reason := verify.InvalidReason
		if reason == "" {
			reason = "payment verification failed"
		}
		return rejected(reason, verify.Payer, reqs), nil
	}

	var settle settleResponse
	raw, err := c.callRaw(ctx, "settle", body, &settle)
	if err != nil {
		var rej *rejection
		if errors.As(err, &rej) {
			return rejected(rej.reason, verify.Payer, reqs), nil
		}
		return core.FacilitatorResult{}, err
	}
	if settle.Failed() {
		reason := settle.ErrorReason
		if reason == "" {
			reason = "payment settlement failed"
		}
		return rejected(reason, settle.Payer, reqs), nil
	}
	header := http.Header{}
	header.Set(PaymentResponseHeader, base64.StdEncoding.EncodeToString(raw))
	return core.FacilitatorResult{
		Kind:       core.ResultSettled,
		StatusCode: http.StatusOK,
		Header:     header,
		Receipt:    raw,
	}, nil
}

var errRejected = errors.New("rejected by facilitator")

// rejection is a 4xx answer of the facilitator, it's final and must not be retried.
type rejection struct {
	reason string
}

func (r *rejection) Error() string {
	return fmt.Sprintf("%v: %v", errRejected, r.reason)
}

func (r *rejection) Unwrap() error {
	return errRejected
}

type decoder interface {
	Decode(d *jx.Decoder) error
}

func (c *Client) call(ctx context.Context, method string, body []byte, dest decoder) error {
	_, err := c.callRaw(ctx, method, body, dest)
	return err
}

func (c *Client) callRaw(ctx context.Context, method string, body []byte, dest decoder) (_ []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "facilitator."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("facilitator.url", c.baseURL)),
	)
	status := "error"
	start := time.Now()
	defer func() {
		callTimeHistogramVec.WithLabelValues(method, status).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, errors.Wrap(err, method)
	}
	defer response.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, method)
	}
	status = strconv.Itoa(response.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", response.StatusCode))
	switch {
	case response.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %v returned %v", ErrUnexpectedResponse, method, response.StatusCode)
	case response.StatusCode >= 400:
		c.logger.Warn("facilitator refused the payment",
			zap.String("method", method),
			zap.Int("status", response.StatusCode),
			zap.ByteString("body", raw))
		return nil, &rejection{reason: rejectionReason(raw, response.StatusCode)}
	}
	if err := dest.Decode(jx.DecodeBytes(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v: %v", ErrUnexpectedResponse, method, err)
	}
	return raw, nil
}

// rejectionReason digs a human readable reason out of a facilitator error body.
func rejectionReason(body []byte, statusCode int) string {
	reason := ""
	_ = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "error", "errorReason", "invalidReason", "message":
			if reason == "" {
				return decodeOptStr(d, &reason)
			}
		}
		return d.Skip()
	})
	if reason == "" {
		reason = http.StatusText(statusCode)
	}
	return reason
}

func challenge(reason string, payer string, reqs requirements) core.FacilitatorResult {
	return core.FacilitatorResult{
		Kind:       core.ResultChallenge,
		StatusCode: http.StatusPaymentRequired,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       paymentRequiredBody(reason, payer, reqs),
		Reason:     reason,
	}
}

func rejected(reason string, payer string, reqs requirements) core.FacilitatorResult {
	result := challenge(reason, payer, reqs)
	result.Kind = core.ResultRejected
	return result
}
