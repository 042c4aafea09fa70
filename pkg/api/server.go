package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/arnac-io/paygate/pkg/pusher/sources"
	"github.com/arnac-io/paygate/pkg/pusher/sse"
)

type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
}

type ServerOptions struct {
	middleware    []Middleware
	payMiddleware []Middleware
	invoiceSource sources.InvoiceSource
}

type ServerOption func(options *ServerOptions)

// WithMiddleware adds middleware to every operation.
func WithMiddleware(m ...Middleware) ServerOption {
	return func(options *ServerOptions) {
		options.middleware = append(options.middleware, m...)
	}
}

// WithPayMiddleware adds middleware to the pay operation only.
func WithPayMiddleware(m ...Middleware) ServerOption {
	return func(options *ServerOptions) {
		options.payMiddleware = append(options.payMiddleware, m...)
	}
}

// WithInvoiceSource enables the invoice status stream.
func WithInvoiceSource(source sources.InvoiceSource) ServerOption {
	return func(options *ServerOptions) {
		options.invoiceSource = source
	}
}

func NewServer(log *zap.Logger, handler *Handler, address string, opts ...ServerOption) (*Server, error) {
	options := &ServerOptions{}
	for _, o := range opts {
		o(options)
	}
	middleware := []Middleware{Logging(log), Metrics}
	middleware = append(middleware, options.middleware...)

	route := func(operation string, next operationHandler, extra ...Middleware) http.HandlerFunc {
		for _, md := range extra {
			next = md(operation, next)
		}
		for i := len(middleware) - 1; i >= 0; i-- {
			next = middleware[i](operation, next)
		}
		return func(w http.ResponseWriter, r *http.Request) {
			if err := next(w, r); err != nil {
				writeError(w, err)
			}
		}
	}

	router := mux.NewRouter()
	router.HandleFunc("/invoices", route("createInvoice", handler.CreateInvoice)).Methods(http.MethodPost)
	router.HandleFunc("/invoices", route("getInvoicesByPayee", handler.GetInvoicesByPayee)).Methods(http.MethodGet)
	router.HandleFunc("/invoices/{id}/status", route("getInvoiceStatus", handler.GetInvoiceStatus)).Methods(http.MethodGet)
	router.HandleFunc("/pay/{invoiceId}", route("pay", handler.Pay, options.payMiddleware...)).Methods(http.MethodGet)
	router.HandleFunc("/openapi.json", route("getOpenapiJson", handler.GetOpenapiJson)).Methods(http.MethodGet)
	router.HandleFunc("/openapi.yml", route("getOpenapiYml", handler.GetOpenapiYml)).Methods(http.MethodGet)
	if options.invoiceSource != nil {
		sseHandler := sse.NewHandler(options.invoiceSource, handler.storage, handler.projector)
		stream := sseHandler.Stream(sseHandler.SubscribeToInvoice)
		router.HandleFunc("/invoices/{id}/events", route("streamInvoiceStatus", func(w http.ResponseWriter, r *http.Request) error {
			stream(w, r)
			return nil
		})).Methods(http.MethodGet)
	}

	serv := Server{
		logger: log,
		httpServer: &http.Server{
			Addr:    address,
			Handler: router,
		},
	}
	return &serv, nil
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Run() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		s.logger.Info("paygate api quit")
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
