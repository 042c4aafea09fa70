package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Narasimha1997/ratelimiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/arnac-io/paygate/pkg/api"
	"github.com/arnac-io/paygate/pkg/app"
	"github.com/arnac-io/paygate/pkg/cache"
	"github.com/arnac-io/paygate/pkg/config"
	"github.com/arnac-io/paygate/pkg/facilitator"
	"github.com/arnac-io/paygate/pkg/invoicestore"
	"github.com/arnac-io/paygate/pkg/invoicing"
	"github.com/arnac-io/paygate/pkg/pusher/sources"
	"github.com/arnac-io/paygate/pkg/sentry"
	"github.com/arnac-io/paygate/pkg/settlement"
	"github.com/arnac-io/paygate/pkg/status"
)

const rejectionCacheSize = 10_000

func main() {
	cfg := config.Load()
	log := app.Logger(cfg.App.LogLevel)
	if err := sentry.Init(cfg.App.SentryDSN); err != nil {
		log.Warn("sentry is disabled", zap.Error(err))
	}
	defer sentry.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := invoicestore.Open(log, cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.PaidInvoiceCacheSize)
	if err != nil {
		log.Fatal("failed to open invoice store", zap.Error(err))
	}
	assets := cfg.Asset.Available
	projector := status.NewProjector(assets)
	dispatcher := sources.NewInvoiceDispatcher(log, projector)

	rejections, err := cache.NewInMemoryCache[settlement.RejectedError](rejectionCacheSize)
	if err != nil {
		log.Fatal("failed to create rejection cache", zap.Error(err))
	}
	settlementOpts := []settlement.Option{
		settlement.WithExtractor(settlement.NewExtractor(cfg.Extraction.CredentialProbes, cfg.Extraction.ReceiptProbes)),
		settlement.WithRejectionCache(rejections, cfg.Facilitator.RejectionCacheTTL),
		settlement.WithNotifier(dispatcher),
	}
	if cfg.Facilitator.URL != "" {
		client, err := facilitator.NewClient(log, cfg.Facilitator.URL,
			facilitator.WithAPIKey(cfg.Facilitator.APIKey),
			facilitator.WithTimeout(cfg.Facilitator.Timeout))
		if err != nil {
			log.Fatal("failed to create facilitator client", zap.Error(err))
		}
		settlementOpts = append(settlementOpts, settlement.WithFacilitator(client))
	} else {
		log.Warn("FACILITATOR_URL is not set, payment attempts will get 503")
	}
	orchestrator := settlement.NewOrchestrator(log, store, assets, cfg.API.PublicBaseURL, settlementOpts...)

	handler, err := api.NewHandler(log,
		api.WithStorage(store),
		api.WithInvoiceService(invoicing.NewService(log, store, assets, cfg.API.PublicBaseURL, cfg.Asset.Symbol)),
		api.WithSettler(orchestrator),
		api.WithProjector(projector))
	if err != nil {
		log.Fatal("failed to create api handler", zap.Error(err))
	}
	serverOpts := []api.ServerOption{api.WithInvoiceSource(dispatcher)}
	if cfg.API.PayRateLimit > 0 {
		limiter := ratelimiter.NewDefaultLimiter(cfg.API.PayRateLimit, time.Second)
		defer limiter.Kill()
		serverOpts = append(serverOpts, api.WithPayMiddleware(api.RateLimit(limiter)))
	}
	server, err := api.NewServer(log, handler, fmt.Sprintf(":%v", cfg.API.Port), serverOpts...)
	if err != nil {
		log.Fatal("failed to create api server", zap.Error(err))
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%v", cfg.App.MetricsPort),
		Handler: promhttp.Handler(),
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		dispatcher.Run(ctx)
		return nil
	})
	p.Go(func(ctx context.Context) error {
		log.Info("paygate api started", zap.Int("port", cfg.API.Port))
		return server.Run()
	})
	p.Go(func(ctx context.Context) error {
		err := metricsServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return app.Shutdown(log, server.Shutdown, metricsServer.Shutdown, app.Closer(closeStore))
	})
	if err := p.Wait(); err != nil {
		log.Error("paygate stopped", zap.Error(err))
		sentry.Flush()
		os.Exit(1)
	}
}
