package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/apollos-finance/bridge-tracker/bridge"
	"github.com/apollos-finance/bridge-tracker/config"
	"github.com/apollos-finance/bridge-tracker/dashboard"
	"github.com/apollos-finance/bridge-tracker/logging"
	"github.com/apollos-finance/bridge-tracker/monitor"
	"github.com/apollos-finance/bridge-tracker/presenter"
)

var (
	configPath  = flag.String("config", "config.yml", "path to the config file")
	metricsAddr = flag.String("metrics", ":2112", "listen address for prometheus metrics")
)

const shutdownTimeout = 5 * time.Second

func serve(ctx context.Context, srv *http.Server) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	flag.Parse()
	logger := logging.New()

	cfg, err := config.ReadConfigFromFile(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	logger.SetLevel(cfg.LogLevel)

	m, err := monitor.NewMonitor(logger, cfg)
	if err != nil {
		logger.WithError(err).Fatal("can't initialize bridge tracker")
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	g.Go(func() error {
		logger.WithField("addr", *metricsAddr).Info("serving prometheus metrics")
		return serve(gctx, &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: shutdownTimeout})
	})

	if cfg.Presenter != nil {
		reader := bridge.NewReader(cfg, m.Source(), m.Destination(), logger.WithField("service", "reader"))
		markets := dashboard.NewMonitor(cfg, m.Destination(), logger.WithField("service", "dashboard"))
		pr := presenter.NewPresenter(logger.WithField("service", "presenter"), cfg, m.Tracker(), reader, markets)
		g.Go(func() error {
			return pr.Serve(gctx, cfg.Presenter.Host)
		})
	}

	if m.Start(gctx) {
		logger.Info("tracking persisted bridge message")
	}

	<-gctx.Done()
	if ctx.Err() != nil {
		logger.Warn("caught signal, gracefully terminating")
	}
	if err = g.Wait(); err != nil {
		logger.WithError(err).Error("tracker stopped with error")
		m.Close()
		os.Exit(1)
	}
}
