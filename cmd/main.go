package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"irrigation_monitor/internal/backend"
	"irrigation_monitor/internal/config"
	"irrigation_monitor/internal/handlers"
	"irrigation_monitor/internal/logger"
	"irrigation_monitor/internal/metrics"
	"irrigation_monitor/internal/publisher"
	"irrigation_monitor/internal/repository"
	"irrigation_monitor/internal/repository/db"
	"irrigation_monitor/internal/server"
	"irrigation_monitor/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load("config", "configs", ".")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
	defer func() { _ = log.Sync() }()

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	client, err := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, cfg.Backend.Token)
	if err != nil {
		log.Fatalw("invalid backend config", "err", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewProm(reg)

	publish, closeMQTT := startPublisher(cfg.MQTT, log)
	defer closeMQTT()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	services := service.NewService(repos, client, service.Options{
		Zones:            cfg.Zones.Count,
		ReconcileTimeout: cfg.Reconcile.Timeout,
		Location:         cfg.TimeLocation(),
		Lat:              cfg.Location.Lat,
		Lon:              cfg.Location.Lon,
		SigningKey:       cfg.Auth.SigningKey,
		CommandTimeout:   cfg.Backend.Timeout,
		Root:             ctx,
		Log:              log,
		Metrics:          rec,
		Publish:          publish,
	})
	apiHandler := handlers.NewHandler(services, log, reg)

	go services.Poller.Run(ctx, cfg.Poll.Interval)
	go services.Scheduling.RunRefresh(ctx, cfg.Schedule.RefreshInterval)

	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	go func() {
		log.Infow("http_listening", "addr", srv.Addr(), "backend", cfg.Backend.BaseURL, "zones", cfg.Zones.Count)
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()

	waitForShutdown(cancel, srv, log)
}

// startPublisher connects to MQTT when configured; otherwise status changes are dropped.
func startPublisher(cfg config.MQTTConfig, log *logger.Logger) (publisher.Publisher, func()) {
	if cfg.Server == "" {
		return publisher.EmptyPublisher, func() {}
	}
	m, err := publisher.NewMQTT(publisher.MQTTOptions{
		Server:      cfg.Server,
		TopicPrefix: cfg.TopicPrefix,
		QOS:         cfg.QOS,
		Retained:    cfg.Retained,
		Username:    cfg.Username,
		Password:    cfg.Password,
	}, log)
	if err != nil {
		log.Warnw("mqtt_disabled", "err", err)
		return publisher.EmptyPublisher, func() {}
	}
	m.Connect()
	return m.Publish, m.Close
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
