// Command worker runs the periodic license expiry sweep.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/dental-verify/internal/config"
	"github.com/jwalitptl/dental-verify/internal/datasource"
	"github.com/jwalitptl/dental-verify/internal/email"
	"github.com/jwalitptl/dental-verify/internal/service/expiry"
	"github.com/jwalitptl/dental-verify/internal/worker"
	"github.com/jwalitptl/dental-verify/pkg/logger"
	"github.com/jwalitptl/dental-verify/pkg/messaging/redis"
	"github.com/jwalitptl/dental-verify/pkg/metrics"
)

const healthPort = 8081

func setupHealthCheck(log *logger.Logger, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", healthPort), mux); err != nil {
			log.Fatal(err, "health check server failed")
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "failed to load configuration")
	}
	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	log.SetGlobal()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry, "dental_worker")

	_, store, err := datasource.Bootstrap(ctx, cfg.DataSource, datasource.WithMetrics(m))
	if err != nil {
		log.Fatal(err, "failed to open data source")
	}
	defer store.Close()

	var locker worker.Locker
	if cfg.RedisEnabled() {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal(err, "failed to connect to Redis")
		}
		defer client.Close()
		locker = worker.NewRedisLocker(redislock.New(client))
	} else {
		log.Warn("redis not configured, sweeping without a lock; run a single worker")
	}

	var notifier email.Service
	if cfg.SMTP.Enabled() {
		notifier = email.NewSMTPService(cfg.SMTP)
	}

	sweeper := worker.NewExpirySweeper(
		expiry.NewService(store.Clinics(), m, log),
		locker,
		notifier,
		cfg.Worker,
		log,
	)

	setupHealthCheck(log, registry)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down...")
		cancel()
	}()

	sweeper.Start(ctx)
}
