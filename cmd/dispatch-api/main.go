package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-wa-broadcast/internal/adapters/gateway/httpgw"
	"golang-wa-broadcast/internal/adapters/queue/rabbitmq"
	"golang-wa-broadcast/internal/app"
	"golang-wa-broadcast/internal/config"
	"golang-wa-broadcast/internal/countries"
	"golang-wa-broadcast/internal/logging"
	"golang-wa-broadcast/internal/middleware"
	"golang-wa-broadcast/internal/observability/metrics"
	"golang-wa-broadcast/internal/transport"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	log := logging.New(conf.LogLevel)
	if err := run(conf, log); err != nil {
		log.Error("application failed", "err", err)
		os.Exit(1)
	}
}

func run(conf config.Config, log *slog.Logger) error {
	table, err := countries.Load()
	if err != nil {
		return fmt.Errorf("load countries: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewDispatchMetrics(reg)

	gateway := httpgw.New(httpgw.Config{
		BaseURL: conf.GatewayURL,
		Backoff: conf.RetryBackoff,
		Logger:  log,
		Metrics: m,
	})
	poller := app.NewStatusPoller(gateway, conf.StatusPollInterval, log, m)

	opts := []app.Option{app.WithGate(poller), app.WithMetrics(m)}
	if conf.AMQPURL != "" {
		publisher, err := rabbitmq.NewPublisher(conf.AMQPURL)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer publisher.Close()
		opts = append(opts, app.WithPublisher(publisher))
		log.Info("progress stream enabled", "exchange", rabbitmq.ExchangeName)
	}
	svc := app.NewDispatchService(conf.Dispatch(), gateway, table, log, opts...)

	fiberApp := fiber.New(fiber.Config{
		AppName:               "dispatch-api",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          15 * time.Second,
		IdleTimeout:           120 * time.Second,
		ServerHeader:          "",
		// Sheets arrive as extracted cells; a few hundred numbers fit comfortably.
		BodyLimit: 2 * 1024 * 1024,
	})

	fiberApp.Use(recover.New(recover.Config{EnableStackTrace: true}))
	fiberApp.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${method} ${path} ${latency}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	fiberApp.Use(middleware.RequestID())
	fiberApp.Use(middleware.SecurityHeaders())
	fiberApp.Use(middleware.CORS(conf.Origins()))
	fiberApp.Use(middleware.NewRateLimiter(conf.RateLimit, conf.RateBurst).Middleware())

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy", "gateway": poller.State()})
	})
	fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	handler := transport.NewHandler(svc, poller, gateway, table, log)
	handler.Register(fiberApp.Group("/api"), middleware.OperationLimiter(30, time.Minute))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		log.Info("dispatch-api started", "addr", conf.HTTPAddr, "gateway", conf.GatewayURL)
		if err := fiberApp.Listen(conf.HTTPAddr); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")

		if op, err := svc.Current(); err == nil {
			op.Abandon()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("dispatch-api stopped gracefully")
	return nil
}
