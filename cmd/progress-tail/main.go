package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang-wa-broadcast/internal/adapters/queue/rabbitmq"
	"golang-wa-broadcast/internal/config"
	"golang-wa-broadcast/internal/domain"
	"golang-wa-broadcast/internal/logging"
)

func main() {
	conf, err := config.Load()
	log := logging.New(conf.LogLevel)
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}
	if conf.AMQPURL == "" {
		log.Error("AMQP_URL is required")
		os.Exit(1)
	}

	consumer, err := rabbitmq.NewConsumer(conf.AMQPURL, log)
	if err != nil {
		log.Error("connect rabbitmq consumer", "err", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("progress-tail started", "exchange", rabbitmq.ExchangeName)

	err = consumer.Consume(ctx, func(_ context.Context, ev domain.ProgressEvent) error {
		log.Info("progress",
			"op_id", ev.OperationID,
			"mode", ev.Mode,
			"status", ev.Status,
			"processed", ev.Report.ProcessedCount,
			"total", ev.Report.TotalPlanned,
			"sent", ev.Report.SentCount,
			"failed", ev.Report.FailedCount,
			"active", ev.Report.Active,
		)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer error", "err", err)
		os.Exit(1)
	}
	log.Info("progress-tail stopped")
}
