package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-wa-broadcast/internal/config"
	"golang-wa-broadcast/internal/logging"
	"golang-wa-broadcast/internal/mockgw"
)

func main() {
	conf, err := config.Load()
	log := logging.New(conf.LogLevel)
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}

	gw := mockgw.New(mockgw.Config{
		StartConnected: os.Getenv("MOCK_START_DISCONNECTED") == "",
		PairDelay:      5 * time.Second,
		Latency:        200 * time.Millisecond,
		Logger:         log,
	})
	fiberApp := gw.App()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("mock-wa-gateway listening", "addr", conf.MockGatewayAddr)
		if err := fiberApp.Listen(conf.MockGatewayAddr); err != nil {
			log.Error("fiber listen", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down mock-wa-gateway")
	_ = fiberApp.Shutdown()
}
