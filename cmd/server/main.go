package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/silvermoon-h/matching-engine-2/config"
	"github.com/silvermoon-h/matching-engine-2/pkg/db/queue"
	"github.com/silvermoon-h/matching-engine-2/pkg/engine"
	"github.com/silvermoon-h/matching-engine-2/pkg/gateway"
	"github.com/silvermoon-h/matching-engine-2/pkg/logging"
	"github.com/silvermoon-h/matching-engine-2/pkg/otel"
)

func main() {
	configPath := flag.String("config", "", "path to engine config file")
	gatewayAddr := flag.String("gateway-addr", ":7001", "TCP gateway listen address")
	statusAddr := flag.String("status-addr", ":8081", "HTTP status endpoint listen address")
	flag.Parse()

	logging.Setup(logging.DefaultConfig())
	logger := logging.FromContext(context.Background())
	ctx := logger.WithContext(context.Background())

	cfg, err := config.LoadEngineConfig(*configPath)
	if err != nil {
		// Configuration failures exit non-zero before anything is wired (§6).
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	eng := engine.New()
	if err := eng.Configure(cfg); err != nil {
		logger.Fatal().Err(err).Msg("failed to configure matching engine")
	}

	sender, err := queue.NewSender()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to connect to deal queue broker, running without a deal sink")
	} else {
		eng.SetDealSink(sender)
		defer sender.Close()
	}

	cleanup, err := otel.Init(otel.Config{
		ServiceVersion:   "0.1.0",
		CollectorEnabled: os.Getenv("MATCHINGCORE_OTEL_ENABLED") == "true",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize OpenTelemetry")
	}
	defer cleanup()
	if err := otel.StartRuntimeMetrics(); err != nil {
		logger.Warn().Err(err).Msg("failed to start runtime metrics")
	}

	controller := engine.NewPhaseController(eng, time.Second)
	go controller.Run()
	defer controller.Stop()

	gwCtx, cancelGateway := context.WithCancel(ctx)
	defer cancelGateway()

	gw := gateway.New(eng, time.Now)
	go func() {
		if err := gw.ListenAndServe(gwCtx, *gatewayAddr); err != nil {
			logger.Error().Err(err).Msg("gateway stopped")
		}
	}()

	statusServer := gateway.NewStatusServer(*statusAddr, eng)
	go func() {
		logger.Info().Str("addr", *statusAddr).Msg("status endpoint listening")
		if err := statusServer.ListenAndServe(); err != nil {
			logger.Error().Err(err).Msg("status server stopped")
		}
	}()

	printBanner(*gatewayAddr, *statusAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := statusServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("status server shutdown error")
	}
	cancelGateway()

	logger.Info().Msg("shutdown complete")
}

func printBanner(gatewayAddr, statusAddr string) {
	color.NoColor = false
	green := color.New(color.FgGreen, color.Bold).SprintfFunc()
	cyan := color.New(color.FgCyan).SprintfFunc()

	fmt.Println(green("matching engine up"))
	fmt.Println(cyan("  gateway:  %s", gatewayAddr))
	fmt.Println(cyan("  status:   %s", statusAddr))
}
