package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/validator-provisioning-service/cmd/flags"
	"github.com/ruteri/validator-provisioning-service/httpserver"
	"github.com/ruteri/validator-provisioning-service/interfaces"
	"github.com/ruteri/validator-provisioning-service/keygen"
	"github.com/ruteri/validator-provisioning-service/lifecycle"
	"github.com/ruteri/validator-provisioning-service/metrics"
	"github.com/ruteri/validator-provisioning-service/storage"
)

var cliFlags = []cli.Flag{
	flags.ListenAddrFlag,
	flags.MetricsAddrFlag,
	flags.StorageURIFlag,
	flags.WorkersFlag,
	flags.QueueSizeFlag,
	flags.KeygenTypeFlag,
	flags.KeygenSeedFlag,
	flags.KeygenDelayFlag,
	flags.LogJsonFlag,
	flags.LogDebugFlag,
	flags.LogUidFlag,
	flags.LogServiceFlag,
	flags.PprofFlag,
	flags.DrainSecondsFlag,
}

func main() {
	// Optional local overrides, ignored when absent.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "validator-api",
		Usage: "Serve the validator provisioning API",
		Flags: cliFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			storageURI := cCtx.String(flags.StorageURIFlag.Name)
			logger.Info("Opening request store", "uri", storageURI)
			store, err := storage.NewRequestStore(storageURI, logger)
			if err != nil {
				logger.Error("Failed to open request store", "err", err)
				return err
			}
			defer store.Close()

			keyGen, err := setupKeyGenerator(cCtx, logger)
			if err != nil {
				logger.Error("Failed to set up key generator", "err", err)
				return err
			}

			engine := lifecycle.New(&lifecycle.Config{
				Store:     store,
				KeyGen:    keyGen,
				Log:       logger,
				Workers:   cCtx.Int(flags.WorkersFlag.Name),
				QueueSize: cCtx.Int(flags.QueueSizeFlag.Name),
				Metrics:   metrics.NewProvisioningMetrics(prometheus.DefaultRegisterer),
			})

			handler := httpserver.NewHandler(engine, store, logger)

			cfg := flags.ConfigureServer(cCtx, logger)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			// Stop taking requests, then let queued background units finish.
			server.Shutdown()
			drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := engine.Drain(drainCtx); err != nil {
				logger.Warn("Background units did not drain in time", "err", err)
			}
			engine.Close()

			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupKeyGenerator(cCtx *cli.Context, logger *slog.Logger) (interfaces.KeyGenerator, error) {
	keygenType := cCtx.String(flags.KeygenTypeFlag.Name)
	delay := cCtx.Duration(flags.KeygenDelayFlag.Name)

	switch keygenType {
	case "mock":
		logger.Info("Using mock key generator", "delay", delay)
		return keygen.NewMockKeyGenerator(delay, logger), nil

	case "seeded":
		seedHex := cCtx.String(flags.KeygenSeedFlag.Name)
		if seedHex == "" {
			return nil, errors.New("keygen-seed is required for the seeded key generator")
		}
		seed, err := hex.DecodeString(seedHex)
		if err != nil || len(seed) != 32 {
			return nil, fmt.Errorf("invalid keygen-seed, must be 64 hex chars (32 bytes): %v", err)
		}
		logger.Info("Using seeded key generator", "delay", delay)
		return keygen.NewSeededKeyGenerator(seed, delay)

	default:
		return nil, fmt.Errorf("invalid keygen-type: %s", keygenType)
	}
}
