package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitcoin-coordinator/coordinator/internal/api"
	"github.com/bitcoin-coordinator/coordinator/internal/builder"
	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/coordinator"
	"github.com/bitcoin-coordinator/coordinator/internal/feeestimator"
	"github.com/bitcoin-coordinator/coordinator/internal/funding"
	"github.com/bitcoin-coordinator/coordinator/internal/logging"
	"github.com/bitcoin-coordinator/coordinator/internal/rpcnode"
	"github.com/bitcoin-coordinator/coordinator/internal/store"
	"github.com/bitcoin-coordinator/coordinator/internal/wallet"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case "tick":
		if err := runTick(); err != nil {
			slog.Error("tick error", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("coordinator %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: coordinator <command>

Commands:
  serve     Start the HTTP control plane (callers drive ticks via POST /tick)
  tick      Run a single coordinator tick against the store and exit
  version   Print version information
`)
}

// buildCoordinator wires every collaborator package into a Coordinator,
// the shared assembly path for both "serve" and "tick".
func buildCoordinator(cfg *config.Config) (*coordinator.Coordinator, func() error, error) {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	rpc, err := rpcnode.NewClient(cfg)
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("connect rpc node: %w", err)
	}

	observer := rpcnode.NewObserver(rpc, cfg.FinalizationThreshold)
	keys := wallet.NewKeyService(cfg.MnemonicFile, cfg.Network)
	build := builder.New(keys, cfg.Network, cfg.MaxTxWeight)
	fees := feeestimator.New(rpc)
	fund := funding.New(s, cfg.MaxUnconfirmedSpeedups)

	coord := coordinator.New(s, observer, rpc, build, fees, fund, cfg)

	closer := func() error {
		rpc.Close()
		return s.Close()
	}
	return coord, closer, nil
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	slog.Info("starting coordinator",
		"version", version,
		"network", cfg.Network,
		"port", cfg.Port,
		"dbPath", cfg.DBPath,
		"logLevel", cfg.LogLevel,
	)

	coord, closeAll, err := buildCoordinator(cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	slog.Info("coordinator assembled", "rpcHost", cfg.RPCHost)

	router := api.NewRouter(coord, cfg)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    config.ServerReadTimeout,
		WriteTimeout:   config.ServerWriteTimeout,
		IdleTimeout:    config.ServerIdleTimeout,
		MaxHeaderBytes: config.ServerMaxHeaderBytes,
	}

	slog.Info("server configured",
		"readTimeout", config.ServerReadTimeout,
		"writeTimeout", config.ServerWriteTimeout,
		"idleTimeout", config.ServerIdleTimeout,
		"maxHeaderBytes", config.ServerMaxHeaderBytes,
	)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("initiating graceful shutdown", "timeout", config.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func runTick() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logCloser.Close()

	coord, closeAll, err := buildCoordinator(cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	start := time.Now()
	if err := coord.Tick(); err != nil {
		return fmt.Errorf("tick: %w", err)
	}

	slog.Info("tick completed", "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}
