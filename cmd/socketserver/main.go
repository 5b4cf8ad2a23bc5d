package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stpinker/mcserver-go/internal/config"
	"github.com/stpinker/mcserver-go/internal/echocallback"
	"github.com/stpinker/mcserver-go/internal/socketpool"
)

const SocketPoolConfigPath = "config/socketpool.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := SocketPoolConfigPath
	if p := os.Getenv("MCSERVER_SOCKETPOOL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadSocketPool(cfgPath)
	if err != nil {
		return fmt.Errorf("loading socketpool config: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("socketserver starting",
		"bind", cfg.BindAddress,
		"port", cfg.Port,
		"log_level", cfg.LogLevel)

	pool := socketpool.NewPool(logger)

	ln, err := socketpool.ListenAddr(cfg.BindAddress, cfg.Port, cfg.ListenBacklog)
	if err != nil {
		return fmt.Errorf("listening on %s:%d: %w", cfg.BindAddress, cfg.Port, err)
	}
	slog.Info("listening", "port", ln.Port())

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		acceptLoop(ctx, ln, pool, logger)
	}()

	<-ctx.Done()
	ln.Close()
	<-acceptDone

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := pool.Close(closeCtx); err != nil {
		return fmt.Errorf("closing pool: %w", err)
	}
	slog.Info("socketserver stopped")
	return nil
}

// acceptLoop accepts connections until ctx is done or the listener is
// closed, attaching each one to the pool behind an echo callback.
func acceptLoop(ctx context.Context, ln *socketpool.Listener, pool *socketpool.Pool, logger *slog.Logger) {
	for {
		socket, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("accept failed", "error", err)
			continue
		}

		cb := echocallback.New(logger, socket.IP())
		if err := pool.Attach(socket, cb); err != nil {
			logger.Warn("attach failed", "remote", socket.IP(), "error", err)
			socket.Close()
			continue
		}
		logger.Info("client attached", "remote", socket.IP())
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
