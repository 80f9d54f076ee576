// Command rlb runs the reverse proxy / load balancer described in
// SPEC_FULL.md. This file is process wiring only: load configuration,
// build the backend pool, start the dispatcher, and handle shutdown
// signals. The core logic lives in internal/.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codepr/rlb/internal/backend"
	"github.com/codepr/rlb/internal/config"
	"github.com/codepr/rlb/internal/logger"
	"github.com/codepr/rlb/internal/server"
	"github.com/codepr/rlb/internal/tracing"
)

var configPath string

func init() {
	logger.Init()
	logger.SetLogLevel(logger.LevelInfo)

	configPath = os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yml"
	}
	config.Load(configPath)
	logger.Info("init", "config loaded successfully", "path", configPath)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx)
	if err != nil {
		logger.Fatal("main", "failed to init tracer", "error", err.Error())
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("main", "failed to shutdown tracer", "error", err.Error())
		}
	}()

	cfg := config.Get()
	pool, err := cfg.BuildPool()
	if err != nil {
		logger.Fatal("main", "failed to build backend pool", "error", err.Error())
	}

	go watchConfig(pool)

	timeout := time.Duration(cfg.Timeout) * time.Second
	dispatcher := server.New(cfg.ListenAddr, pool, timeout)

	go serveMetrics()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("main", "starting proxy", "addr", cfg.ListenAddr)
		errCh <- dispatcher.Run(ctx)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("main", "shutting down")
		cancel()
		<-errCh
		return
	case err := <-errCh:
		if err != nil {
			logger.Fatal("main", "dispatcher exited", "error", err.Error())
		}
		return
	}
}

// serveMetrics exposes the Prometheus /metrics endpoint on its own
// listener, separate from the proxy's forwarding socket so scraping never
// competes with the L7 accept loop.
func serveMetrics() {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:9767"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics", "serving prometheus metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics", "metrics server stopped", "error", err.Error())
	}
}

// watchConfig reloads the configuration file on write/create events and
// hot-swaps the pool's backend sequence, mirroring the teacher's
// fsnotify-driven reload without restarting the listener.
func watchConfig(pool *backend.Pool) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("watchConfig", "failed to create watcher", "error", err.Error())
		return
	}
	defer watcher.Close()

	if err := watcher.Add(configPath); err != nil {
		logger.Error("watchConfig", "failed to watch config file", "path", configPath, "error", err.Error())
		return
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				logger.Info("watchConfig", "config file modified, reloading", "path", event.Name)
				config.Load(configPath)
				newCfg := config.Get()
				pool.Swap(newCfg.BuildBackends())
				logger.Info("watchConfig", "config reloaded")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Error("watchConfig", "watcher error", "error", err.Error())
		}
	}
}
