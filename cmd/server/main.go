package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avative-pat/FiberMonitorMap/pkg/api"
	"github.com/avative-pat/FiberMonitorMap/pkg/cache"
	"github.com/avative-pat/FiberMonitorMap/pkg/config"
	"github.com/avative-pat/FiberMonitorMap/pkg/enrich"
	"github.com/avative-pat/FiberMonitorMap/pkg/poller"
	"github.com/avative-pat/FiberMonitorMap/pkg/rules"
	"github.com/avative-pat/FiberMonitorMap/pkg/smx"
	"github.com/avative-pat/FiberMonitorMap/pkg/sonar"
	"github.com/avative-pat/FiberMonitorMap/pkg/store"
)

// @title Fiber Monitor API
// @version 1.0
// @description Fiber network fault monitoring with subscriber enrichment
// @BasePath /

func main() {
	// Configure Log Level from Environment Variable
	logLevelStr := os.Getenv("LOG_LEVEL")
	switch strings.ToLower(logLevelStr) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "fatal":
		logrus.SetLevel(logrus.FatalLevel)
	case "panic":
		logrus.SetLevel(logrus.PanicLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel) // Default to Info
	}
	logrus.Infof("Log level set to: %s", logrus.GetLevel().String())

	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// run owns the deferred cleanup; Fatalf here would skip it.
	if err := run(*configPath); err != nil {
		logrus.Errorf("%v", err)
		os.Exit(1)
	}

	logrus.Info("Server exited properly")
}

func run(configPath string) error {
	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Open the backing store
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	// Set up the upstream clients
	smxClient := smx.NewClient(&cfg.SMx)
	sonarClient := sonar.NewClient(&cfg.Sonar)

	// Rehydrate cached state from the store
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alarmCache := cache.New(db)
	if err := alarmCache.Load(ctx); err != nil {
		return fmt.Errorf("failed to load alarm cache: %w", err)
	}

	engine := rules.NewEngine(cfg.Rules, db)
	if err := engine.Load(ctx); err != nil {
		return fmt.Errorf("failed to load alert state: %w", err)
	}

	enricher := enrich.NewEnricher(sonarClient, cfg.Poller.LookupConcurrency, cfg.Sonar.Timeout())

	// Start the poll scheduler
	p := poller.New(smxClient, enricher, alarmCache, engine, cfg.Poller.Interval())

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		p.Start(ctx)
	}()

	// Set up the HTTP server
	handler := api.NewAPIHandler(alarmCache, engine, p, db)
	origins := strings.Split(cfg.Server.AllowedOrigins, ",")

	// Use PORT environment variable if available, otherwise use config
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      handler.Router(origins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logrus.Infof("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		cancel()
		<-pollerDone
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	logrus.Info("Shutting down server...")

	// Stop the poll loop and wait for any in-flight cycle to finish
	cancel()
	<-pollerDone
	logrus.Info("Poll scheduler shutdown complete")

	// Create a deadline for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	// Shutdown the server
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}
