// Package main provides the entry point for the Shelfmark server application.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/shelfmarkapp/shelfmark-server/internal/di"
	"github.com/shelfmarkapp/shelfmark-server/internal/di/providers"
)

func main() {
	// Create DI container
	injector := di.NewContainer()

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	// Get logger for shutdown messages
	log := do.MustInvoke[*slog.Logger](injector)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// Shutdown all services in reverse order
	// The DI container handles shutdown order automatically
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	// The catalog holds the sole database connection; close it last so any
	// in-flight writes drained by the HTTP shutdown above still complete.
	if catalog, err := do.Invoke[*providers.CatalogHandle](injector); err == nil {
		log.Info("Closing catalog database...")
		if err := catalog.Shutdown(); err != nil {
			log.Error("Failed to close catalog database", "error", err)
		} else {
			log.Info("Catalog database closed")
		}
	}

	log.Info("Goodbye")
}
