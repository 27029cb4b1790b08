// Package main provides the entry point for the conference mixing daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	"github.com/Raikerian/go-konference/internal/app"
	"github.com/Raikerian/go-konference/internal/config"
	"github.com/Raikerian/go-konference/internal/events"
	"github.com/Raikerian/go-konference/internal/infrastructure"
	"github.com/Raikerian/go-konference/internal/konference"
	"github.com/Raikerian/go-konference/internal/observe"
	"github.com/Raikerian/go-konference/internal/simulate"
	"github.com/Raikerian/go-konference/internal/sounds"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := "config.yaml"
	if p := os.Getenv("KONFERENCE_CONFIG"); p != "" {
		configPath = p
	}

	application := app.New(
		// Core modules
		config.Module,
		infrastructure.LoggerModule,
		observe.Module,
		events.Module,

		// Application modules
		sounds.Module,
		konference.Module,
		simulate.Module,

		fx.Supply(configPath),
		fx.WithLogger(infrastructure.NewFxLoggerAdapter),
	)
	if err := application.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build application: %v\n", err)
		os.Exit(1)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	err := application.Start(startCtx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start application: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Printf("Received signal: %s, initiating shutdown.\n", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	err = application.Stop(shutdownCtx)
	cancel()

	if err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Application has shut down gracefully.")
}
