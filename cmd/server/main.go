// Package main runs the marketplace API server: matching, connection
// lifecycle, community impact, and external supplier discovery behind a
// single HTTP surface.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/localloop/marketplace/internal/app/runtime"
)

func main() {
	// Missing .env is fine; configuration falls back to the environment.
	_ = godotenv.Load()

	a, err := runtime.NewApplication()
	if err != nil {
		log.Fatalf("failed to build application: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
