package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"claimguard/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build module wiring (ledger, coordination store, metrics).
// 3) Serve /claim, /tx-guard, /health/claims and /metrics until SIGTERM.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("claimguard api starting")
	app, err := bootstrap.BuildAPI(ctx)
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("claimguard api stopped with error: %v", err)
	}
}
