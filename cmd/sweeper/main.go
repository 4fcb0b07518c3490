package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"claimguard/internal/app/bootstrap"
)

// Sweeper process entrypoint. Returns stale processing leases to pending
// so another worker can retry them.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("claimguard sweeper starting")
	app, err := bootstrap.BuildSweeper(ctx)
	if err != nil {
		log.Fatalf("bootstrap sweeper failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("sweeper shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("claimguard sweeper stopped with error: %v", err)
	}
}
