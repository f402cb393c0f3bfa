// Command ledgerd serves the custody ledger over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"custodyledger/internal/platform/config"
)

func main() {
	cfg, err := config.LoadLedger()
	if err != nil {
		config.Exitf("ledgerd: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, newLogger(os.Stderr, cfg.LogLevel)); err != nil {
		config.Exitf("ledgerd: %v", err)
	}
}
