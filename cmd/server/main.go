package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sundayezeilo/shortlinks/internal/app"
)

func main() {
	if err := run(); err != nil {
		slog.Error("shortlinks exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	application, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Shutdown(); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	// blocks until SIGINT/SIGTERM or ctx is done
	return application.Start(ctx)
}
