package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/0KvinayK0/android-pass/internal/cli"
	"github.com/0KvinayK0/android-pass/internal/config"
	"github.com/0KvinayK0/android-pass/internal/logging"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	token := os.Getenv("PASS_API_TOKEN")
	if token == "" {
		log.Fatal("PASS_API_TOKEN is not set")
	}

	app, err := cli.NewApp(ctx, cfg, token, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	app.Run(ctx)
}
