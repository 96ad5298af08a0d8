package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/roman-kulish/live-spectrogram/cmd/spectrogram/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli app.CLI
	kctx := kong.Parse(&cli,
		kong.Name("spectrogram"),
		kong.Description("Live scrolling spectrogram of a stream of magnitude vectors."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	if err := kctx.Run(&cli, logger, &logLevel); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
