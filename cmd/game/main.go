package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tatianab/caravan-trail/internal/config"
	"github.com/tatianab/caravan-trail/internal/engine"
	"github.com/tatianab/caravan-trail/internal/models"
	"github.com/tatianab/caravan-trail/internal/narrative"
	"github.com/tatianab/caravan-trail/internal/telemetry"
	"github.com/tatianab/caravan-trail/internal/tui"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Printf("Error opening log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if telemetry.Enabled() {
		shutdown, err := telemetry.Setup(ctx, telemetry.Narrator{
			Provider: cfg.NarrativeProvider,
			Model:    cfg.NarrativeModel,
			Online:   cfg.NarrativeEnabled(),
		})
		if err != nil {
			logger.Warn().Err(err).Msg("tracing disabled")
		} else {
			defer flushTraces(shutdown, logger)
		}
	}

	gen, closeGen, err := narrative.NewGenerator(ctx, cfg.NarrativeProvider, cfg.NarrativeAPIKey, cfg.NarrativeBaseURL, cfg.NarrativeModel)
	if err != nil {
		fmt.Printf("Error creating narrator: %v\n", err)
		os.Exit(1)
	}
	defer closeGen()

	logger.Info().
		Str("provider", cfg.NarrativeProvider).
		Str("model", cfg.NarrativeModel).
		Bool("online", cfg.NarrativeEnabled()).
		Msg("narrator ready")

	gw := narrative.NewGateway(gen,
		narrative.WithLogger(logger.With().Str("component", "narrative").Logger()),
		narrative.WithLanguage(cfg.NarrativeLanguage),
		narrative.WithTimeout(cfg.NarrativeTimeout),
		narrative.WithRateLimit(cfg.NarrativeRate, 2),
		narrative.WithSeed(cfg.Seed),
	)

	opts := []engine.Option{engine.WithLogger(logger.With().Str("component", "engine").Logger())}
	info := tui.Info{Offline: !cfg.NarrativeEnabled()}
	if cfg.ChronicleDir != "" {
		store := models.NewChronicleStore(cfg.ChronicleDir)
		opts = append(opts, engine.WithRecorder(store))
		info.Chronicles = store
	}

	eng := engine.New(gw, opts...)

	if err := tui.Run(eng, info); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// flushTraces gives the exporter a few seconds to send buffered spans.
func flushTraces(shutdown func(context.Context) error, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to flush traces")
	}
}

// newLogger writes JSON lines to cfg.LogFile, or to a console writer on
// stderr when the file is "-". The terminal UI owns stdout.
func newLogger(cfg *config.Config) (zerolog.Logger, func(), error) {
	var w io.Writer
	closeFn := func() {}
	if cfg.LogFile == "-" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	} else {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), closeFn, err
		}
		w = f
		closeFn = func() { f.Close() }
	}

	logger := zerolog.New(w).Level(cfg.LogLevel).With().Timestamp().Logger()
	return logger, closeFn, nil
}
