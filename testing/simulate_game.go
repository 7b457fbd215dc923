package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tatianab/caravan-trail/internal/config"
	"github.com/tatianab/caravan-trail/internal/engine"
	"github.com/tatianab/caravan-trail/internal/models"
	"github.com/tatianab/caravan-trail/internal/narrative"
)

const maxTurns = 60

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(cfg.LogLevel).With().Timestamp().Logger()

	gen, closeGen, err := narrative.NewGenerator(ctx, cfg.NarrativeProvider, cfg.NarrativeAPIKey, cfg.NarrativeBaseURL, cfg.NarrativeModel)
	if err != nil {
		log.Fatalf("Failed to create narrator: %v", err)
	}
	defer closeGen()

	gw := narrative.NewGateway(gen,
		narrative.WithLogger(logger),
		narrative.WithLanguage(cfg.NarrativeLanguage),
		narrative.WithTimeout(cfg.NarrativeTimeout),
		narrative.WithRateLimit(cfg.NarrativeRate, 2),
		narrative.WithSeed(cfg.Seed),
	)

	var opts []engine.Option
	opts = append(opts, engine.WithLogger(logger))
	if cfg.ChronicleDir != "" {
		opts = append(opts, engine.WithRecorder(models.NewChronicleStore(cfg.ChronicleDir)))
	}
	eng := engine.New(gw, opts...)

	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	if err := eng.StartSession(); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	printed := 0

	for turn := 1; turn <= maxTurns; turn++ {
		if err := eng.AdvanceTurn(ctx); err != nil {
			log.Fatalf("Failed to advance: %v", err)
		}
		s := eng.Snapshot()
		printed = printLogs(s, printed)
		if s.Phase.IsTerminal() {
			break
		}

		ev := s.CurrentEvent
		fmt.Printf("--- %s ---\n%s\n", ev.Title, ev.Description)
		choice := ev.Choices[rng.IntN(len(ev.Choices))]
		fmt.Printf("Autopilot picks: %s (%s, %s)\n", choice.Text, choice.Type, choice.RiskLabel)

		if err := eng.ChooseOption(ctx, choice.ID); err != nil {
			log.Fatalf("Failed to resolve: %v", err)
		}
		s = eng.Snapshot()
		printed = printLogs(s, printed)
		fmt.Printf("Food=%.1f kg, Mood=%d, Distance=%d/%d km, Alive=%d\n\n", s.Food, s.Mood, s.DistanceTraveled, s.DistanceTotal, s.AliveCount())
		if s.Phase.IsTerminal() {
			break
		}

		if err := eng.AcknowledgeResolution(); err != nil {
			log.Fatalf("Failed to acknowledge: %v", err)
		}
	}

	s := eng.Snapshot()
	switch s.Phase {
	case models.PhaseVictory:
		fmt.Printf("Run ended: the caravan reached the ship on day %d with %d survivors.\n", s.Day, s.AliveCount())
	case models.PhaseGameOver:
		fmt.Printf("Run ended: the crew was lost on day %d, %d km short.\n", s.Day, s.DistanceRemaining())
	default:
		fmt.Printf("Autopilot stopped after %d turns in %s.\n", maxTurns, s.Phase)
	}
}

func printLogs(s models.Session, from int) int {
	for _, l := range s.Logs[from:] {
		fmt.Println(l)
	}
	return len(s.Logs)
}
