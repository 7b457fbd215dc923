// Package narrative turns game state into requests for generated encounters
// and resolutions, and turns whatever comes back into typed content. Every
// failure degrades to a fixed fallback so a turn can always finish.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tatianab/caravan-trail/internal/models"
	"github.com/tatianab/caravan-trail/internal/telemetry"
)

// ErrNoActiveEncounter means a resolution was requested while no encounter
// was on the table. It is a caller bug, not a generator failure.
var ErrNoActiveEncounter = errors.New("no active encounter to resolve")

// Gateway is the client side of the narrative contract.
type Gateway struct {
	gen      Generator
	language string
	timeout  time.Duration
	limiter  *rate.Limiter
	log      zerolog.Logger
	tracer   trace.Tracer

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Gateway)

func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

func WithLanguage(lang string) Option {
	return func(g *Gateway) {
		if lang != "" {
			g.language = lang
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimit caps generator requests per second.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(g *Gateway) {
		if perSecond > 0 && burst > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithRand injects the source used to pick encounter focuses.
func WithRand(r *rand.Rand) Option {
	return func(g *Gateway) {
		if r != nil {
			g.rng = r
		}
	}
}

// WithSeed seeds focus selection. A seed of 0 means a time-based seed.
func WithSeed(seed int64) Option {
	return func(g *Gateway) {
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		g.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	}
}

func NewGateway(gen Generator, opts ...Option) *Gateway {
	if gen == nil {
		gen = OfflineGenerator{}
	}
	g := &Gateway{
		gen:      gen,
		language: "English",
		timeout:  30 * time.Second,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		log:      zerolog.Nop(),
		tracer:   telemetry.Tracer("narrative"),
	}
	WithSeed(0)(g)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) pickFocus() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Focuses[g.rng.IntN(len(Focuses))]
}

func (g *Gateway) request(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	persona, err := renderPersona(g.language)
	if err != nil {
		return "", err
	}
	return g.gen.Generate(ctx, persona, prompt)
}

func (g *Gateway) logFailure(err error, what string) {
	ev := g.log.Warn()
	if errors.Is(err, ErrOffline) {
		ev = g.log.Debug()
	}
	ev.Err(err).Str("request", what).Msg("narrative request failed, using fallback")
}

// GenerateEncounter asks the generator for a new encounter built around s,
// which must already reflect the travel step that triggered it. It never
// fails: any problem yields FallbackEncounter.
func (g *Gateway) GenerateEncounter(ctx context.Context, s models.Session) models.Encounter {
	focus := g.pickFocus()

	ctx, span := g.tracer.Start(ctx, "narrative.generate_encounter",
		trace.WithAttributes(
			attribute.Int("game.day", s.Day),
			attribute.String("narrative.focus", focus),
		))
	defer span.End()

	ev, err := g.generateEncounter(ctx, s, focus)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("narrative.fallback", true))
		g.logFailure(err, "encounter")
		return FallbackEncounter()
	}

	span.SetAttributes(
		attribute.Bool("narrative.fallback", false),
		attribute.Int("narrative.choices", len(ev.Choices)),
	)
	g.log.Debug().Str("title", ev.Title).Str("focus", focus).Msg("encounter generated")
	return ev
}

func (g *Gateway) generateEncounter(ctx context.Context, s models.Session, focus string) (models.Encounter, error) {
	prompt, err := renderEncounterPrompt(s, focus)
	if err != nil {
		return models.Encounter{}, fmt.Errorf("failed to render encounter prompt: %w", err)
	}
	text, err := g.request(ctx, prompt)
	if err != nil {
		return models.Encounter{}, err
	}
	return ParseEncounter(text)
}

// ResolveEncounter asks the generator how the chosen option plays out. It
// returns ErrNoActiveEncounter when s has no current event; every other
// problem yields FallbackResolution.
func (g *Gateway) ResolveEncounter(ctx context.Context, s models.Session, choiceID string) (models.Resolution, error) {
	if s.CurrentEvent == nil {
		g.log.Error().Str("choice", choiceID).Msg("resolution requested without an active encounter")
		return models.Resolution{}, ErrNoActiveEncounter
	}
	ev := *s.CurrentEvent

	var chosen *models.Choice
	if c, ok := ev.FindChoice(choiceID); ok {
		chosen = &c
	} else {
		g.log.Warn().Str("choice", choiceID).Str("title", ev.Title).Msg("choice id not in encounter, resolving anyway")
	}

	ctx, span := g.tracer.Start(ctx, "narrative.resolve_encounter",
		trace.WithAttributes(
			attribute.Int("game.day", s.Day),
			attribute.String("narrative.choice", choiceID),
			attribute.Bool("narrative.choice_known", chosen != nil),
		))
	defer span.End()

	res, err := g.resolveEncounter(ctx, s, ev, chosen)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("narrative.fallback", true))
		g.logFailure(err, "resolution")
		return FallbackResolution(), nil
	}

	span.SetAttributes(attribute.Bool("narrative.fallback", false))
	return res, nil
}

func (g *Gateway) resolveEncounter(ctx context.Context, s models.Session, ev models.Encounter, chosen *models.Choice) (models.Resolution, error) {
	prompt, err := renderResolutionPrompt(s, ev, chosen)
	if err != nil {
		return models.Resolution{}, fmt.Errorf("failed to render resolution prompt: %w", err)
	}
	text, err := g.request(ctx, prompt)
	if err != nil {
		return models.Resolution{}, err
	}
	return ParseResolution(text)
}
