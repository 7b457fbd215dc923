package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tatianab/caravan-trail/internal/ledger"
	"github.com/tatianab/caravan-trail/internal/models"
	"github.com/tatianab/caravan-trail/internal/telemetry"
)

var (
	// ErrInvalidPhase is returned when an intent arrives in a phase that does
	// not accept it. The session is left untouched.
	ErrInvalidPhase = errors.New("invalid phase for action")
	// ErrBusy is returned while a narrative request is outstanding.
	ErrBusy = errors.New("a turn is already in progress")
)

// Signal tags an update with the cue the presentation layer should play.
type Signal string

const (
	SignalNone         Signal = ""
	SignalJourneyStart Signal = "journey_start"
	SignalEncounter    Signal = "encounter"
	SignalSetback      Signal = "setback"
	SignalReprieve     Signal = "reprieve"
	SignalGameOver     Signal = "game_over"
	SignalVictory      Signal = "victory"
)

// Update is emitted to subscribers after every mutation.
type Update struct {
	Session models.Session
	Signal  Signal
}

// Narrator produces generated content. narrative.Gateway implements it.
type Narrator interface {
	GenerateEncounter(ctx context.Context, s models.Session) models.Encounter
	ResolveEncounter(ctx context.Context, s models.Session, choiceID string) (models.Resolution, error)
}

// Recorder is handed the final snapshot of every run that ends.
type Recorder interface {
	Record(s models.Session) error
}

// Engine owns the single game session and drives it through the turn loop.
// Narrative requests are made without holding the lock; the epoch counter
// lets a response that outlived its session be dropped.
type Engine struct {
	narrator   Narrator
	recorder   Recorder
	newSession func() models.Session
	log        zerolog.Logger
	tracer     trace.Tracer

	mu      sync.Mutex
	session models.Session
	epoch   uint64
	subs    map[int]chan Update
	nextSub int
}

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithSessionFactory replaces models.NewSession as the source of fresh runs.
func WithSessionFactory(f func() models.Session) Option {
	return func(e *Engine) {
		if f != nil {
			e.newSession = f
		}
	}
}

func New(narrator Narrator, opts ...Option) *Engine {
	e := &Engine{
		narrator:   narrator,
		newSession: models.NewSession,
		log:        zerolog.Nop(),
		tracer:     telemetry.Tracer("engine"),
		subs:       make(map[int]chan Update),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.session = e.newSession()
	e.session.Phase = models.PhaseMenu
	return e
}

// Snapshot returns a deep copy of the current session.
func (e *Engine) Snapshot() models.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone()
}

// Subscribe returns a channel that receives an Update after every mutation,
// and a function that unsubscribes and closes it. A subscriber that falls
// behind loses its oldest pending updates.
func (e *Engine) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 16)

	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subs, id)
			close(ch)
		})
	}
}

func (e *Engine) emitLocked(sig Signal) {
	u := Update{Session: e.session.Clone(), Signal: sig}
	for _, ch := range e.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

func (e *Engine) setPhaseLocked(p models.Phase) {
	if e.session.Phase == p {
		return
	}
	e.log.Info().
		Str("run", e.session.RunID).
		Str("from", string(e.session.Phase)).
		Str("to", string(p)).
		Int("day", e.session.Day).
		Msg("phase transition")
	e.session.Phase = p
}

func (e *Engine) reject(intent string, err error) error {
	e.log.Warn().
		Err(err).
		Str("intent", intent).
		Str("phase", string(e.session.Phase)).
		Bool("pending", e.session.Pending).
		Msg("intent rejected")
	return err
}

// StartSession begins a fresh run from the menu or after a run has ended.
func (e *Engine) StartSession() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Phase != models.PhaseMenu && !e.session.Phase.IsTerminal() {
		return e.reject("start", ErrInvalidPhase)
	}

	e.epoch++
	e.session = e.newSession()
	e.session.Phase = models.PhaseMenu
	e.setPhaseLocked(models.PhaseTravel)
	e.emitLocked(SignalJourneyStart)
	return nil
}

// ResetSession drops the current run, whatever its phase, and returns to
// the menu. A request still in flight is discarded when it returns.
func (e *Engine) ResetSession() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.epoch++
	from := e.session.Phase
	e.session = e.newSession()
	e.session.Phase = models.PhaseMenu
	e.log.Info().Str("from", string(from)).Str("run", e.session.RunID).Msg("session reset")
	e.emitLocked(SignalNone)
}

// AdvanceTurn spends one day on the road and then waits for the next
// encounter. It is valid only in Travel with no request outstanding.
func (e *Engine) AdvanceTurn(ctx context.Context) error {
	ctx, span := e.tracer.Start(ctx, "engine.advance_turn")
	defer span.End()

	e.mu.Lock()
	if e.session.Pending {
		err := e.reject("advance", ErrBusy)
		e.mu.Unlock()
		return err
	}
	if e.session.Phase != models.PhaseTravel {
		err := e.reject("advance", ErrInvalidPhase)
		e.mu.Unlock()
		return err
	}

	step := ledger.ComputeTravelStep(e.session)
	next := ledger.ApplyTravelStep(e.session, step)
	next.Logs = append(next.Logs, fmt.Sprintf("Day %d: advanced %d km, consumed %.1f kg of food.",
		next.Day, step.DistanceGained, step.FoodConsumed))
	e.session = next
	e.setPhaseLocked(models.PhaseEventGenerating)

	span.SetAttributes(
		attribute.Int("game.day", next.Day),
		attribute.Float64("game.food", next.Food),
		attribute.Int("game.distance", next.DistanceTraveled),
	)

	if sig, ended := e.checkTerminalLocked(); ended {
		e.emitLocked(sig)
		e.mu.Unlock()
		return nil
	}

	e.session.Pending = true
	epoch := e.epoch
	request := e.session.Clone()
	e.emitLocked(SignalNone)
	e.mu.Unlock()

	ev := e.narrator.GenerateEncounter(ctx, request)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch || e.session.Phase != models.PhaseEventGenerating {
		e.log.Warn().Str("title", ev.Title).Msg("discarding encounter for a session that moved on")
		return nil
	}

	e.session.Pending = false
	e.session.CurrentEvent = &ev
	e.setPhaseLocked(models.PhaseEventDecision)
	e.emitLocked(SignalEncounter)
	return nil
}

// ChooseOption resolves the active encounter with the given choice. It is
// valid only in EventDecision with no request outstanding.
func (e *Engine) ChooseOption(ctx context.Context, choiceID string) error {
	ctx, span := e.tracer.Start(ctx, "engine.choose_option",
		trace.WithAttributes(attribute.String("game.choice", choiceID)))
	defer span.End()

	e.mu.Lock()
	if e.session.Pending {
		err := e.reject("choose", ErrBusy)
		e.mu.Unlock()
		return err
	}
	if e.session.Phase != models.PhaseEventDecision {
		err := e.reject("choose", ErrInvalidPhase)
		e.mu.Unlock()
		return err
	}

	e.session.Pending = true
	epoch := e.epoch
	request := e.session.Clone()
	e.emitLocked(SignalNone)
	e.mu.Unlock()

	res, err := e.narrator.ResolveEncounter(ctx, request, choiceID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch || e.session.Phase != models.PhaseEventDecision {
		e.log.Warn().Str("choice", choiceID).Msg("discarding resolution for a session that moved on")
		return nil
	}
	e.session.Pending = false
	if err != nil {
		e.log.Error().Err(err).Str("choice", choiceID).Msg("resolution contract violated")
		e.emitLocked(SignalNone)
		return fmt.Errorf("resolve %q: %w", choiceID, err)
	}

	next := ledger.ApplyResolution(e.session, res)
	next.Logs = append(next.Logs, "Outcome: "+res.OutcomeText)
	next.CurrentEvent = nil
	next.LastResolution = &res
	e.session = next
	e.setPhaseLocked(models.PhaseEventResolution)

	span.SetAttributes(
		attribute.Float64("game.food_change", res.FoodChange),
		attribute.Int("game.mood_change", res.MoodChange),
		attribute.Int("game.distance_change", res.DistanceChange),
	)

	if sig, ended := e.checkTerminalLocked(); ended {
		e.emitLocked(sig)
		return nil
	}

	sig := SignalReprieve
	if res.MoodChange < -10 || res.HasDeath() {
		sig = SignalSetback
	}
	e.emitLocked(sig)
	return nil
}

// AcknowledgeResolution dismisses the outcome report and returns to Travel.
func (e *Engine) AcknowledgeResolution() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Phase != models.PhaseEventResolution {
		return e.reject("acknowledge", ErrInvalidPhase)
	}
	e.session.LastResolution = nil
	e.setPhaseLocked(models.PhaseTravel)
	e.emitLocked(SignalNone)
	return nil
}

// checkTerminalLocked ends the run when the whole crew is dead or the
// destination is reached. A dead crew wins over arrival.
func (e *Engine) checkTerminalLocked() (Signal, bool) {
	s := &e.session
	if s.Phase == models.PhaseMenu || s.Phase.IsTerminal() {
		return SignalNone, false
	}

	var sig Signal
	switch {
	case s.AliveCount() == 0:
		sig = SignalGameOver
		e.setPhaseLocked(models.PhaseGameOver)
	case s.DistanceTraveled >= s.DistanceTotal:
		sig = SignalVictory
		e.setPhaseLocked(models.PhaseVictory)
	default:
		return SignalNone, false
	}

	s.CurrentEvent = nil
	s.LastResolution = nil
	s.Pending = false

	e.log.Info().
		Str("run", s.RunID).
		Str("outcome", string(s.Phase)).
		Int("day", s.Day).
		Int("survivors", s.AliveCount()).
		Msg("run ended")

	if e.recorder != nil {
		if err := e.recorder.Record(s.Clone()); err != nil {
			e.log.Error().Err(err).Str("run", s.RunID).Msg("failed to record chronicle")
		}
	}
	return sig, true
}
