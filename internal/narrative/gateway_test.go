package narrative

import (
	"context"
	"errors"
	"math/rand/v2"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tatianab/caravan-trail/internal/models"
)

// stubGenerator replays canned responses and records what it was asked.
type stubGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error
	systems []string
	prompts []string
}

func (s *stubGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systems = append(s.systems, system)
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no reply queued")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func travelSession() models.Session {
	s := models.NewSession()
	s.Phase = models.PhaseEventGenerating
	s.Day = 2
	s.Food = 44
	s.DistanceTraveled = 25
	return s
}

const validEncounter = `{"title": "Glass Rain", "description": "Shards fall from a clear sky.", "choices": [
  {"id": "cover", "text": "Take cover under the wagons.", "type": "neutral", "riskLabel": "Safe"},
  {"id": "push", "text": "Push through.", "type": "aggressive", "riskLabel": "High risk"}]}`

func TestGenerateEncounter(t *testing.T) {
	gen := &stubGenerator{replies: []string{validEncounter}}
	g := NewGateway(gen, WithLanguage("French"), WithSeed(7))

	ev := g.GenerateEncounter(context.Background(), travelSession())
	if ev.Title != "Glass Rain" || len(ev.Choices) != 2 {
		t.Fatalf("Unexpected encounter %+v", ev)
	}

	if len(gen.prompts) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(gen.prompts))
	}
	prompt := gen.prompts[0]
	for _, want := range []string{"Day: 2", "Food: 44.0 kg", "Crew mood: 100/100", "Arid Shrubland", "Vance [leader: healthy]"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q:\n%s", want, prompt)
		}
	}
	focused := false
	for _, f := range Focuses {
		if strings.Contains(prompt, f) {
			focused = true
		}
	}
	if !focused {
		t.Error("Prompt does not name a focus category")
	}
	if !strings.Contains(gen.systems[0], "French") {
		t.Errorf("Persona does not carry the language: %s", gen.systems[0])
	}
}

func TestGenerateEncounterDesperationHints(t *testing.T) {
	gen := &stubGenerator{replies: []string{validEncounter}}
	g := NewGateway(gen)

	s := travelSession()
	s.Food = 4.5
	s.Mood = 20
	g.GenerateEncounter(context.Background(), s)

	if !strings.Contains(gen.prompts[0], "desperate") {
		t.Error("Expected a low-food hint")
	}
	if !strings.Contains(gen.prompts[0], "mental breakdown") {
		t.Error("Expected a low-mood hint")
	}
}

func TestGenerateEncounterFallback(t *testing.T) {
	tests := []struct {
		name string
		gen  Generator
	}{
		{"Transport Error", &stubGenerator{err: errors.New("connection refused")}},
		{"Malformed", &stubGenerator{replies: []string{"I refuse."}}},
		{"Invalid Shape", &stubGenerator{replies: []string{`{"title": "x", "description": "y", "choices": []}`}}},
		{"Offline", OfflineGenerator{}},
		{"Nil Generator", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGateway(tt.gen)
			ev := g.GenerateEncounter(context.Background(), travelSession())
			if !reflect.DeepEqual(ev, FallbackEncounter()) {
				t.Errorf("Expected fallback encounter, got %+v", ev)
			}
		})
	}
}

func TestGenerateEncounterTimeout(t *testing.T) {
	slow := generatorFunc(func(ctx context.Context, system, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	g := NewGateway(slow, WithTimeout(20*time.Millisecond))

	start := time.Now()
	ev := g.GenerateEncounter(context.Background(), travelSession())
	if time.Since(start) > 2*time.Second {
		t.Error("Timeout was not applied")
	}
	if !reflect.DeepEqual(ev, FallbackEncounter()) {
		t.Errorf("Expected fallback encounter, got %+v", ev)
	}
}

type generatorFunc func(ctx context.Context, system, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

func TestFocusSelectionIsSeeded(t *testing.T) {
	pick := func() []string {
		g := NewGateway(nil, WithRand(rand.New(rand.NewPCG(1, 2))))
		var out []string
		for i := 0; i < 8; i++ {
			out = append(out, g.pickFocus())
		}
		return out
	}
	a, b := pick(), pick()
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Same seed gave different focuses:\n%v\n%v", a, b)
	}
}

func TestResolveEncounter(t *testing.T) {
	gen := &stubGenerator{replies: []string{`{"outcomeText": "Doc is cut badly.", "foodChange": -1, "moodChange": -8, "distanceChange": 0, "crewStatusChanges": [{"memberIndex": 1, "newStatus": "injured"}]}`}}
	g := NewGateway(gen)

	s := travelSession()
	s.Phase = models.PhaseEventDecision
	ev, _ := ParseEncounter(validEncounter)
	s.CurrentEvent = &ev

	res, err := g.ResolveEncounter(context.Background(), s, "push")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.OutcomeText != "Doc is cut badly." || len(res.CrewStatusChanges) != 1 {
		t.Errorf("Unexpected resolution %+v", res)
	}

	prompt := gen.prompts[0]
	for _, want := range []string{"Glass Rain", `"Push through." (High risk)`, "food 44.0 kg", `"memberIndex":1`, `"name":"Doc"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestResolveEncounterUnknownChoice(t *testing.T) {
	gen := &stubGenerator{replies: []string{`{"outcomeText": "Confusion.", "foodChange": 0, "moodChange": -1, "distanceChange": 0}`}}
	g := NewGateway(gen)

	s := travelSession()
	ev, _ := ParseEncounter(validEncounter)
	s.CurrentEvent = &ev

	res, err := g.ResolveEncounter(context.Background(), s, "dance")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.OutcomeText != "Confusion." {
		t.Errorf("Unexpected resolution %+v", res)
	}
	if !strings.Contains(gen.prompts[0], `"undefined" (undefined)`) {
		t.Errorf("Expected undefined option context:\n%s", gen.prompts[0])
	}
}

func TestResolveEncounterWithoutEvent(t *testing.T) {
	gen := &stubGenerator{}
	g := NewGateway(gen)

	_, err := g.ResolveEncounter(context.Background(), travelSession(), "push")
	if !errors.Is(err, ErrNoActiveEncounter) {
		t.Fatalf("Expected ErrNoActiveEncounter, got %v", err)
	}
	if len(gen.prompts) != 0 {
		t.Error("No request should be issued without an encounter")
	}
}

func TestResolveEncounterFallback(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"Transport Error", "", errors.New("503")},
		{"Garbage", "lol", nil},
		{"Bad Status", `{"outcomeText": "o", "foodChange": 0, "moodChange": 0, "distanceChange": 0, "crewStatusChanges": [{"memberIndex": 0, "newStatus": "ascended"}]}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{err: tt.err}
			if tt.reply != "" {
				gen.replies = []string{tt.reply}
			}
			g := NewGateway(gen)

			s := travelSession()
			ev := FallbackEncounter()
			s.CurrentEvent = &ev

			res, err := g.ResolveEncounter(context.Background(), s, "wait")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !reflect.DeepEqual(res, FallbackResolution()) {
				t.Errorf("Expected fallback resolution, got %+v", res)
			}
		})
	}
}

func TestAcceptsResolutionAgainstBias(t *testing.T) {
	// A safe choice that kills everyone is still applied as generated.
	gen := &stubGenerator{replies: []string{`{"outcomeText": "The ground opens.", "foodChange": -50, "moodChange": -100, "distanceChange": 0, "crewStatusChanges": [{"memberIndex": 0, "newStatus": "dead"}]}`}}
	g := NewGateway(gen)

	s := travelSession()
	ev := FallbackEncounter()
	s.CurrentEvent = &ev

	res, err := g.ResolveEncounter(context.Background(), s, "wait")
	if err != nil {
		t.Fatal(err)
	}
	if !res.HasDeath() || res.FoodChange != -50 {
		t.Errorf("Expected generated resolution to pass through, got %+v", res)
	}
}
