package narrative

import (
	"errors"
	"testing"

	"github.com/tatianab/caravan-trail/internal/ledger"
	"github.com/tatianab/caravan-trail/internal/models"
)

func TestParseEncounter(t *testing.T) {
	text := "```json\n" + `{
  "title": "The Salt Trader",
  "description": "A hooded figure waves from a dune.",
  "choices": [
    {"id": "trade", "text": "Trade rations for water.", "type": "Diplomatic", "riskLabel": "Moderate risk"},
    {"id": "rob", "text": "Take everything.", "type": "aggressive", "riskLabel": "High risk"}
  ],
  "extra": "ignored"
}` + "\n```"

	ev, err := ParseEncounter(text)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ev.Title != "The Salt Trader" {
		t.Errorf("Unexpected title %q", ev.Title)
	}
	if len(ev.Choices) != 2 {
		t.Fatalf("Expected 2 choices, got %d", len(ev.Choices))
	}
	if ev.Choices[0].Type != models.ChoiceDiplomatic {
		t.Errorf("Expected diplomatic, got %s", ev.Choices[0].Type)
	}
	if ev.Choices[1].RiskLabel != "High risk" {
		t.Errorf("Unexpected risk label %q", ev.Choices[1].RiskLabel)
	}
}

func TestParseEncounterWithChatter(t *testing.T) {
	text := `Sure! Here is your encounter: {"title": "Echo", "description": "A voice repeats your names.", "choices": [{"id": "a", "text": "Listen", "type": "neutral", "riskLabel": "Mind contamination"}]} Enjoy.`
	ev, err := ParseEncounter(text)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ev.Choices[0].ID != "a" {
		t.Errorf("Unexpected choice %+v", ev.Choices[0])
	}
}

func TestParseEncounterInvalid(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field string
	}{
		{"Not JSON", "the storyteller is asleep", ""},
		{"Broken JSON", `{"title": "x",`, ""},
		{"Missing Title", `{"description": "d", "choices": [{"id": "a", "text": "t", "type": "neutral", "riskLabel": "Safe"}]}`, "title"},
		{"Empty Description", `{"title": "t", "description": "  ", "choices": [{"id": "a", "text": "t", "type": "neutral", "riskLabel": "Safe"}]}`, "description"},
		{"No Choices", `{"title": "t", "description": "d", "choices": []}`, "choices"},
		{"Unknown Type", `{"title": "t", "description": "d", "choices": [{"id": "a", "text": "t", "type": "cowardly", "riskLabel": "Safe"}]}`, "choices[0].type"},
		{"Template Copied", `{"title": "t", "description": "d", "choices": [{"id": "a", "text": "t", "type": "aggressive | diplomatic", "riskLabel": "Safe"}]}`, "choices[0].type"},
		{"Missing Risk", `{"title": "t", "description": "d", "choices": [{"id": "a", "text": "t", "type": "neutral"}]}`, "choices[0].riskLabel"},
		{"Duplicate Ids", `{"title": "t", "description": "d", "choices": [{"id": "a", "text": "t", "type": "neutral", "riskLabel": "Safe"}, {"id": "a", "text": "u", "type": "neutral", "riskLabel": "Safe"}]}`, "choices[1].id"},
		{"Wrong Field Type", `{"title": 7, "description": "d", "choices": []}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEncounter(tt.text)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.field == "" {
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %T: %v", err, err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestParseResolution(t *testing.T) {
	text := `{
  "outcomeText": "Sarge takes a bolt to the shoulder.",
  "foodChange": -3.14,
  "moodChange": -10.4,
  "distanceChange": 5,
  "crewStatusChanges": [{"memberIndex": 2, "newStatus": "Injured"}, {"memberIndex": 9, "newStatus": "dead"}]
}`
	res, err := ParseResolution(text)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.FoodChange != -3.1 {
		t.Errorf("Expected food -3.1, got %v", res.FoodChange)
	}
	if res.MoodChange != -10 {
		t.Errorf("Expected mood -10, got %d", res.MoodChange)
	}
	if res.DistanceChange != 5 {
		t.Errorf("Expected distance 5, got %d", res.DistanceChange)
	}
	if len(res.CrewStatusChanges) != 2 {
		t.Fatalf("Expected 2 crew changes, got %d", len(res.CrewStatusChanges))
	}
	if res.CrewStatusChanges[0].NewStatus != models.StatusInjured || res.CrewStatusChanges[0].MemberIndex != 2 {
		t.Errorf("Unexpected change %+v", res.CrewStatusChanges[0])
	}
	// Out-of-range indices survive parsing; the ledger ignores them.
	if res.CrewStatusChanges[1].MemberIndex != 9 {
		t.Errorf("Unexpected change %+v", res.CrewStatusChanges[1])
	}
}

func TestParseResolutionWithoutCrewChanges(t *testing.T) {
	res, err := ParseResolution(`{"outcomeText": "Nothing happens.", "foodChange": 0, "moodChange": 0, "distanceChange": 0}`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.CrewStatusChanges == nil || len(res.CrewStatusChanges) != 0 {
		t.Errorf("Expected an empty change list, got %#v", res.CrewStatusChanges)
	}
}

func TestParseResolutionHugeValues(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		food     float64
		mood     int
		distance int
		changes  int
	}{
		{"Huge Gains", `{"outcomeText": "o", "foodChange": 1e300, "moodChange": 1e19, "distanceChange": 1e19}`, 1e6, 1e6, 1e6, 0},
		{"Huge Losses", `{"outcomeText": "o", "foodChange": -1e300, "moodChange": -1e19, "distanceChange": -1e19}`, -1e6, -1e6, -1e6, 0},
		{"Huge Index", `{"outcomeText": "o", "foodChange": 0, "moodChange": 0, "distanceChange": 0, "crewStatusChanges": [{"memberIndex": 1e19, "newStatus": "dead"}, {"memberIndex": -3, "newStatus": "dead"}, {"memberIndex": 1, "newStatus": "dead"}]}`, 0, 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseResolution(tt.text)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if res.FoodChange != tt.food || res.MoodChange != tt.mood || res.DistanceChange != tt.distance {
				t.Errorf("Expected deltas %v/%d/%d, got %v/%d/%d", tt.food, tt.mood, tt.distance, res.FoodChange, res.MoodChange, res.DistanceChange)
			}
			if len(res.CrewStatusChanges) != tt.changes {
				t.Errorf("Expected %d crew changes, got %+v", tt.changes, res.CrewStatusChanges)
			}
		})
	}
}

func TestHugeDistanceGainReachesDestination(t *testing.T) {
	res, err := ParseResolution(`{"outcomeText": "A wormhole.", "foodChange": 0, "moodChange": 1e19, "distanceChange": 1e19}`)
	if err != nil {
		t.Fatal(err)
	}
	s := models.NewSession()
	s.DistanceTraveled = 500
	s.Mood = 40

	next := ledger.ApplyResolution(s, res)
	if next.DistanceTraveled != next.DistanceTotal {
		t.Errorf("Expected distance %d, got %d", next.DistanceTotal, next.DistanceTraveled)
	}
	if next.Mood != 100 {
		t.Errorf("Expected mood 100, got %d", next.Mood)
	}
}

func TestParseResolutionInvalid(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field string
	}{
		{"Missing Outcome", `{"foodChange": 0, "moodChange": 0, "distanceChange": 0}`, "outcomeText"},
		{"Missing Food", `{"outcomeText": "o", "moodChange": 0, "distanceChange": 0}`, "foodChange"},
		{"Missing Mood", `{"outcomeText": "o", "foodChange": 0, "distanceChange": 0}`, "moodChange"},
		{"Missing Distance", `{"outcomeText": "o", "foodChange": 0, "moodChange": 0}`, "distanceChange"},
		{"Unknown Status", `{"outcomeText": "o", "foodChange": 0, "moodChange": 0, "distanceChange": 0, "crewStatusChanges": [{"memberIndex": 0, "newStatus": "undead"}]}`, "crewStatusChanges[0].newStatus"},
		{"Fractional Index", `{"outcomeText": "o", "foodChange": 0, "moodChange": 0, "distanceChange": 0, "crewStatusChanges": [{"memberIndex": 0.5, "newStatus": "dead"}]}`, "crewStatusChanges[0].memberIndex"},
		{"Missing Index", `{"outcomeText": "o", "foodChange": 0, "moodChange": 0, "distanceChange": 0, "crewStatusChanges": [{"newStatus": "dead"}]}`, "crewStatusChanges[0].memberIndex"},
		{"String Delta", `{"outcomeText": "o", "foodChange": "-3", "moodChange": 0, "distanceChange": 0}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResolution(tt.text)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.field == "" {
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %T: %v", err, err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}
