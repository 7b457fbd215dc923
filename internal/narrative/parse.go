package narrative

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tatianab/caravan-trail/internal/ledger"
	"github.com/tatianab/caravan-trail/internal/models"
)

var errNoJSON = errors.New("no JSON object in generator output")

// ValidationError reports a generated payload that does not match the
// expected shape.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// extractJSON strips markdown fences and any chatter around the outermost
// JSON object.
func extractJSON(text string) (string, error) {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end < start {
		return "", errNoJSON
	}
	return clean[start : end+1], nil
}

type wireChoice struct {
	ID        *string `json:"id"`
	Text      *string `json:"text"`
	Type      *string `json:"type"`
	RiskLabel *string `json:"riskLabel"`
}

type wireEncounter struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Choices     []wireChoice `json:"choices"`
}

type wireCrewChange struct {
	MemberIndex *float64 `json:"memberIndex"`
	NewStatus   *string  `json:"newStatus"`
}

type wireResolution struct {
	OutcomeText       *string          `json:"outcomeText"`
	FoodChange        *float64         `json:"foodChange"`
	MoodChange        *float64         `json:"moodChange"`
	DistanceChange    *float64         `json:"distanceChange"`
	CrewStatusChanges []wireCrewChange `json:"crewStatusChanges"`
}

func requireText(field string, v *string) (string, error) {
	if v == nil {
		return "", invalid(field, "missing")
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return "", invalid(field, "empty")
	}
	return s, nil
}

// ParseEncounter decodes and validates generated encounter text.
func ParseEncounter(text string) (models.Encounter, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return models.Encounter{}, err
	}

	var w wireEncounter
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return models.Encounter{}, fmt.Errorf("failed to parse encounter JSON: %w", err)
	}

	title, err := requireText("title", w.Title)
	if err != nil {
		return models.Encounter{}, err
	}
	desc, err := requireText("description", w.Description)
	if err != nil {
		return models.Encounter{}, err
	}
	if len(w.Choices) == 0 {
		return models.Encounter{}, invalid("choices", "at least one choice is required")
	}

	ev := models.Encounter{Title: title, Description: desc}
	seen := make(map[string]bool, len(w.Choices))
	for i, wc := range w.Choices {
		field := fmt.Sprintf("choices[%d]", i)
		id, err := requireText(field+".id", wc.ID)
		if err != nil {
			return models.Encounter{}, err
		}
		if seen[id] {
			return models.Encounter{}, invalid(field+".id", "duplicate id %q", id)
		}
		seen[id] = true

		txt, err := requireText(field+".text", wc.Text)
		if err != nil {
			return models.Encounter{}, err
		}
		typ, err := requireText(field+".type", wc.Type)
		if err != nil {
			return models.Encounter{}, err
		}
		ct, ok := models.ParseChoiceType(typ)
		if !ok {
			return models.Encounter{}, invalid(field+".type", "unknown type %q", typ)
		}
		risk, err := requireText(field+".riskLabel", wc.RiskLabel)
		if err != nil {
			return models.Encounter{}, err
		}

		ev.Choices = append(ev.Choices, models.Choice{ID: id, Text: txt, Type: ct, RiskLabel: risk})
	}
	return ev, nil
}

// maxDelta bounds generated deltas so they convert to int safely. Any
// larger value already saturates the ledger's clamps.
const maxDelta = 1e6

func boundDelta(v float64) float64 {
	return math.Max(-maxDelta, math.Min(maxDelta, v))
}

// ParseResolution decodes and validates generated resolution text. A missing
// crewStatusChanges list means nobody's status changed.
func ParseResolution(text string) (models.Resolution, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return models.Resolution{}, err
	}

	var w wireResolution
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return models.Resolution{}, fmt.Errorf("failed to parse resolution JSON: %w", err)
	}

	outcome, err := requireText("outcomeText", w.OutcomeText)
	if err != nil {
		return models.Resolution{}, err
	}
	if w.FoodChange == nil {
		return models.Resolution{}, invalid("foodChange", "missing")
	}
	if w.MoodChange == nil {
		return models.Resolution{}, invalid("moodChange", "missing")
	}
	if w.DistanceChange == nil {
		return models.Resolution{}, invalid("distanceChange", "missing")
	}

	res := models.Resolution{
		OutcomeText:       outcome,
		FoodChange:        ledger.RoundFood(boundDelta(*w.FoodChange)),
		MoodChange:        int(math.Round(boundDelta(*w.MoodChange))),
		DistanceChange:    int(math.Round(boundDelta(*w.DistanceChange))),
		CrewStatusChanges: []models.CrewStatusChange{},
	}

	for i, wc := range w.CrewStatusChanges {
		field := fmt.Sprintf("crewStatusChanges[%d]", i)
		if wc.MemberIndex == nil {
			return models.Resolution{}, invalid(field+".memberIndex", "missing")
		}
		idx := *wc.MemberIndex
		if idx != math.Trunc(idx) {
			return models.Resolution{}, invalid(field+".memberIndex", "not an integer: %v", idx)
		}
		st, err := requireText(field+".newStatus", wc.NewStatus)
		if err != nil {
			return models.Resolution{}, err
		}
		status, ok := models.ParseStatus(st)
		if !ok {
			return models.Resolution{}, invalid(field+".newStatus", "unknown status %q", st)
		}
		if idx < 0 || idx > math.MaxInt32 {
			// No crew is that large; the ledger would skip it anyway.
			continue
		}
		res.CrewStatusChanges = append(res.CrewStatusChanges, models.CrewStatusChange{
			MemberIndex: int(idx),
			NewStatus:   status,
		})
	}
	return res, nil
}
