package narrative

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/tatianab/caravan-trail/internal/models"
)

//go:embed prompts/persona.txt
var personaPrompt string

//go:embed prompts/encounter.txt
var encounterPrompt string

//go:embed prompts/resolution.txt
var resolutionPrompt string

var (
	personaTmpl    = template.Must(template.New("persona").Parse(personaPrompt))
	encounterTmpl  = template.Must(template.New("encounter").Parse(encounterPrompt))
	resolutionTmpl = template.Must(template.New("resolution").Parse(resolutionPrompt))
)

// Focuses are the thematic categories an encounter is drawn from.
var Focuses = []string{
	"Environmental crisis (sandstorm, acid rain, extreme temperature)",
	"Resource shortage (rotting food, equipment failure)",
	"External threat (raiders, machines, rabid animals)",
	"Mysterious phenomenon (ancient ruins, psychic interference, time anomaly)",
	"Internal conflict (crew quarrels, mental collapse, even mutiny)",
	"Opportunity (wandering trader, crashed ship, oasis)",
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderPersona(language string) (string, error) {
	return render(personaTmpl, struct{ Language string }{Language: language})
}

// crewSummary is the compact one-line crew listing used for encounters.
func crewSummary(crew []models.CrewMember) string {
	parts := make([]string, 0, len(crew))
	for _, c := range crew {
		parts = append(parts, fmt.Sprintf("%s [%s: %s]", c.Name, c.Role, c.Status))
	}
	return strings.Join(parts, ", ")
}

func renderEncounterPrompt(s models.Session, focus string) (string, error) {
	return render(encounterTmpl, struct {
		Biome models.Biome
		Day   int
		Food  float64
		Mood  int
		Crew  string
		Focus string
	}{
		Biome: s.Biome,
		Day:   s.Day,
		Food:  s.Food,
		Mood:  s.Mood,
		Crew:  crewSummary(s.Crew),
		Focus: focus,
	})
}

func renderResolutionPrompt(s models.Session, ev models.Encounter, choice *models.Choice) (string, error) {
	type indexedMember struct {
		MemberIndex int `json:"memberIndex"`
		models.CrewMember
	}
	crew := make([]indexedMember, 0, len(s.Crew))
	for i, c := range s.Crew {
		crew = append(crew, indexedMember{MemberIndex: i, CrewMember: c})
	}
	crewJSON, err := json.Marshal(crew)
	if err != nil {
		return "", err
	}

	// An unknown choice id still gets resolved, with an undefined option.
	choiceText, risk := "undefined", "undefined"
	if choice != nil {
		choiceText, risk = choice.Text, choice.RiskLabel
	}

	return render(resolutionTmpl, struct {
		Title       string
		Description string
		ChoiceText  string
		RiskLabel   string
		Food        float64
		Mood        int
		Crew        string
	}{
		Title:       ev.Title,
		Description: ev.Description,
		ChoiceText:  choiceText,
		RiskLabel:   risk,
		Food:        s.Food,
		Mood:        s.Mood,
		Crew:        string(crewJSON),
	})
}
