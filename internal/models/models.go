package models

import (
	"strings"

	"github.com/google/uuid"
)

// Phase is the single active step of the turn loop.
type Phase string

const (
	PhaseMenu            Phase = "MENU"
	PhaseTravel          Phase = "TRAVEL"
	PhaseEventGenerating Phase = "EVENT_GENERATING"
	PhaseEventDecision   Phase = "EVENT_DECISION"
	PhaseEventResolution Phase = "EVENT_RESOLUTION"
	PhaseGameOver        Phase = "GAME_OVER"
	PhaseVictory         Phase = "VICTORY"
)

// IsTerminal reports whether the phase absorbs every intent except a reset.
func (p Phase) IsTerminal() bool {
	return p == PhaseGameOver || p == PhaseVictory
}

// Biome is the current environment. It only flavors the narrative.
type Biome string

const (
	BiomeAridShrubland      Biome = "Arid Shrubland"
	BiomeTemperateForest    Biome = "Temperate Forest"
	BiomeIceSheet           Biome = "Ice Sheet"
	BiomeExtremeDesert      Biome = "Extreme Desert"
	BiomeTropicalRainforest Biome = "Tropical Rainforest"
)

type Role string

const (
	RoleLeader  Role = "leader"
	RoleMedic   Role = "medic"
	RoleSoldier Role = "soldier"
	RoleCook    Role = "cook"
)

// Status is a crew member's condition. Dead is absorbing.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusInjured  Status = "injured"
	StatusStarving Status = "starving"
	StatusDead     Status = "dead"
)

// ParseStatus accepts any casing of a known status.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusHealthy, StatusInjured, StatusStarving, StatusDead:
		return st, true
	}
	return "", false
}

type ChoiceType string

const (
	ChoiceAggressive ChoiceType = "aggressive"
	ChoiceDiplomatic ChoiceType = "diplomatic"
	ChoiceSacrifice  ChoiceType = "sacrifice"
	ChoiceNeutral    ChoiceType = "neutral"
)

// ParseChoiceType accepts any casing of a known choice type.
func ParseChoiceType(s string) (ChoiceType, bool) {
	switch ct := ChoiceType(strings.ToLower(strings.TrimSpace(s))); ct {
	case ChoiceAggressive, ChoiceDiplomatic, ChoiceSacrifice, ChoiceNeutral:
		return ct, true
	}
	return "", false
}

// CrewMember is one traveller. ID and Role never change after creation.
type CrewMember struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Role   Role   `yaml:"role" json:"role"`
	Status Status `yaml:"status" json:"status"`
}

func (c CrewMember) Alive() bool {
	return c.Status != StatusDead
}

// Choice is one mutually exclusive option of an encounter.
type Choice struct {
	ID        string     `yaml:"id" json:"id"`
	Text      string     `yaml:"text" json:"text"`
	Type      ChoiceType `yaml:"type" json:"type"`
	RiskLabel string     `yaml:"risk_label" json:"riskLabel"`
}

// Encounter is a generated narrative event awaiting a single decision.
type Encounter struct {
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Choices     []Choice `yaml:"choices" json:"choices"`
}

// FindChoice looks up a choice by id.
func (e *Encounter) FindChoice(id string) (Choice, bool) {
	for _, c := range e.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// CrewStatusChange overwrites the status of the crew member at MemberIndex.
type CrewStatusChange struct {
	MemberIndex int    `yaml:"member_index" json:"memberIndex"`
	NewStatus   Status `yaml:"new_status" json:"newStatus"`
}

// Resolution is the generated outcome of a chosen option.
type Resolution struct {
	OutcomeText       string             `yaml:"outcome_text" json:"outcomeText"`
	FoodChange        float64            `yaml:"food_change" json:"foodChange"`
	MoodChange        int                `yaml:"mood_change" json:"moodChange"`
	DistanceChange    int                `yaml:"distance_change" json:"distanceChange"`
	CrewStatusChanges []CrewStatusChange `yaml:"crew_status_changes" json:"crewStatusChanges"`
}

// HasDeath reports whether the resolution kills anyone.
func (r *Resolution) HasDeath() bool {
	for _, c := range r.CrewStatusChanges {
		if c.NewStatus == StatusDead {
			return true
		}
	}
	return false
}

// Session is the whole mutable game state of one run.
type Session struct {
	RunID            string       `yaml:"run_id" json:"runId"`
	Phase            Phase        `yaml:"phase" json:"phase"`
	Day              int          `yaml:"day" json:"day"`
	DistanceTraveled int          `yaml:"distance_traveled" json:"distanceTraveled"`
	DistanceTotal    int          `yaml:"distance_total" json:"distanceTotal"`
	Food             float64      `yaml:"food" json:"food"`
	Mood             int          `yaml:"mood" json:"mood"`
	Crew             []CrewMember `yaml:"crew" json:"crew"`
	Biome            Biome        `yaml:"biome" json:"biome"`
	Logs             []string     `yaml:"logs" json:"logs"`
	CurrentEvent     *Encounter   `yaml:"current_event,omitempty" json:"currentEvent,omitempty"`
	LastResolution   *Resolution  `yaml:"last_resolution,omitempty" json:"lastResolution,omitempty"`

	// Pending is set while a generator request is outstanding.
	Pending bool `yaml:"pending" json:"pending"`
}

// AliveCount returns the number of crew members that are not dead.
func (s Session) AliveCount() int {
	n := 0
	for _, c := range s.Crew {
		if c.Alive() {
			n++
		}
	}
	return n
}

// DistanceRemaining is the distance still to cover.
func (s Session) DistanceRemaining() int {
	if s.DistanceTraveled >= s.DistanceTotal {
		return 0
	}
	return s.DistanceTotal - s.DistanceTraveled
}

// Clone returns a deep copy that shares no slices or pointers with s.
func (s Session) Clone() Session {
	out := s
	out.Crew = append([]CrewMember(nil), s.Crew...)
	out.Logs = append([]string(nil), s.Logs...)
	if s.CurrentEvent != nil {
		ev := *s.CurrentEvent
		ev.Choices = append([]Choice(nil), s.CurrentEvent.Choices...)
		out.CurrentEvent = &ev
	}
	if s.LastResolution != nil {
		res := *s.LastResolution
		res.CrewStatusChanges = append([]CrewStatusChange(nil), s.LastResolution.CrewStatusChanges...)
		out.LastResolution = &res
	}
	return out
}

// NewCrew returns the starting party with fresh ids.
func NewCrew() []CrewMember {
	return []CrewMember{
		{ID: uuid.NewString(), Name: "Vance", Role: RoleLeader, Status: StatusHealthy},
		{ID: uuid.NewString(), Name: "Doc", Role: RoleMedic, Status: StatusHealthy},
		{ID: uuid.NewString(), Name: "Sarge", Role: RoleSoldier, Status: StatusHealthy},
		{ID: uuid.NewString(), Name: "Cook", Role: RoleCook, Status: StatusHealthy},
	}
}

// NewSession returns the initial state of a run, parked in the menu.
func NewSession() Session {
	return Session{
		RunID:            uuid.NewString(),
		Phase:            PhaseMenu,
		Day:              1,
		DistanceTraveled: 0,
		DistanceTotal:    1000,
		Food:             50,
		Mood:             100,
		Crew:             NewCrew(),
		Biome:            BiomeAridShrubland,
		Logs: []string{
			"Systems initializing...",
			"Life support nominal.",
			"Caravan assembled. The escape ship waits 1000 km to the east.",
		},
	}
}
