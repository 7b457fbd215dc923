// Package ledger holds the deterministic resource arithmetic of the journey.
// Nothing here performs I/O or touches shared state.
package ledger

import (
	"math"

	"github.com/tatianab/caravan-trail/internal/models"
)

const (
	// FoodPerCapita is the kilograms each living crew member eats per travel step.
	FoodPerCapita = 1.5
	// DistancePerTurn is the kilometers covered by one travel step.
	DistancePerTurn = 25
	// StarvationMoodPenalty is applied once when a travel step empties the food store.
	StarvationMoodPenalty = 20

	MinMood = 0
	MaxMood = 100
)

// TravelStep is the outcome of one travel step, before it is committed.
type TravelStep struct {
	FoodConsumed   float64
	DistanceGained int
	MoodPenalty    int
}

// ComputeTravelStep works out what one day on the road costs.
func ComputeTravelStep(s models.Session) TravelStep {
	consumed := RoundFood(float64(s.AliveCount()) * FoodPerCapita)

	gained := DistancePerTurn
	if remaining := s.DistanceRemaining(); gained > remaining {
		gained = remaining
	}

	penalty := 0
	if math.Max(0, RoundFood(s.Food-consumed)) == 0 {
		penalty = StarvationMoodPenalty
	}

	return TravelStep{
		FoodConsumed:   consumed,
		DistanceGained: gained,
		MoodPenalty:    penalty,
	}
}

// ApplyTravelStep commits a travel step and returns the new state. The day
// counter advances only here.
func ApplyTravelStep(s models.Session, step TravelStep) models.Session {
	s = s.Clone()
	s.Day++
	s.Food = ClampFood(s.Food - step.FoodConsumed)
	s.Mood = ClampMood(s.Mood - step.MoodPenalty)
	s.DistanceTraveled = ClampDistance(s.DistanceTraveled+step.DistanceGained, s.DistanceTotal)
	return s
}

// ApplyResolution merges generated deltas into the state. Crew indices out of
// range are skipped and dead crew stay dead.
func ApplyResolution(s models.Session, r models.Resolution) models.Session {
	s = s.Clone()
	s.Food = ClampFood(s.Food + r.FoodChange)
	s.Mood = ClampMood(s.Mood + r.MoodChange)
	s.DistanceTraveled = ClampDistance(s.DistanceTraveled+r.DistanceChange, s.DistanceTotal)

	for _, change := range r.CrewStatusChanges {
		if change.MemberIndex < 0 || change.MemberIndex >= len(s.Crew) {
			continue
		}
		member := &s.Crew[change.MemberIndex]
		if !member.Alive() {
			continue
		}
		status, ok := models.ParseStatus(string(change.NewStatus))
		if !ok {
			continue
		}
		member.Status = status
	}
	return s
}

// RoundFood rounds to one decimal place.
func RoundFood(v float64) float64 {
	return math.Round(v*10) / 10
}

// ClampFood rounds and floors food at zero.
func ClampFood(v float64) float64 {
	v = RoundFood(v)
	if v <= 0 {
		return 0
	}
	return v
}

func ClampMood(v int) int {
	return clamp(v, MinMood, MaxMood)
}

func ClampDistance(v, total int) int {
	return clamp(v, 0, total)
}

func clamp(number, min, max int) int {
	if number < min {
		return min
	}

	if number > max {
		return max
	}

	return number
}
