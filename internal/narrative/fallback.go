package narrative

import "github.com/tatianab/caravan-trail/internal/models"

// FallbackEncounter is served whenever the generator cannot produce a valid
// encounter.
func FallbackEncounter() models.Encounter {
	return models.Encounter{
		Title:       "Static Storm",
		Description: "The air crackles with static and the radio shrieks at nothing. It is going to be an uneasy night.",
		Choices: []models.Choice{
			{
				ID:        "wait",
				Text:      "Make camp and wait for the storm to pass.",
				Type:      models.ChoiceNeutral,
				RiskLabel: "Safe",
			},
		},
	}
}

// FallbackResolution is served whenever the generator cannot produce a valid
// resolution.
func FallbackResolution() models.Resolution {
	return models.Resolution{
		OutcomeText:       "After a stretch of chaos, you barely hold things together.",
		FoodChange:        -2,
		MoodChange:        -5,
		DistanceChange:    0,
		CrewStatusChanges: []models.CrewStatusChange{},
	}
}
