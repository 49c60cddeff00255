package router

import (
	"errors"
	"testing"

	"github.com/mochikko/diary-server/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		want      models.EventCategory
	}{
		{"weather change", "weather_change", models.CategoryWeather},
		{"holiday", "holiday", models.CategoryHoliday},
		{"festival maps to holiday", "festival", models.CategoryHoliday},
		{"friend added", "friend_added", models.CategoryFriends},
		{"same frequency", "same_frequency", models.CategorySameFrequency},
		{"adoption day", "adoption_day", models.CategoryAdoption},
		{"petted", "petted", models.CategoryInteraction},
		{"dialogue", "dialogue", models.CategoryDialogue},
		{"neglected", "neglected", models.CategoryNeglect},
		{"trending topic", "trending_topic", models.CategoryTrending},
		{"case insensitive", "Weather_Change", models.CategoryWeather},
		{"surrounding whitespace", "  petted  ", models.CategoryInteraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(models.Event{EventType: tt.eventType})
			if err != nil {
				t.Fatalf("Classify(%q) returned error: %v", tt.eventType, err)
			}
			if got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.eventType, got, tt.want)
			}
		})
	}
}

func TestClassifyUnknown(t *testing.T) {
	for _, eventType := range []string{"", "solar_flare", "weather"} {
		_, err := Classify(models.Event{EventType: eventType})
		if !errors.Is(err, ErrUnknownEventType) {
			t.Errorf("Classify(%q) error = %v, want ErrUnknownEventType", eventType, err)
		}
	}
}

func TestKnownEventTypesCoverAllCategories(t *testing.T) {
	seen := make(map[models.EventCategory]bool)
	for _, et := range KnownEventTypes() {
		cat, err := Classify(models.Event{EventType: et})
		if err != nil {
			t.Fatalf("known type %q does not classify: %v", et, err)
		}
		seen[cat] = true
	}
	for _, c := range models.AllCategories() {
		if !seen[c] {
			t.Errorf("no event type routes to category %s", c)
		}
	}
}
