// Package router maps inbound event types to event categories.
// Routing is a static table lookup, no inference.
package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mochikko/diary-server/internal/models"
)

// ErrUnknownEventType is returned when no mapping exists for an event type.
var ErrUnknownEventType = errors.New("unknown event type")

var eventTable = map[string]models.EventCategory{
	"weather_change": models.CategoryWeather,
	"weather_report": models.CategoryWeather,

	"holiday":  models.CategoryHoliday,
	"festival": models.CategoryHoliday,

	"friend_added":   models.CategoryFriends,
	"friend_removed": models.CategoryFriends,
	"friend_message": models.CategoryFriends,

	"same_frequency":  models.CategorySameFrequency,
	"frequency_match": models.CategorySameFrequency,

	"adoption_day":         models.CategoryAdoption,
	"adoption_anniversary": models.CategoryAdoption,

	"petted":  models.CategoryInteraction,
	"fed":     models.CategoryInteraction,
	"touched": models.CategoryInteraction,
	"played":  models.CategoryInteraction,

	"dialogue":         models.CategoryDialogue,
	"conversation_end": models.CategoryDialogue,

	"neglected":    models.CategoryNeglect,
	"long_absence": models.CategoryNeglect,

	"trending_topic": models.CategoryTrending,
	"hot_topic":      models.CategoryTrending,
}

// Classify resolves an event's type string to its category.
// Unknown types are reported without side effects.
func Classify(ev models.Event) (models.EventCategory, error) {
	key := strings.ToLower(strings.TrimSpace(ev.EventType))
	cat, ok := eventTable[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, ev.EventType)
	}
	return cat, nil
}

// KnownEventTypes returns the event types the router accepts.
func KnownEventTypes() []string {
	types := make([]string, 0, len(eventTable))
	for t := range eventTable {
		types = append(types, t)
	}
	return types
}
