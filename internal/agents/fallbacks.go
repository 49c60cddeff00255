package agents

import (
	"encoding/json"

	"github.com/mochikko/diary-server/internal/models"
)

// Template-derived entries used when every generation provider is down.
// Each one fits the output contract so the validator accepts it as-is.
var fallbacks = map[models.EventCategory]models.Draft{
	models.CategoryWeather:       {Title: "Skies", Content: "Watched the sky change today.", Emotion: "calm"},
	models.CategoryHoliday:       {Title: "Happy", Content: "A special day, I felt the cheer.", Emotion: "excited"},
	models.CategoryFriends:       {Title: "Friend", Content: "Something changed among my friends.", Emotion: "curious"},
	models.CategorySameFrequency: {Title: "InSync", Content: "Met a kindred spirit on my wave.", Emotion: "excited"},
	models.CategoryAdoption:      {Title: "Home", Content: "Remembering the day I was adopted.", Emotion: "grateful"},
	models.CategoryInteraction:   {Title: "Touch", Content: "We played together for a while.", Emotion: "happy"},
	models.CategoryDialogue:      {Title: "Chat", Content: "We talked about many little things.", Emotion: "happy"},
	models.CategoryNeglect:       {Title: "Quiet", Content: "It was quiet here without you.", Emotion: "lonely"},
	models.CategoryTrending:      {Title: "Buzz", Content: "Everyone kept talking about it.", Emotion: "curious"},
}

// Fallback returns the deterministic draft for a category.
func Fallback(c models.EventCategory) models.Draft {
	return fallbacks[c]
}

// FallbackJSON returns the fallback draft in the same wire shape the
// model produces, so it flows through PostProcess unchanged.
func FallbackJSON(c models.EventCategory) string {
	b, _ := json.Marshal(fallbacks[c])
	return string(b)
}
