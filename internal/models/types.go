package models

import "time"

// EventCategory identifies which sub-agent handles an event.
type EventCategory string

const (
	CategoryWeather       EventCategory = "weather"
	CategoryHoliday       EventCategory = "holiday"
	CategoryFriends       EventCategory = "friends"
	CategorySameFrequency EventCategory = "same_frequency"
	CategoryAdoption      EventCategory = "adoption"
	CategoryInteraction   EventCategory = "interaction"
	CategoryDialogue      EventCategory = "dialogue"
	CategoryNeglect       EventCategory = "neglect"
	CategoryTrending      EventCategory = "trending"
)

// AllCategories returns every category in a stable order.
func AllCategories() []EventCategory {
	return []EventCategory{
		CategoryWeather,
		CategoryHoliday,
		CategoryFriends,
		CategorySameFrequency,
		CategoryAdoption,
		CategoryInteraction,
		CategoryDialogue,
		CategoryNeglect,
		CategoryTrending,
	}
}

// ValidCategory reports whether s is a known category.
func ValidCategory(s string) bool {
	for _, c := range AllCategories() {
		if string(c) == s {
			return true
		}
	}
	return false
}

// EmotionTag is the fixed emotion vocabulary for diary entries.
type EmotionTag string

const (
	EmotionHappy    EmotionTag = "happy"
	EmotionExcited  EmotionTag = "excited"
	EmotionCalm     EmotionTag = "calm"
	EmotionCurious  EmotionTag = "curious"
	EmotionLonely   EmotionTag = "lonely"
	EmotionSad      EmotionTag = "sad"
	EmotionGrateful EmotionTag = "grateful"
	EmotionAnnoyed  EmotionTag = "annoyed"
)

// AllEmotions returns the emotion vocabulary in a stable order.
func AllEmotions() []EmotionTag {
	return []EmotionTag{
		EmotionHappy,
		EmotionExcited,
		EmotionCalm,
		EmotionCurious,
		EmotionLonely,
		EmotionSad,
		EmotionGrateful,
		EmotionAnnoyed,
	}
}

// ValidEmotion reports whether s is a known emotion tag.
func ValidEmotion(s string) bool {
	for _, e := range AllEmotions() {
		if string(e) == s {
			return true
		}
	}
	return false
}

// Output limits for a diary entry, counted in runes.
const (
	MaxTitleRunes   = 6
	MaxContentRunes = 35
)

// Event is an inbound life event from a collaborator (weather feed,
// dialogue system, sensor bridge, social service).
type Event struct {
	EventType string            `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	UserID    string            `json:"user_id"`
	Context   map[string]string `json:"context,omitempty"`
}

// DailyPlan is the per-calendar-day generation budget: which categories
// may produce an entry today and how much quota remains.
type DailyPlan struct {
	Date           string          `json:"date"`
	SelectedTypes  []EventCategory `json:"selected_types"`
	CompletedTypes []EventCategory `json:"completed_types"`
	RemainingQuota int             `json:"remaining_quota"`
}

// Selected reports whether the category is eligible today.
func (p *DailyPlan) Selected(c EventCategory) bool {
	for _, s := range p.SelectedTypes {
		if s == c {
			return true
		}
	}
	return false
}

// Completed reports whether the category already produced today's entry.
func (p *DailyPlan) Completed(c EventCategory) bool {
	for _, s := range p.CompletedTypes {
		if s == c {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (p *DailyPlan) Clone() *DailyPlan {
	cp := &DailyPlan{
		Date:           p.Date,
		RemainingQuota: p.RemainingQuota,
	}
	cp.SelectedTypes = append([]EventCategory(nil), p.SelectedTypes...)
	cp.CompletedTypes = append([]EventCategory(nil), p.CompletedTypes...)
	return cp
}

// DiaryEntry is a persisted diary record. Immutable once written.
type DiaryEntry struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Date      string        `json:"date"`
	Category  EventCategory `json:"event_category"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Emotion   EmotionTag    `json:"emotion_tag"`
	Provider  string        `json:"provider,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Draft is a sub-agent's post-processed output before validation.
type Draft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Emotion string `json:"emotion"`
}

// SubmitRequest is the body of POST /api/v1/events.
type SubmitRequest struct {
	EventType string            `json:"event_type"`
	Timestamp string            `json:"timestamp,omitempty"`
	UserID    string            `json:"user_id"`
	Context   map[string]string `json:"context,omitempty"`
}

// SubmitResponse is returned for a submitted event.
type SubmitResponse struct {
	Status string      `json:"status"`
	Reason string      `json:"reason,omitempty"`
	Entry  *DiaryEntry `json:"entry,omitempty"`
}

// Outcome status constants
const (
	StatusGenerated = "generated"
	StatusDenied    = "denied"
	StatusRejected  = "rejected"
	StatusError     = "error"
)

// ProviderStatus is one generation provider's health, for the status endpoint.
type ProviderStatus struct {
	Name                string `json:"name"`
	State               string `json:"state"` // "healthy", "degraded", "open", "disabled"
	ConsecutiveFailures int    `json:"consecutive_failures"`
	CircuitOpenUntil    string `json:"circuit_open_until,omitempty"`
}

// StatusResponse is returned by the status endpoint.
type StatusResponse struct {
	Plan      DailyPlan        `json:"plan"`
	Providers []ProviderStatus `json:"providers"`
}

// EntriesResponse is returned by the entries endpoint.
type EntriesResponse struct {
	Entries []DiaryEntry `json:"entries"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Providers string `json:"providers"`
	Version   string `json:"version"`
}
