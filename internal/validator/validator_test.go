package validator

import (
	"errors"
	"testing"
	"time"

	"github.com/mochikko/diary-server/internal/models"
)

func TestNormalize(t *testing.T) {
	ev := models.Event{UserID: "u1"}
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	entry, err := Normalize(
		models.Draft{Title: "Rain", Content: "It rained and I liked it.", Emotion: "calm"},
		ev, models.CategoryWeather, "2026-09-01", "ollama/qwen2.5:7b", now,
	)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if entry.ID == "" {
		t.Error("entry has no id")
	}
	if entry.UserID != "u1" || entry.Date != "2026-09-01" || entry.Category != models.CategoryWeather {
		t.Errorf("entry fields wrong: %+v", entry)
	}
	if entry.Emotion != models.EmotionCalm {
		t.Errorf("emotion = %s, want calm", entry.Emotion)
	}
	if !entry.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", entry.CreatedAt, now)
	}
}

func TestNormalizeViolations(t *testing.T) {
	tests := []struct {
		name  string
		draft models.Draft
		field string
	}{
		{
			name:  "empty content",
			draft: models.Draft{Title: "Rain", Content: "", Emotion: "calm"},
			field: "content",
		},
		{
			name:  "content too long",
			draft: models.Draft{Title: "Rain", Content: "This content rambles on far past the thirty-five character budget.", Emotion: "calm"},
			field: "content",
		},
		{
			name:  "empty title",
			draft: models.Draft{Title: "", Content: "Fine.", Emotion: "calm"},
			field: "title",
		},
		{
			name:  "title too long",
			draft: models.Draft{Title: "Weather", Content: "Fine.", Emotion: "calm"},
			field: "title",
		},
		{
			name:  "unknown emotion",
			draft: models.Draft{Title: "Rain", Content: "Fine.", Emotion: "melancholic"},
			field: "emotion_tag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.draft, models.Event{}, models.CategoryWeather, "2026-09-01", "p", time.Now())
			var fv *FormatViolation
			if !errors.As(err, &fv) {
				t.Fatalf("Normalize() error = %v, want *FormatViolation", err)
			}
			if fv.Field != tt.field {
				t.Errorf("violation field = %s, want %s", fv.Field, tt.field)
			}
		})
	}
}

// Limits count runes, not bytes: six CJK characters are a legal title
// even though they are eighteen bytes.
func TestNormalizeCountsRunes(t *testing.T) {
	draft := models.Draft{Title: "今日は雨降り", Content: "窓の外の雨をずっと見ていた。", Emotion: "calm"}
	if _, err := Normalize(draft, models.Event{}, models.CategoryWeather, "2026-09-01", "p", time.Now()); err != nil {
		t.Errorf("CJK draft within rune limits rejected: %v", err)
	}
}

func TestNormalizeMintsUniqueIDs(t *testing.T) {
	draft := models.Draft{Title: "Rain", Content: "Fine.", Emotion: "calm"}
	a, err := Normalize(draft, models.Event{}, models.CategoryWeather, "2026-09-01", "p", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Normalize(draft, models.Event{}, models.CategoryWeather, "2026-09-01", "p", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Error("two normalized entries share an id")
	}
}
