// Package validator enforces the diary output contract and normalizes
// accepted drafts into persisted entry records.
package validator

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mochikko/diary-server/internal/models"
)

// FormatViolation is an output-contract breach. The engine performs one
// bounded regeneration with a stricter prompt before final rejection;
// truncation is never applied silently.
type FormatViolation struct {
	Field  string
	Detail string
}

func (e *FormatViolation) Error() string {
	return fmt.Sprintf("format violation on %s: %s", e.Field, e.Detail)
}

// Normalize checks a draft against the output contract and, if it
// passes, mints the immutable entry record.
func Normalize(d models.Draft, ev models.Event, cat models.EventCategory, date, provider string, now time.Time) (models.DiaryEntry, error) {
	if d.Content == "" {
		return models.DiaryEntry{}, &FormatViolation{Field: "content", Detail: "empty"}
	}
	if n := utf8.RuneCountInString(d.Content); n > models.MaxContentRunes {
		return models.DiaryEntry{}, &FormatViolation{
			Field:  "content",
			Detail: fmt.Sprintf("%d characters, limit %d", n, models.MaxContentRunes),
		}
	}
	if d.Title == "" {
		return models.DiaryEntry{}, &FormatViolation{Field: "title", Detail: "empty"}
	}
	if n := utf8.RuneCountInString(d.Title); n > models.MaxTitleRunes {
		return models.DiaryEntry{}, &FormatViolation{
			Field:  "title",
			Detail: fmt.Sprintf("%d characters, limit %d", n, models.MaxTitleRunes),
		}
	}
	if !models.ValidEmotion(d.Emotion) {
		return models.DiaryEntry{}, &FormatViolation{
			Field:  "emotion_tag",
			Detail: fmt.Sprintf("%q is not in the emotion vocabulary", d.Emotion),
		}
	}

	return models.DiaryEntry{
		ID:        uuid.NewString(),
		UserID:    ev.UserID,
		Date:      date,
		Category:  cat,
		Title:     d.Title,
		Content:   d.Content,
		Emotion:   models.EmotionTag(d.Emotion),
		Provider:  provider,
		CreatedAt: now.UTC(),
	}, nil
}
