// Package contextdata resolves the context record a sub-agent needs
// before it can build a prompt. Readers for richer sources (weather
// APIs, social graph) plug in behind the same interface; the defaults
// derive records from the event payload itself.
package contextdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mochikko/diary-server/internal/models"
	"github.com/mochikko/diary-server/internal/trends"
)

// ErrNotAvailable means the reader has nothing for this event; the
// event is denied gracefully, not failed.
var ErrNotAvailable = errors.New("context not available")

// Reader produces the context record for one category.
type Reader interface {
	Read(ctx context.Context, ev models.Event) (map[string]string, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context, ev models.Event) (map[string]string, error)

func (f ReaderFunc) Read(ctx context.Context, ev models.Event) (map[string]string, error) {
	return f(ctx, ev)
}

// Registry holds one reader per category.
type Registry struct {
	readers map[models.EventCategory]Reader
}

// NewRegistry builds the default reader set. The trending reader pulls
// live topics from the tracker; everything else reads the event payload.
func NewRegistry(tracker *trends.Tracker) *Registry {
	r := &Registry{readers: make(map[models.EventCategory]Reader)}

	r.readers[models.CategoryWeather] = payloadReader([]string{"condition"}, map[string]string{
		"preference": "no stated preference",
	})
	r.readers[models.CategoryHoliday] = payloadReader([]string{"holiday_name"}, nil)
	r.readers[models.CategoryFriends] = payloadReader([]string{"change"}, nil)
	r.readers[models.CategorySameFrequency] = payloadReader([]string{"peer_name"}, nil)
	r.readers[models.CategoryAdoption] = payloadReader([]string{"days_since_adoption"}, nil)
	r.readers[models.CategoryInteraction] = payloadReader([]string{"action"}, nil)
	r.readers[models.CategoryDialogue] = payloadReader([]string{"summary"}, nil)
	r.readers[models.CategoryNeglect] = ReaderFunc(neglectReader)
	r.readers[models.CategoryTrending] = &trendingReader{tracker: tracker}

	return r
}

// Register replaces the reader for a category (richer external readers).
func (r *Registry) Register(c models.EventCategory, reader Reader) {
	r.readers[c] = reader
}

// GetContext runs the category's reader once for an admitted event.
func (r *Registry) GetContext(ctx context.Context, c models.EventCategory, ev models.Event) (map[string]string, error) {
	reader, ok := r.readers[c]
	if !ok {
		return nil, fmt.Errorf("no context reader for category %s", c)
	}
	return reader.Read(ctx, ev)
}

// payloadReader copies required keys (and any extras present) out of
// the event's context map, with optional defaults.
func payloadReader(required []string, defaults map[string]string) Reader {
	return ReaderFunc(func(_ context.Context, ev models.Event) (map[string]string, error) {
		rec := make(map[string]string)
		for k, v := range defaults {
			rec[k] = v
		}
		for k, v := range ev.Context {
			if strings.TrimSpace(v) != "" {
				rec[k] = v
			}
		}
		for _, k := range required {
			if strings.TrimSpace(rec[k]) == "" {
				return nil, fmt.Errorf("%w: missing %q", ErrNotAvailable, k)
			}
		}
		return rec, nil
	})
}

// neglectReader buckets elapsed hours into a coarse duration so the
// prompt scales the loneliness instead of quoting raw numbers.
func neglectReader(_ context.Context, ev models.Event) (map[string]string, error) {
	raw := strings.TrimSpace(ev.Context["hours_alone"])
	if raw == "" {
		return nil, fmt.Errorf("%w: missing %q", ErrNotAvailable, "hours_alone")
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours < 0 {
		return nil, fmt.Errorf("%w: bad hours_alone %q", ErrNotAvailable, raw)
	}

	var bucket string
	switch {
	case hours < 6:
		bucket = "a few quiet hours"
	case hours < 24:
		bucket = "most of the day"
	case hours < 72:
		bucket = "a couple of days"
	default:
		bucket = "many days"
	}

	return map[string]string{
		"duration_bucket": bucket,
		"hours_alone":     raw,
	}, nil
}

type trendingReader struct {
	tracker *trends.Tracker
}

func (t *trendingReader) Read(_ context.Context, ev models.Event) (map[string]string, error) {
	// An explicit topic on the event wins; otherwise use the tracker.
	if topic := strings.TrimSpace(ev.Context["topic"]); topic != "" {
		return map[string]string{"topics": topic}, nil
	}
	top, err := t.tracker.Top(3)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, fmt.Errorf("%w: nothing trending", ErrNotAvailable)
	}
	return map[string]string{"topics": strings.Join(top, ", ")}, nil
}
