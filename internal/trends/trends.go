// Package trends tracks what the outside world keeps talking about.
// Topic weights decay exponentially between observations; the trending
// sub-agent's context reader pulls the current top topics.
package trends

import (
	"math"
	"strings"
	"time"

	"github.com/mochikko/diary-server/internal/store"
)

const (
	// HalfLife is how fast a topic fades: half its weight every 2 days.
	HalfLife = 2.0 * 24 * time.Hour

	// Boost per observation, capped so one noisy day cannot pin a
	// topic to the top forever.
	Boost = 1.0
	Cap   = 10.0

	// Floor below which a topic is dropped entirely.
	Floor = 0.05
)

// Tracker applies lazy decay-then-boost over the store's topic table.
type Tracker struct {
	store *store.Store
	now   func() time.Time
}

func NewTracker(s *store.Store) *Tracker {
	return &Tracker{store: s, now: time.Now}
}

// decayed computes a weight after elapsed time: w * 2^(-t/halflife).
func decayed(weight float64, since time.Duration) float64 {
	if since <= 0 {
		return weight
	}
	return weight * math.Exp2(-since.Hours()/HalfLife.Hours())
}

// Observe records one sighting of a topic: decay the stored weight to
// now, add the boost, cap, and write back.
func (t *Tracker) Observe(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}

	existing, err := t.store.GetTopic(name)
	if err != nil {
		return err
	}

	now := t.now()
	weight := Boost
	if existing != nil {
		weight = decayed(existing.Weight, now.Sub(existing.LastUpdated)) + Boost
	}
	if weight > Cap {
		weight = Cap
	}
	return t.store.UpsertTopic(name, weight, now)
}

// Top returns up to n topic names, heaviest first, with decay applied
// to the ranking.
func (t *Tracker) Top(n int) ([]string, error) {
	// Over-fetch so decay reordering near the cutoff stays fair.
	topics, err := t.store.TopTopics(n * 3)
	if err != nil {
		return nil, err
	}

	type scored struct {
		name   string
		weight float64
	}
	now := t.now()
	ranked := make([]scored, 0, len(topics))
	for _, topic := range topics {
		w := decayed(topic.Weight, now.Sub(topic.LastUpdated))
		if w < Floor {
			continue
		}
		ranked = append(ranked, scored{topic.Name, w})
	}
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].weight > ranked[j-1].weight; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.name
	}
	return names, nil
}

// DecayAll writes decayed weights back and prunes dead topics.
// Run periodically so the table does not accumulate stale rows.
func (t *Tracker) DecayAll() error {
	topics, err := t.store.AllTopics()
	if err != nil {
		return err
	}
	now := t.now()
	for _, topic := range topics {
		w := decayed(topic.Weight, now.Sub(topic.LastUpdated))
		if w < Floor {
			if err := t.store.DeleteTopic(topic.Name); err != nil {
				return err
			}
			continue
		}
		if err := t.store.UpsertTopic(topic.Name, w, now); err != nil {
			return err
		}
	}
	return nil
}
