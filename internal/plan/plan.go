// Package plan owns the per-day generation plan: which categories were
// drawn for a date, how much quota remains, and which categories have
// already produced an entry.
package plan

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/mochikko/diary-server/internal/models"
)

// Violation signals a broken commit precondition. It indicates a
// concurrency or logic bug upstream and is always surfaced.
type Violation struct {
	Date     string
	Category models.EventCategory
	Check    string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("plan violation for %s on %s: %s", v.Category, v.Date, v.Check)
}

// Manager owns the active daily plans and their lifecycle. Plans are
// keyed by date so an event carrying a stale timestamp cannot disturb
// another day's committed state. All access goes through the manager;
// callers only ever see snapshots.
type Manager struct {
	mu       sync.Mutex
	plans    map[string]*models.DailyPlan
	inflight map[string]bool

	rng      *rand.Rand
	maxTypes int
}

// maxRetained bounds the in-memory plan map; older days live in the store.
const maxRetained = 31

// NewManager creates a plan manager drawing at most maxTypes categories
// per day. seed fixes the selection sequence, for tests; pass 0 to seed
// from the clock.
func NewManager(maxTypes int, seed int64) *Manager {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Manager{
		plans:    make(map[string]*models.DailyPlan),
		inflight: make(map[string]bool),
		rng:      rand.New(rand.NewSource(seed)),
		maxTypes: maxTypes,
	}
}

// EnsurePlan idempotently returns the plan for date, creating one if
// absent. A plan already drawn for a date is never redrawn, whatever
// order dates arrive in. The returned plan is a snapshot; created
// reports whether a new plan was drawn.
func (m *Manager) EnsurePlan(date string) (p *models.DailyPlan, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.plans[date]; ok {
		return existing.Clone(), false
	}
	np := m.newPlan(date)
	m.plans[date] = np
	m.pruneLocked()
	return np.Clone(), true
}

// newPlan draws a uniform subset of 0..maxTypes categories without
// replacement. Quota is one entry per selected category.
func (m *Manager) newPlan(date string) *models.DailyPlan {
	all := models.AllCategories()
	m.rng.Shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	k := m.rng.Intn(m.maxTypes + 1)
	selected := append([]models.EventCategory(nil), all[:k]...)
	return &models.DailyPlan{
		Date:           date,
		SelectedTypes:  selected,
		RemainingQuota: len(selected),
	}
}

// pruneLocked evicts the oldest dates once the map outgrows the
// retention window. ISO dates sort chronologically as strings.
func (m *Manager) pruneLocked() {
	if len(m.plans) <= maxRetained {
		return
	}
	dates := make([]string, 0, len(m.plans))
	for d := range m.plans {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates[:len(dates)-maxRetained] {
		delete(m.plans, d)
	}
}

// Restore installs a plan snapshot, replacing any plan held for the
// same date. Used at startup to resume the persisted plan, and by the
// store's restore path.
func (m *Manager) Restore(p *models.DailyPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.Date] = p.Clone()
}

// Drop forgets the plan held for date, so the next EnsurePlan draws a
// fresh one. Used when a store restore wiped the date's snapshot.
func (m *Manager) Drop(date string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.plans, date)
}

// Snapshot returns a copy of the plan held for date, or nil if none is.
func (m *Manager) Snapshot(date string) *models.DailyPlan {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[date]
	if !ok {
		return nil
	}
	return p.Clone()
}

// Roll draws a uniform [0,1) value for the probability throttle.
func (m *Manager) Roll() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64()
}

func inflightKey(date string, c models.EventCategory) string {
	return date + "|" + string(c)
}

// BeginGeneration acquires the per-(date, category) generation slot.
// At most one generation may be in flight per category per day; a
// second concurrent attempt gets false.
func (m *Manager) BeginGeneration(date string, c models.EventCategory) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := inflightKey(date, c)
	if m.inflight[key] {
		return false
	}
	m.inflight[key] = true
	return true
}

// EndGeneration releases the generation slot.
func (m *Manager) EndGeneration(date string, c models.EventCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, inflightKey(date, c))
}

// Commit marks the category as having produced the date's entry and
// consumes one quota unit. All preconditions are re-checked here; a
// failure is a *Violation and must not be swallowed by callers.
// Returns the updated plan snapshot for persisting.
func (m *Manager) Commit(date string, c models.EventCategory) (*models.DailyPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plans[date]
	if !ok {
		return nil, &Violation{Date: date, Category: c, Check: "no plan for date"}
	}
	if !p.Selected(c) {
		return nil, &Violation{Date: date, Category: c, Check: "category not in selected_types"}
	}
	if p.Completed(c) {
		return nil, &Violation{Date: date, Category: c, Check: "category already in completed_types"}
	}
	if p.RemainingQuota <= 0 {
		return nil, &Violation{Date: date, Category: c, Check: "remaining_quota is zero"}
	}

	p.CompletedTypes = append(p.CompletedTypes, c)
	p.RemainingQuota--
	return p.Clone(), nil
}

// Uncommit reverses a Commit whose persistence failed, so the failed
// generation does not consume quota. Only valid while the caller still
// holds the generation slot for (date, c).
func (m *Manager) Uncommit(date string, c models.EventCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plans[date]
	if !ok {
		return
	}
	for i, done := range p.CompletedTypes {
		if done == c {
			p.CompletedTypes = append(p.CompletedTypes[:i], p.CompletedTypes[i+1:]...)
			p.RemainingQuota++
			return
		}
	}
}
