package plan

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/mochikko/diary-server/internal/models"
)

func TestEnsurePlanIdempotent(t *testing.T) {
	m := NewManager(5, 1)

	first, created := m.EnsurePlan("2026-09-01")
	if !created {
		t.Fatal("first EnsurePlan should create")
	}
	second, created := m.EnsurePlan("2026-09-01")
	if created {
		t.Error("second EnsurePlan should not create")
	}
	if len(first.SelectedTypes) != len(second.SelectedTypes) {
		t.Errorf("plans differ: %v vs %v", first.SelectedTypes, second.SelectedTypes)
	}
}

func TestEnsurePlanBounds(t *testing.T) {
	// Many seeds, always within bounds, quota matches selection size.
	for seed := int64(1); seed <= 50; seed++ {
		m := NewManager(5, seed)
		p, _ := m.EnsurePlan("2026-09-01")
		if len(p.SelectedTypes) > 5 {
			t.Fatalf("seed %d: %d selected types, want at most 5", seed, len(p.SelectedTypes))
		}
		if p.RemainingQuota != len(p.SelectedTypes) {
			t.Fatalf("seed %d: quota %d != %d selected", seed, p.RemainingQuota, len(p.SelectedTypes))
		}
		seen := make(map[models.EventCategory]bool)
		for _, c := range p.SelectedTypes {
			if seen[c] {
				t.Fatalf("seed %d: duplicate category %s", seed, c)
			}
			seen[c] = true
		}
	}
}

func TestEnsurePlanZeroMaxTypes(t *testing.T) {
	m := NewManager(0, 7)
	p, _ := m.EnsurePlan("2026-09-01")
	if len(p.SelectedTypes) != 0 || p.RemainingQuota != 0 {
		t.Errorf("maxTypes=0 plan: %d selected, quota %d, want empty", len(p.SelectedTypes), p.RemainingQuota)
	}
}

func TestDayRollover(t *testing.T) {
	m := NewManager(5, 3)
	m.Restore(&models.DailyPlan{
		Date:           "2026-09-01",
		SelectedTypes:  []models.EventCategory{models.CategoryWeather},
		RemainingQuota: 1,
	})

	p, created := m.EnsurePlan("2026-09-02")
	if !created {
		t.Fatal("day boundary should create a new plan")
	}
	if p.Date != "2026-09-02" {
		t.Errorf("new plan date = %s, want 2026-09-02", p.Date)
	}
	// The previous day's plan stays intact alongside the new one.
	if old := m.Snapshot("2026-09-01"); old == nil || old.RemainingQuota != 1 {
		t.Errorf("old plan lost after rollover: %+v", old)
	}
}

// An event dated in the past must not disturb another day's plan: the
// committed state survives the interleaving and a duplicate commit for
// the already-completed category still fails.
func TestStaleDateDoesNotResetPlan(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		m := NewManager(5, seed)
		m.Restore(&models.DailyPlan{
			Date:           "2026-09-01",
			SelectedTypes:  []models.EventCategory{models.CategoryWeather},
			RemainingQuota: 1,
		})

		if _, err := m.Commit("2026-09-01", models.CategoryWeather); err != nil {
			t.Fatalf("seed %d: first Commit failed: %v", seed, err)
		}

		// A backdated event arrives, then a same-day event follows.
		m.EnsurePlan("2026-08-31")
		p, created := m.EnsurePlan("2026-09-01")
		if created {
			t.Fatalf("seed %d: plan for 2026-09-01 was redrawn", seed)
		}
		if !p.Completed(models.CategoryWeather) || p.RemainingQuota != 0 {
			t.Fatalf("seed %d: committed state lost: %+v", seed, p)
		}

		_, err := m.Commit("2026-09-01", models.CategoryWeather)
		var v *Violation
		if !errors.As(err, &v) {
			t.Fatalf("seed %d: second Commit for a completed category succeeded", seed)
		}
	}
}

func TestDrop(t *testing.T) {
	m := NewManager(5, 1)
	m.Restore(&models.DailyPlan{
		Date:           "2026-09-01",
		SelectedTypes:  []models.EventCategory{models.CategoryWeather},
		RemainingQuota: 1,
	})

	m.Drop("2026-09-01")
	if m.Snapshot("2026-09-01") != nil {
		t.Error("plan survived Drop")
	}
	if _, created := m.EnsurePlan("2026-09-01"); !created {
		t.Error("EnsurePlan after Drop should redraw")
	}
}

func TestRetentionPrunesOldestDates(t *testing.T) {
	m := NewManager(5, 1)
	for day := 1; day <= 40; day++ {
		m.EnsurePlan(fmt.Sprintf("2026-10-%02d", day))
	}

	if m.Snapshot("2026-10-01") != nil {
		t.Error("oldest plan not pruned")
	}
	if m.Snapshot("2026-10-40") == nil {
		t.Error("newest plan pruned")
	}
}

func TestCommit(t *testing.T) {
	m := NewManager(5, 1)
	m.Restore(&models.DailyPlan{
		Date:           "2026-09-01",
		SelectedTypes:  []models.EventCategory{models.CategoryWeather, models.CategoryDialogue},
		RemainingQuota: 2,
	})

	snap, err := m.Commit("2026-09-01", models.CategoryWeather)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if snap.RemainingQuota != 1 {
		t.Errorf("quota after commit = %d, want 1", snap.RemainingQuota)
	}
	if !snap.Completed(models.CategoryWeather) {
		t.Error("weather not in completed_types after commit")
	}
}

func TestCommitViolations(t *testing.T) {
	base := &models.DailyPlan{
		Date:           "2026-09-01",
		SelectedTypes:  []models.EventCategory{models.CategoryWeather, models.CategoryDialogue},
		CompletedTypes: []models.EventCategory{models.CategoryDialogue},
		RemainingQuota: 1,
	}

	tests := []struct {
		name     string
		plan     *models.DailyPlan
		date     string
		category models.EventCategory
	}{
		{"wrong date", base, "2026-09-02", models.CategoryWeather},
		{"not selected", base, "2026-09-01", models.CategoryHoliday},
		{"already completed", base, "2026-09-01", models.CategoryDialogue},
		{
			"quota exhausted",
			&models.DailyPlan{
				Date:           "2026-09-01",
				SelectedTypes:  []models.EventCategory{models.CategoryWeather},
				RemainingQuota: 0,
			},
			"2026-09-01", models.CategoryWeather,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(5, 1)
			m.Restore(tt.plan)

			_, err := m.Commit(tt.date, tt.category)
			var v *Violation
			if !errors.As(err, &v) {
				t.Fatalf("Commit() error = %v, want *Violation", err)
			}
		})
	}
}

func TestUncommit(t *testing.T) {
	m := NewManager(5, 1)
	m.Restore(&models.DailyPlan{
		Date:           "2026-09-01",
		SelectedTypes:  []models.EventCategory{models.CategoryWeather},
		RemainingQuota: 1,
	})

	if _, err := m.Commit("2026-09-01", models.CategoryWeather); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	m.Uncommit("2026-09-01", models.CategoryWeather)

	snap := m.Snapshot("2026-09-01")
	if snap.RemainingQuota != 1 {
		t.Errorf("quota after uncommit = %d, want 1", snap.RemainingQuota)
	}
	if snap.Completed(models.CategoryWeather) {
		t.Error("weather still completed after uncommit")
	}

	// Commit works again after the compensation.
	if _, err := m.Commit("2026-09-01", models.CategoryWeather); err != nil {
		t.Errorf("Commit after Uncommit failed: %v", err)
	}
}

func TestBeginGenerationExclusive(t *testing.T) {
	m := NewManager(5, 1)

	if !m.BeginGeneration("2026-09-01", models.CategoryWeather) {
		t.Fatal("first BeginGeneration should succeed")
	}
	if m.BeginGeneration("2026-09-01", models.CategoryWeather) {
		t.Error("second BeginGeneration for same slot should fail")
	}
	// Other categories and other days are independent.
	if !m.BeginGeneration("2026-09-01", models.CategoryDialogue) {
		t.Error("different category should be independent")
	}
	if !m.BeginGeneration("2026-09-02", models.CategoryWeather) {
		t.Error("different day should be independent")
	}

	m.EndGeneration("2026-09-01", models.CategoryWeather)
	if !m.BeginGeneration("2026-09-01", models.CategoryWeather) {
		t.Error("BeginGeneration should succeed after EndGeneration")
	}
}

// Concurrent duplicate commits: exactly one wins, the rest surface
// violations, quota never goes negative.
func TestConcurrentCommits(t *testing.T) {
	m := NewManager(5, 1)
	m.Restore(&models.DailyPlan{
		Date:           "2026-09-01",
		SelectedTypes:  []models.EventCategory{models.CategoryWeather},
		RemainingQuota: 1,
	})

	const goroutines = 16
	var wg sync.WaitGroup
	successes := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Commit("2026-09-01", models.CategoryWeather); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	var n int
	for range successes {
		n++
	}
	if n != 1 {
		t.Errorf("%d commits succeeded, want exactly 1", n)
	}
	if snap := m.Snapshot("2026-09-01"); snap.RemainingQuota != 0 {
		t.Errorf("quota = %d, want 0", snap.RemainingQuota)
	}
}
