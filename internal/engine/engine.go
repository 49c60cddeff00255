// Package engine orchestrates the diary pipeline: classify, evaluate,
// gather context, generate, validate, then commit and persist as one
// step. Denials and failures never mutate plan state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mochikko/diary-server/internal/agents"
	"github.com/mochikko/diary-server/internal/contextdata"
	"github.com/mochikko/diary-server/internal/llm"
	"github.com/mochikko/diary-server/internal/models"
	"github.com/mochikko/diary-server/internal/plan"
	"github.com/mochikko/diary-server/internal/router"
	"github.com/mochikko/diary-server/internal/rules"
	"github.com/mochikko/diary-server/internal/store"
	"github.com/mochikko/diary-server/internal/trends"
	"github.com/mochikko/diary-server/internal/validator"
)

// Generator is the slice of the LLM gateway the engine needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, c llm.Constraints) (llm.Result, error)
}

// Outcome is the engine's answer to one submitted event.
type Outcome struct {
	Status string
	Reason string
	Entry  *models.DiaryEntry
}

// Engine wires the pipeline's collaborators together. All scheduling
// state is owned here or in the plan manager; there are no package-level
// mutable singletons.
type Engine struct {
	plans    *plan.Manager
	registry *agents.Registry
	contexts *contextdata.Registry
	gateway  Generator
	store    *store.Store
	tracker  *trends.Tracker

	tz             *time.Location
	genProbability float64
	now            func() time.Time
}

// Options carries the engine's tunables.
type Options struct {
	Timezone       *time.Location
	GenProbability float64
}

func New(plans *plan.Manager, registry *agents.Registry, contexts *contextdata.Registry,
	gateway Generator, st *store.Store, tracker *trends.Tracker, opts Options) *Engine {
	tz := opts.Timezone
	if tz == nil {
		tz = time.UTC
	}
	return &Engine{
		plans:          plans,
		registry:       registry,
		contexts:       contexts,
		gateway:        gateway,
		store:          st,
		tracker:        tracker,
		tz:             tz,
		genProbability: opts.GenProbability,
		now:            time.Now,
	}
}

func denied(reason rules.DenyReason) Outcome {
	return Outcome{Status: models.StatusDenied, Reason: string(reason)}
}

// Submit runs one event through the full pipeline.
//
// The pipeline behaves as if executed under per-(date, category) mutual
// exclusion: BeginGeneration admits at most one generation per category
// per day, and Commit is the sole atomic state transition. Different
// categories proceed independently.
func (e *Engine) Submit(ctx context.Context, ev models.Event) (Outcome, error) {
	category, err := router.Classify(ev)
	if err != nil {
		return Outcome{Status: models.StatusError, Reason: err.Error()}, err
	}

	// Feed the trend tracker regardless of admission; trending entries
	// draw on what all events mentioned.
	if topic := ev.Context["topic"]; topic != "" {
		if err := e.tracker.Observe(topic); err != nil {
			log.Printf("engine: observing topic %q: %v", topic, err)
		}
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}
	date := ts.In(e.tz).Format("2006-01-02")

	p, created := e.plans.EnsurePlan(date)
	if created {
		if err := e.store.SavePlan(*p); err != nil {
			log.Printf("engine: persisting new plan for %s: %v", date, err)
		}
	}

	decision := rules.Evaluate(p, category, e.plans.Roll(), e.genProbability)
	if !decision.Allowed {
		return denied(decision.Reason), nil
	}

	if !e.plans.BeginGeneration(date, category) {
		return denied(rules.ReasonInFlight), nil
	}
	defer e.plans.EndGeneration(date, category)

	// Re-check against the live plan now that the slot is held: a
	// racing event may have committed between the first evaluation and
	// the acquisition. The probability throttle already passed, so the
	// roll is not re-drawn.
	if fresh := e.plans.Snapshot(date); fresh != nil {
		if recheck := rules.Evaluate(fresh, category, 0, 1); !recheck.Allowed {
			return denied(recheck.Reason), nil
		}
	}

	record, err := e.contexts.GetContext(ctx, category, ev)
	if err != nil {
		if errors.Is(err, contextdata.ErrNotAvailable) {
			return denied(rules.ReasonNoContext), nil
		}
		return Outcome{Status: models.StatusError, Reason: err.Error()}, err
	}

	agent, ok := e.registry.Lookup(category)
	if !ok {
		err := fmt.Errorf("no agent registered for category %s", category)
		return Outcome{Status: models.StatusError, Reason: err.Error()}, err
	}

	// One bounded regeneration with a stricter prompt after a format
	// violation, then final rejection.
	entry, err := e.generateOnce(ctx, agent, ev, record, category, date, false)
	var fv *validator.FormatViolation
	if errors.As(err, &fv) {
		entry, err = e.generateOnce(ctx, agent, ev, record, category, date, true)
	}
	if err != nil {
		if errors.As(err, &fv) {
			return Outcome{Status: models.StatusRejected, Reason: err.Error()}, nil
		}
		return Outcome{Status: models.StatusError, Reason: err.Error()}, err
	}

	if err := e.commitAndPersist(date, category, entry); err != nil {
		return Outcome{Status: models.StatusError, Reason: err.Error()}, err
	}

	return Outcome{Status: models.StatusGenerated, Entry: &entry}, nil
}

// generateOnce runs prompt → gateway → post-process → normalize. A
// malformed draft is treated as a format violation so it shares the
// single-retry budget.
func (e *Engine) generateOnce(ctx context.Context, agent agents.Agent, ev models.Event,
	record map[string]string, category models.EventCategory, date string, strict bool) (models.DiaryEntry, error) {

	prompt, err := agent.BuildPrompt(ev, record, strict)
	if err != nil {
		return models.DiaryEntry{}, err
	}

	result, err := e.gateway.Generate(ctx, prompt, llm.Constraints{
		Fallback: agents.FallbackJSON(category),
	})
	if err != nil {
		// Timed-out or canceled generations are abandoned here; a late
		// provider response can never reach commit.
		return models.DiaryEntry{}, fmt.Errorf("generating entry: %w", err)
	}

	draft, err := agent.PostProcess(result.Text)
	if err != nil {
		return models.DiaryEntry{}, &validator.FormatViolation{Field: "draft", Detail: err.Error()}
	}

	return validator.Normalize(draft, ev, category, date, result.Provider, e.now())
}

// commitAndPersist makes commit+persist effectively atomic: the plan
// manager commits (re-checking every precondition under its lock), the
// store writes entry and plan snapshot in one transaction, and a store
// failure triggers the compensating uncommit so no quota is consumed.
func (e *Engine) commitAndPersist(date string, category models.EventCategory, entry models.DiaryEntry) error {
	snapshot, err := e.plans.Commit(date, category)
	if err != nil {
		return err
	}
	if err := e.store.SaveEntryAndCommitPlan(entry, *snapshot); err != nil {
		e.plans.Uncommit(date, category)
		return fmt.Errorf("persisting entry: %w", err)
	}
	return nil
}

// PlanSnapshot returns today's plan for the status endpoint, ensuring
// one exists (this doubles as the first-event-of-day trigger for a day
// with no events yet).
func (e *Engine) PlanSnapshot() models.DailyPlan {
	date := e.now().In(e.tz).Format("2006-01-02")
	p, created := e.plans.EnsurePlan(date)
	if created {
		if err := e.store.SavePlan(*p); err != nil {
			log.Printf("engine: persisting new plan for %s: %v", date, err)
		}
	}
	return *p
}

// Rollover archives yesterday's plan and draws today's. Called by the
// midnight scheduler tick.
func (e *Engine) Rollover() {
	e.PlanSnapshot()
}
