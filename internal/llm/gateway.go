package llm

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/mochikko/diary-server/internal/models"
)

// ErrExhausted is returned when every provider is down and no fallback
// text was supplied.
var ErrExhausted = errors.New("all generation providers exhausted")

// Config tunes the gateway's retry and circuit-breaker behavior.
type Config struct {
	// Timeout bounds each individual provider call.
	Timeout time.Duration
	// Attempts is the per-provider retry budget for one Generate call.
	Attempts int
	// Backoff is the base delay between same-provider retries; it
	// doubles per retry. Zero disables sleeping (tests).
	Backoff time.Duration
	// BreakerThreshold is the consecutive-failure count that opens a
	// provider's circuit.
	BreakerThreshold int
	// Cooldown is the first circuit-open duration; it doubles on each
	// subsequent trip, capped at an hour.
	Cooldown time.Duration
}

// Constraints shape a single generation request.
type Constraints struct {
	// Fallback is deterministic template text returned when every
	// provider is exhausted or circuit-open. Empty means fail instead.
	Fallback string
}

// Result is the gateway's answer to one Generate call.
type Result struct {
	Text     string
	Provider string
	Fallback bool
}

// providerState tracks one provider's runtime health. Process-wide
// state only; it is never persisted across restarts.
type providerState struct {
	provider Provider

	consecutiveFailures int
	circuitOpenUntil    time.Time
	trips               int
	disabled            bool // permanent, set by auth/config errors
}

// Gateway fans a generation request across an ordered provider list
// with retry, failover, and circuit breaking. Health state is guarded
// by mu; the lock is never held across a provider call so one slow
// provider cannot stall unrelated generations.
type Gateway struct {
	cfg Config
	now func() time.Time

	mu     sync.Mutex
	states []*providerState
}

// NewGateway creates a gateway over providers, ordered by priority
// (first is tried first).
func NewGateway(cfg Config, providers ...Provider) *Gateway {
	g := &Gateway{cfg: cfg, now: time.Now}
	for _, p := range providers {
		g.states = append(g.states, &providerState{provider: p})
	}
	return g
}

const maxCooldown = time.Hour

// Generate runs the prompt against the highest-priority available
// provider, retrying transient failures on the same provider before
// falling through to the next. When everything is down it degrades to
// the deterministic fallback rather than blocking diary production.
func (g *Gateway) Generate(ctx context.Context, prompt string, c Constraints) (Result, error) {
	for _, st := range g.states {
		if !g.available(st) {
			continue
		}
		text, err := g.tryProvider(ctx, st, prompt)
		if err == nil {
			return Result{Text: text, Provider: st.provider.Name()}, nil
		}
		if ctx.Err() != nil {
			// The submitting caller is gone; a late result must not
			// be applied.
			return Result{}, ctx.Err()
		}
		log.Printf("llm: provider %s failed: %v", st.provider.Name(), err)
	}

	if c.Fallback != "" {
		return Result{Text: c.Fallback, Provider: "fallback", Fallback: true}, nil
	}
	return Result{}, ErrExhausted
}

func (g *Gateway) available(st *providerState) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.availableLocked(st)
}

func (g *Gateway) availableLocked(st *providerState) bool {
	if st.disabled {
		return false
	}
	return st.circuitOpenUntil.IsZero() || !g.now().Before(st.circuitOpenUntil)
}

// tryProvider spends the attempt budget on one provider.
func (g *Gateway) tryProvider(ctx context.Context, st *providerState, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.cfg.Attempts; attempt++ {
		if attempt > 0 && g.cfg.Backoff > 0 {
			backoff := g.cfg.Backoff << uint(attempt-1)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		text, err := st.provider.Generate(callCtx, prompt)
		cancel()
		if err == nil {
			g.recordSuccess(st)
			return text, nil
		}

		lastErr = err
		g.recordFailure(st, kindOf(err) == KindAuth)

		if kindOf(err) == KindAuth {
			return "", err
		}
		if ctx.Err() != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (g *Gateway) recordSuccess(st *providerState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st.consecutiveFailures = 0
	st.circuitOpenUntil = time.Time{}
	st.trips = 0
}

func (g *Gateway) recordFailure(st *providerState, auth bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if auth {
		// Retrying cannot succeed; drop this provider for the
		// process lifetime.
		st.disabled = true
		return
	}
	st.consecutiveFailures++
	if st.consecutiveFailures >= g.cfg.BreakerThreshold {
		st.trips++
		cooldown := g.cfg.Cooldown << uint(st.trips-1)
		if cooldown > maxCooldown || cooldown <= 0 {
			cooldown = maxCooldown
		}
		st.circuitOpenUntil = g.now().Add(cooldown)
		st.consecutiveFailures = 0
		log.Printf("llm: circuit open for %s until %s (trip %d)",
			st.provider.Name(), st.circuitOpenUntil.Format(time.RFC3339), st.trips)
	}
}

// Probe runs health checks against circuit-open providers and closes
// the circuit early when one answers. Called by the scheduler.
func (g *Gateway) Probe(ctx context.Context) {
	g.mu.Lock()
	var open []*providerState
	for _, st := range g.states {
		if st.disabled || st.circuitOpenUntil.IsZero() || g.now().After(st.circuitOpenUntil) {
			continue
		}
		open = append(open, st)
	}
	g.mu.Unlock()

	for _, st := range open {
		hc, ok := st.provider.(HealthChecker)
		if !ok {
			continue
		}
		if err := hc.HealthCheck(ctx); err != nil {
			continue
		}
		g.recordSuccess(st)
		log.Printf("llm: provider %s recovered, circuit closed", st.provider.Name())
	}
}

// Healthy reports whether at least one provider is currently available.
func (g *Gateway) Healthy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, st := range g.states {
		if g.availableLocked(st) {
			return true
		}
	}
	return false
}

// States snapshots provider health for the status endpoint.
func (g *Gateway) States() []models.ProviderStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	out := make([]models.ProviderStatus, 0, len(g.states))
	for _, st := range g.states {
		ps := models.ProviderStatus{
			Name:                st.provider.Name(),
			ConsecutiveFailures: st.consecutiveFailures,
		}
		switch {
		case st.disabled:
			ps.State = "disabled"
		case !st.circuitOpenUntil.IsZero() && now.Before(st.circuitOpenUntil):
			ps.State = "open"
			ps.CircuitOpenUntil = st.circuitOpenUntil.Format(time.RFC3339)
		case st.consecutiveFailures > 0:
			ps.State = "degraded"
		default:
			ps.State = "healthy"
		}
		out = append(out, ps)
	}
	return out
}
