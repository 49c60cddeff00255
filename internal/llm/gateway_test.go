package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptProvider plays back a list of per-call errors; nil means a
// successful call returning resp.
type scriptProvider struct {
	name    string
	resp    string
	errs    []error
	calls   int
	healthy bool
}

func (p *scriptProvider) Name() string { return p.name }

func (p *scriptProvider) Generate(ctx context.Context, prompt string) (string, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	return p.resp, nil
}

func (p *scriptProvider) HealthCheck(ctx context.Context) error {
	if p.healthy {
		return nil
	}
	return transientErr("still down")
}

func testConfig() Config {
	return Config{
		Timeout:          time.Second,
		Attempts:         3,
		Backoff:          0,
		BreakerThreshold: 3,
		Cooldown:         time.Minute,
	}
}

func TestGenerateSuccess(t *testing.T) {
	p := &scriptProvider{name: "primary", resp: "hello"}
	g := NewGateway(testConfig(), p)

	res, err := g.Generate(context.Background(), "prompt", Constraints{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Text != "hello" || res.Provider != "primary" || res.Fallback {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRetrySameProviderOnTransient(t *testing.T) {
	p := &scriptProvider{name: "primary", resp: "ok", errs: []error{
		transientErr("timeout"),
		transientErr("timeout"),
	}}
	g := NewGateway(testConfig(), p)

	res, err := g.Generate(context.Background(), "prompt", Constraints{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Text != "ok" {
		t.Errorf("text = %q, want ok", res.Text)
	}
	if p.calls != 3 {
		t.Errorf("provider called %d times, want 3", p.calls)
	}
}

// Three consecutive timeouts open the primary's circuit; the next call
// goes straight to the secondary without touching the primary.
func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	primary := &scriptProvider{name: "primary", errs: []error{
		transientErr("timeout"),
		transientErr("timeout"),
		transientErr("timeout"),
	}}
	secondary := &scriptProvider{name: "secondary", resp: "from secondary"}
	g := NewGateway(testConfig(), primary, secondary)

	res, err := g.Generate(context.Background(), "prompt", Constraints{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Provider != "secondary" {
		t.Errorf("provider = %s, want secondary", res.Provider)
	}
	if primary.calls != 3 {
		t.Fatalf("primary called %d times, want 3", primary.calls)
	}

	// Within the cooldown window the primary is not retried at all.
	if _, err := g.Generate(context.Background(), "prompt", Constraints{}); err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}
	if primary.calls != 3 {
		t.Errorf("primary called again while circuit open (%d calls)", primary.calls)
	}
	if secondary.calls != 2 {
		t.Errorf("secondary called %d times, want 2", secondary.calls)
	}

	states := g.States()
	if states[0].State != "open" {
		t.Errorf("primary state = %s, want open", states[0].State)
	}
}

func TestCooldownExpiryClosesCircuit(t *testing.T) {
	primary := &scriptProvider{name: "primary", resp: "back", errs: []error{
		transientErr("boom"), transientErr("boom"), transientErr("boom"),
	}}
	g := NewGateway(testConfig(), primary)

	now := time.Now()
	g.now = func() time.Time { return now }

	if _, err := g.Generate(context.Background(), "prompt", Constraints{Fallback: "fb"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Move past the cooldown; the provider is retried and recovers.
	g.now = func() time.Time { return now.Add(2 * time.Minute) }
	res, err := g.Generate(context.Background(), "prompt", Constraints{})
	if err != nil {
		t.Fatalf("Generate after cooldown failed: %v", err)
	}
	if res.Text != "back" || res.Fallback {
		t.Errorf("unexpected result after recovery: %+v", res)
	}
}

// With every provider down, the deterministic fallback is produced
// instead of an error.
func TestFallbackWhenExhausted(t *testing.T) {
	down := &scriptProvider{name: "primary", errs: []error{
		transientErr("x"), transientErr("x"), transientErr("x"),
	}}
	g := NewGateway(testConfig(), down)

	res, err := g.Generate(context.Background(), "prompt", Constraints{Fallback: "template text"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !res.Fallback || res.Text != "template text" || res.Provider != "fallback" {
		t.Errorf("unexpected fallback result: %+v", res)
	}
}

func TestExhaustedWithoutFallback(t *testing.T) {
	down := &scriptProvider{name: "primary", errs: []error{
		transientErr("x"), transientErr("x"), transientErr("x"),
	}}
	g := NewGateway(testConfig(), down)

	_, err := g.Generate(context.Background(), "prompt", Constraints{})
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("error = %v, want ErrExhausted", err)
	}
}

// Auth errors escalate immediately: no retries, provider disabled for
// the process lifetime.
func TestAuthErrorDisablesProvider(t *testing.T) {
	bad := &scriptProvider{name: "primary", errs: []error{authErr("401")}}
	good := &scriptProvider{name: "secondary", resp: "ok"}
	g := NewGateway(testConfig(), bad, good)

	res, err := g.Generate(context.Background(), "prompt", Constraints{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Provider != "secondary" {
		t.Errorf("provider = %s, want secondary", res.Provider)
	}
	if bad.calls != 1 {
		t.Errorf("bad provider called %d times, want 1 (no retry on auth)", bad.calls)
	}

	if _, err := g.Generate(context.Background(), "prompt", Constraints{}); err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}
	if bad.calls != 1 {
		t.Errorf("disabled provider called again (%d calls)", bad.calls)
	}
	if states := g.States(); states[0].State != "disabled" {
		t.Errorf("state = %s, want disabled", states[0].State)
	}
}

// Malformed responses are bounded by the attempt budget, not retried
// forever.
func TestMalformedBoundedByAttempts(t *testing.T) {
	p := &scriptProvider{name: "primary", errs: []error{
		malformedErr("empty"), malformedErr("empty"), malformedErr("empty"),
		malformedErr("empty"), malformedErr("empty"),
	}}
	g := NewGateway(testConfig(), p)

	if _, err := g.Generate(context.Background(), "prompt", Constraints{Fallback: "fb"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if p.calls != 3 {
		t.Errorf("provider called %d times, want exactly the attempt budget of 3", p.calls)
	}
}

func TestProbeClosesCircuit(t *testing.T) {
	p := &scriptProvider{name: "primary", resp: "ok", errs: []error{
		transientErr("x"), transientErr("x"), transientErr("x"),
	}}
	g := NewGateway(testConfig(), p)

	if _, err := g.Generate(context.Background(), "prompt", Constraints{Fallback: "fb"}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if g.Healthy() {
		t.Fatal("gateway should be unhealthy with circuit open")
	}

	p.healthy = true
	g.Probe(context.Background())

	if !g.Healthy() {
		t.Error("gateway should be healthy after successful probe")
	}
	if states := g.States(); states[0].State != "healthy" {
		t.Errorf("state = %s, want healthy", states[0].State)
	}
}

// A provider exceeding the per-call timeout is abandoned; its eventual
// answer is discarded rather than applied.
func TestPerCallTimeout(t *testing.T) {
	slow := slowProvider{delay: 100 * time.Millisecond}
	cfg := testConfig()
	cfg.Timeout = 10 * time.Millisecond
	cfg.Attempts = 1
	g := NewGateway(cfg, slow)

	res, err := g.Generate(context.Background(), "prompt", Constraints{Fallback: "fb"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !res.Fallback {
		t.Errorf("expected fallback after timeout, got %+v", res)
	}
}

type slowProvider struct {
	delay time.Duration
}

func (p slowProvider) Name() string { return "slow" }

func (p slowProvider) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(p.delay):
		return "too late", nil
	}
}
