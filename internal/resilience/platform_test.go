package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/tailbot/pkg/voice/mock"
)

func TestPlatform_OpensPerGuild(t *testing.T) {
	t.Parallel()

	inner := &mock.Platform{JoinError: errors.New("missing access")}
	p := NewPlatform(inner, CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	ctx := context.Background()

	for range 2 {
		if _, err := p.Join(ctx, "g1", "c1"); err == nil {
			t.Fatal("Join succeeded, want error")
		}
	}
	if p.State("g1") != StateOpen {
		t.Fatalf("g1 state = %v, want open", p.State("g1"))
	}

	if _, err := p.Join(ctx, "g1", "c1"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if err := p.Check("g1"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Check(g1) = %v, want ErrCircuitOpen", err)
	}
	if got := inner.CallCountJoin(); got != 2 {
		t.Errorf("inner joins = %d, want 2", got)
	}

	// Another guild has its own breaker.
	if _, err := p.Join(ctx, "g2", "c1"); errors.Is(err, ErrCircuitOpen) {
		t.Error("g2 rejected by g1's breaker")
	}
	if err := p.Check("g2"); err != nil {
		t.Errorf("Check(g2) = %v, want nil", err)
	}
	if p.State("g2") != StateClosed {
		t.Errorf("g2 state = %v, want closed", p.State("g2"))
	}
}

func TestPlatform_PassesLinkThrough(t *testing.T) {
	t.Parallel()

	link := mock.NewLink()
	p := NewPlatform(&mock.Platform{JoinResult: link}, CircuitBreakerConfig{})

	got, err := p.Join(context.Background(), "g1", "c1")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got != link {
		t.Error("Join returned a different link")
	}
}
