package discord

import (
	"testing"
	"time"
)

func TestSpeakingTracker(t *testing.T) {
	t.Parallel()

	tr := newSpeakingTracker(100 * time.Millisecond)
	t0 := time.Unix(1000, 0)

	if !tr.observe(1, t0) {
		t.Error("first packet should start speaking")
	}
	if tr.observe(1, t0.Add(20*time.Millisecond)) {
		t.Error("second packet should not start speaking again")
	}
	if !tr.observe(2, t0.Add(30*time.Millisecond)) {
		t.Error("first packet of a second SSRC should start speaking")
	}

	if got := tr.expire(t0.Add(110 * time.Millisecond)); len(got) != 0 {
		t.Errorf("expire before window = %v, want none", got)
	}

	got := tr.expire(t0.Add(125 * time.Millisecond))
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expire = %v, want [1]", got)
	}

	if !tr.observe(1, t0.Add(200*time.Millisecond)) {
		t.Error("packet after silence should start a new speaking run")
	}
}
