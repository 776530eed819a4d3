package target

import (
	"sync"
	"testing"
)

func TestState_ZeroValueUnset(t *testing.T) {
	t.Parallel()

	var s State
	if got := s.Get(); got != 0 {
		t.Errorf("Get() = %d, want 0", got)
	}
}

func TestState_SetGet(t *testing.T) {
	t.Parallel()

	var s State
	s.Set(42)
	if got := s.Get(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}
	s.Set(7)
	if got := s.Get(); got != 7 {
		t.Errorf("Get() = %d, want 7", got)
	}
}

func TestState_ConcurrentSet(t *testing.T) {
	t.Parallel()

	var s State
	const writers = 100

	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			s.Set(id)
			_ = s.Get()
		}(uint64(i + 1))
	}
	wg.Wait()

	got := s.Get()
	if got < 1 || got > writers {
		t.Errorf("Get() = %d, want one of the written ids 1..%d", got, writers)
	}
}
