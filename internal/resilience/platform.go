package resilience

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/tailbot/pkg/voice"
)

// Platform wraps a [voice.Platform] with one [CircuitBreaker] per guild.
// After repeated failed handshakes in a guild, joins there fail fast with
// [ErrCircuitOpen] until the reset timeout passes.
type Platform struct {
	next voice.Platform
	cfg  CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

var _ voice.Platform = (*Platform)(nil)

// NewPlatform guards next. cfg.Name is suffixed with the guild id.
func NewPlatform(next voice.Platform, cfg CircuitBreakerConfig) *Platform {
	if cfg.Name == "" {
		cfg.Name = "voice.join"
	}
	return &Platform{
		next:     next,
		cfg:      cfg,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Join implements [voice.Platform].
func (p *Platform) Join(ctx context.Context, guildID, channelID string) (voice.Link, error) {
	var link voice.Link
	err := p.breaker(guildID).Execute(func() error {
		var err error
		link, err = p.next.Join(ctx, guildID, channelID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// State returns the breaker state for guildID.
func (p *Platform) State(guildID string) State {
	return p.breaker(guildID).State()
}

// Check returns an error wrapping [ErrCircuitOpen] while joins in guildID
// are being refused.
func (p *Platform) Check(guildID string) error {
	if st := p.State(guildID); st == StateOpen {
		return fmt.Errorf("resilience: joins in guild %s paused: %w", guildID, ErrCircuitOpen)
	}
	return nil
}

func (p *Platform) breaker(guildID string) *CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	cb, ok := p.breakers[guildID]
	if !ok {
		cfg := p.cfg
		cfg.Name = p.cfg.Name + "/" + guildID
		cb = NewCircuitBreaker(cfg)
		p.breakers[guildID] = cb
	}
	return cb
}
