package utils

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Pacer inserts a settle delay between two interactions with the remote site.
type Pacer interface {
	Pause(ctx context.Context) error
}

// RandomPacer waits a uniformly distributed duration in [Min, Max].
type RandomPacer struct {
	Min time.Duration
	Max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomPacer returns a pacer drawing delays from [min, max]. Swapped bounds are normalised.
func NewRandomPacer(min, max time.Duration) *RandomPacer {
	if max < min {
		min, max = max, min
	}
	return &RandomPacer{Min: min, Max: max}
}

// Next returns the next delay without waiting.
func (p *RandomPacer) Next() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rnd == nil {
		p.rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	return p.Min + time.Duration(p.rnd.Int64N(int64(p.Max-p.Min)+1))
}

func (p *RandomPacer) Pause(ctx context.Context) error {
	return WaitFor(ctx, p.Next())
}

// NoPacer never waits. Useful for tests and dry runs.
type NoPacer struct{}

func (NoPacer) Pause(ctx context.Context) error { return ctx.Err() }
