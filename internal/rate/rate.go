// Package rate paces chunked sends so that the average throughput of a transfer
// converges to a configured number of bytes per second.
//
// Pacing happens between chunks only: a chunk is written in one burst, and the
// time spent waiting for its acknowledgement counts towards the next chunk's
// budget rather than being added on top of it.
package rate

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidRate is returned for a rate that is not a positive number of bytes per second.
var ErrInvalidRate = errors.New("rate must be a positive number of bytes per second")

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Budget returns the time a chunk of chunkSize bytes may occupy at rate bytes
// per second. It is the only place the chunk size enters the pacing formula.
func Budget(rate int64, chunkSize int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(chunkSize) * int64(time.Second) / rate)
}

// Shaper holds the pacing state of a single transfer. It is not safe for
// concurrent use; every connection owns its own.
type Shaper struct {
	budget time.Duration
	clock  Clock

	last    time.Time
	started bool
}

// Option configures a Shaper.
type Option func(*Shaper)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(s *Shaper) {
		s.clock = c
	}
}

// New returns a shaper pacing chunks of chunkSize bytes at rate bytes per second.
func New(rate int64, chunkSize int, opts ...Option) (*Shaper, error) {
	if rate <= 0 {
		return nil, errors.Wrapf(ErrInvalidRate, "got %d", rate)
	}
	if chunkSize <= 0 {
		return nil, errors.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	s := &Shaper{
		budget: Budget(rate, chunkSize),
		clock:  systemClock{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Budget returns the per chunk time budget of the shaper.
func (s *Shaper) Budget() time.Duration {
	return s.budget
}

// Wait blocks until the next chunk may be sent and marks the start of its send.
// The first call returns immediately. Later calls block for whatever remains of
// the budget since the previous call started.
func (s *Shaper) Wait(ctx context.Context) error {
	if s.started {
		if remaining := s.budget - s.clock.Now().Sub(s.last); remaining > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.clock.After(remaining):
			}
		}
	}
	s.started = true
	s.last = s.clock.Now()
	return nil
}
