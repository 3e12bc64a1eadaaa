package loop

import (
	"context"
	"sync"
	"time"
)

type TimeProvider interface {
	Now() time.Time
}

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealTime reads the monotonic system clock and sleeps on a timer.
type RealTime struct{}

func (RealTime) Now() time.Time {
	return time.Now()
}

func (RealTime) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MockTime is a controllable clock for tests. Sleeping advances it instantly
// and records the requested duration.
type MockTime struct {
	mu     sync.RWMutex
	now    time.Time
	sleeps []time.Duration
}

func NewMockTime(start time.Time) *MockTime {
	return &MockTime{now: start}
}

func (m *MockTime) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func (m *MockTime) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleeps = append(m.sleeps, d)
	if d > 0 {
		m.now = m.now.Add(d)
	}
	return nil
}

// Sleeps returns a copy of every duration passed to Sleep.
func (m *MockTime) Sleeps() []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]time.Duration, len(m.sleeps))
	copy(out, m.sleeps)
	return out
}
