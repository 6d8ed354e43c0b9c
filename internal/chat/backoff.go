package chat

import (
	"context"
	"time"
)

// ReconnectPolicy bounds automatic reconnection of the live channel after an
// abrupt drop. The zero value disables reconnection.
type ReconnectPolicy struct {
	Enabled     bool
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

// Delay returns the wait before reconnect attempt n (zero-based): Initial
// doubled n times, capped at Max.
func (p ReconnectPolicy) Delay(n int) time.Duration {
	delay := p.Initial
	if delay <= 0 {
		delay = time.Second
	}
	for i := 0; i < n; i++ {
		delay *= 2
		if p.Max > 0 && delay >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && delay > p.Max {
		return p.Max
	}
	return delay
}

// allows reports whether attempt n may run.
func (p ReconnectPolicy) allows(n int) bool {
	if !p.Enabled {
		return false
	}
	return p.MaxAttempts <= 0 || n < p.MaxAttempts
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
