// Package schedule computes reconnect delays for telemetry connections.
package schedule

import (
	"context"
	"math"
	"time"
)

// ReconnectPolicy configures exponential reconnect backoff.
type ReconnectPolicy struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

// DefaultReconnectPolicy returns the default reconnect configuration.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Base:       time.Second,
		Multiplier: 2.0,
		Max:        time.Minute,
	}
}

// CalculateBackoff returns the wait duration for a given attempt number.
// Uses exponential backoff: base * multiplier^(attempt-1), capped at Max.
func CalculateBackoff(policy ReconnectPolicy, attempt int) time.Duration {
	if attempt <= 1 {
		return policy.Base
	}
	multiplier := policy.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	backoff := float64(policy.Base) * math.Pow(multiplier, float64(attempt-1))
	if policy.Max > 0 && backoff > float64(policy.Max) {
		return policy.Max
	}
	return time.Duration(backoff)
}

// Sleep waits for the backoff of the given attempt or until ctx is done.
// It returns false when ctx was cancelled.
func Sleep(ctx context.Context, policy ReconnectPolicy, attempt int) bool {
	t := time.NewTimer(CalculateBackoff(policy, attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
