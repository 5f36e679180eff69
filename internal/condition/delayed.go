package condition

import (
	"time"

	"github.com/dwsmith1983/tripwire/internal/expr"
)

// Delayed passes its child's triggered state through only after the child
// has stayed triggered for the whole delay. Any drop of the child abandons
// the countdown.
type Delayed struct {
	child   Condition
	delay   time.Duration
	enabled bool
	fireAt  time.Time // zero when no countdown is pending
}

// NewDelayed wraps child with a debounce delay.
func NewDelayed(child Condition, delay time.Duration) *Delayed {
	return &Delayed{child: child, delay: delay, enabled: true}
}

// Triggered is true once the child is triggered and no countdown is pending.
func (d *Delayed) Triggered() bool {
	return d.enabled && d.child.Triggered() && d.fireAt.IsZero()
}

// Update forwards to the child and tracks its edges.
func (d *Delayed) Update(now time.Time, env expr.Env) {
	before := d.child.Triggered()
	d.child.Update(now, env)
	after := d.child.Triggered()

	switch {
	case after && !before:
		d.fireAt = now.Add(d.delay)
	case !after && before:
		d.fireAt = time.Time{}
	}
	d.elapse(now)
}

// Tick ticks the child, then completes an elapsed countdown.
func (d *Delayed) Tick(now time.Time) bool {
	changed := d.child.Tick(now)
	if d.elapse(now) {
		return true
	}
	return changed
}

func (d *Delayed) elapse(now time.Time) bool {
	if !d.fireAt.IsZero() && !now.Before(d.fireAt) {
		d.fireAt = time.Time{}
		return true
	}
	return false
}

// Pending reports whether a countdown is running.
func (d *Delayed) Pending() bool { return !d.fireAt.IsZero() }

// Expired implements Condition.
func (d *Delayed) Expired(now time.Time) bool { return d.child.Expired(now) }

// Keys implements Condition.
func (d *Delayed) Keys() []string { return d.child.Keys() }

// NewSetups implements Condition.
func (d *Delayed) NewSetups(setups []string) { d.child.NewSetups(setups) }

// SetEnabled implements Condition.
func (d *Delayed) SetEnabled(enabled bool) {
	d.enabled = enabled
	d.child.SetEnabled(enabled)
}

// Enabled implements Condition.
func (d *Delayed) Enabled() bool { return d.enabled }
