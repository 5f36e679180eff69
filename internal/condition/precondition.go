package condition

import (
	"time"

	"github.com/dwsmith1983/tripwire/internal/expr"
)

// Precondition triggers only when cond becomes triggered while pre is
// triggered, or was triggered immediately before the same update. The latch
// drops as soon as cond drops.
type Precondition struct {
	pre, cond Condition
	enabled   bool
	latched   bool
}

// NewPrecondition gates cond behind pre.
func NewPrecondition(pre, cond Condition) *Precondition {
	return &Precondition{pre: pre, cond: cond, enabled: true}
}

// Triggered implements Condition.
func (p *Precondition) Triggered() bool {
	return p.enabled && p.latched && p.cond.Triggered()
}

// Update evaluates both children against the same namespace.
func (p *Precondition) Update(now time.Time, env expr.Env) {
	preBefore := p.pre.Triggered()
	p.pre.Update(now, env)
	p.cond.Update(now, env)
	p.relatch(preBefore)
}

// Tick ticks both children. A debounced cond that completes its countdown
// here is checked against the latch rule like an update would be.
func (p *Precondition) Tick(now time.Time) bool {
	preBefore := p.pre.Triggered()
	preChanged := p.pre.Tick(now)
	condChanged := p.cond.Tick(now)
	if preChanged || condChanged {
		p.relatch(preBefore)
		return true
	}
	return false
}

func (p *Precondition) relatch(preBefore bool) {
	condOn := p.cond.Triggered()
	if (preBefore || p.pre.Triggered()) && condOn {
		p.latched = true
	}
	if !condOn {
		p.latched = false
	}
}

// Latched reports whether the precondition latch is set.
func (p *Precondition) Latched() bool { return p.latched }

// Expired is true when either child is expired.
func (p *Precondition) Expired(now time.Time) bool {
	return p.pre.Expired(now) || p.cond.Expired(now)
}

// Keys returns the union of both children's keys.
func (p *Precondition) Keys() []string {
	return unionKeys(p.pre.Keys(), p.cond.Keys())
}

// NewSetups implements Condition.
func (p *Precondition) NewSetups(setups []string) {
	p.pre.NewSetups(setups)
	p.cond.NewSetups(setups)
}

// SetEnabled implements Condition.
func (p *Precondition) SetEnabled(enabled bool) {
	p.enabled = enabled
	p.pre.SetEnabled(enabled)
	p.cond.SetEnabled(enabled)
}

// Enabled implements Condition.
func (p *Precondition) Enabled() bool { return p.enabled }
