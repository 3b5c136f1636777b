/*
ledger.go - Override ledger and calculated-total bookkeeping

PURPOSE:
  Users may replace a period's computed base amount with their own total
  ("this month we agreed on 1200"). The ledger holds those overrides,
  keyed by period, and records what the engine WOULD have computed so the
  UI can offer "reset to calculated" and detect redundant overrides.

SUBSTITUTION LAW:
  effective = override + carryIn        (override set)
  effective = ownBase  + carryIn        (no override)

  The override substitutes only for the period's own base amount, never
  for carry-in from other periods. Removing the override and recomputing
  reproduces the calculated total exactly - the ledger never mutates the
  evaluator's arithmetic.

LIFECYCLE:
  The ledger lives in the caller's transient state. Stale keys are pruned
  once periods advance; the whole ledger is cleared after a successful
  "generate all" pass since overrides are period-scoped.
*/
package billing

import "github.com/shopspring/decimal"

// =============================================================================
// OVERRIDE LEDGER
// =============================================================================

// OverrideLedger maps period keys to user-supplied totals and retains the
// original computed totals of every pass. Safe for concurrent reads;
// mutations must come from the single logical thread driving the caller.
type OverrideLedger struct {
	overrides    map[PeriodKey]decimal.Decimal
	calculated   map[PeriodKey]decimal.Decimal // full total, incl. carry-in
	computedBase map[PeriodKey]decimal.Decimal // own base only
}

// NewOverrideLedger returns an empty ledger.
func NewOverrideLedger() *OverrideLedger {
	return &OverrideLedger{
		overrides:    make(map[PeriodKey]decimal.Decimal),
		calculated:   make(map[PeriodKey]decimal.Decimal),
		computedBase: make(map[PeriodKey]decimal.Decimal),
	}
}

// Set records a user override for a period.
func (l *OverrideLedger) Set(key PeriodKey, total decimal.Decimal) {
	l.overrides[key] = total
}

// Clear removes the override for a period; the next Apply reproduces the
// calculated total exactly.
func (l *OverrideLedger) Clear(key PeriodKey) {
	delete(l.overrides, key)
}

// Override returns the override for a period, if set.
func (l *OverrideLedger) Override(key PeriodKey) (decimal.Decimal, bool) {
	v, ok := l.overrides[key]
	return v, ok
}

// Apply records the pass's computed totals for the period and returns the
// effective total: the override plus carry-in when an override is set,
// the raw calculated total otherwise.
func (l *OverrideLedger) Apply(key PeriodKey, ownBase, carryIn decimal.Decimal) decimal.Decimal {
	raw := ownBase.Add(carryIn)
	l.calculated[key] = raw
	l.computedBase[key] = ownBase

	if ov, ok := l.overrides[key]; ok {
		return ov.Add(carryIn)
	}
	return raw
}

// CalculatedTotal returns the full calculated total (own base + carry-in)
// recorded for a period in the latest pass.
func (l *OverrideLedger) CalculatedTotal(key PeriodKey) (decimal.Decimal, bool) {
	v, ok := l.calculated[key]
	return v, ok
}

// ComputedBase returns the period's own contribution recorded in the
// latest pass, excluding carry-in.
func (l *OverrideLedger) ComputedBase(key PeriodKey) (decimal.Decimal, bool) {
	v, ok := l.computedBase[key]
	return v, ok
}

// IsEffective reports whether the period's override actually changes the
// outcome, i.e. differs from the period's own computed base.
func (l *OverrideLedger) IsEffective(key PeriodKey) bool {
	ov, ok := l.overrides[key]
	if !ok {
		return false
	}
	base, ok := l.computedBase[key]
	if !ok {
		return true // no pass has seen this period yet; assume it matters
	}
	return !ov.Equal(base)
}

// Prune drops every entry whose key is not in live. Called at the end of
// a pass so the ledger does not grow unbounded as periods advance.
func (l *OverrideLedger) Prune(live map[PeriodKey]struct{}) {
	for key := range l.overrides {
		if _, ok := live[key]; !ok {
			delete(l.overrides, key)
		}
	}
	for key := range l.calculated {
		if _, ok := live[key]; !ok {
			delete(l.calculated, key)
		}
	}
	for key := range l.computedBase {
		if _, ok := live[key]; !ok {
			delete(l.computedBase, key)
		}
	}
}

// Reset clears the ledger wholesale. Called after a successful batch
// generation: the periods the entries referenced are no longer pending.
func (l *OverrideLedger) Reset() {
	l.overrides = make(map[PeriodKey]decimal.Decimal)
	l.calculated = make(map[PeriodKey]decimal.Decimal)
	l.computedBase = make(map[PeriodKey]decimal.Decimal)
}

// Len returns the number of active overrides.
func (l *OverrideLedger) Len() int {
	return len(l.overrides)
}
