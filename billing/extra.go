/*
extra.go - Extra value allocation

PURPOSE:
  Variable income (classified freelance files, the running ad-hoc invoice
  total) is layered on top of the base drafts. Policy: the whole extra
  amount goes to a SINGLE designated draft so variable income stays
  traceable to one line instead of silently diluting every invoice.

SINK SELECTION (explicit configuration knob):
  1. If a sink ruleset is configured and has a pending draft, the most
     recent pending draft of that ruleset absorbs the extra.
  2. Otherwise the most temporally current pending draft overall does.
  3. With no pending draft at all the allocator fabricates nothing; the
     full amount is returned as unallocated for the caller to surface
     (e.g. via ad-hoc invoice creation).
*/
package billing

import "github.com/shopspring/decimal"

// =============================================================================
// EXTRA VALUE ALLOCATOR
// =============================================================================

// AllocateExtra adds the extra value to a single pending draft and
// returns the updated list plus any unallocated remainder. The input
// slice is not mutated. Done drafts never absorb extra value.
func AllocateExtra(drafts []InvoiceDraft, extra decimal.Decimal, sink RulesetID) ([]InvoiceDraft, decimal.Decimal) {
	out := make([]InvoiceDraft, len(drafts))
	copy(out, drafts)

	if extra.IsZero() {
		return out, decimal.Zero
	}

	target := sinkIndex(out, sink)
	if target < 0 {
		return out, extra
	}
	out[target].Amount = out[target].Amount.Add(extra)
	return out, decimal.Zero
}

// sinkIndex picks the draft that absorbs the extra value, or -1.
func sinkIndex(drafts []InvoiceDraft, sink RulesetID) int {
	best := -1
	bestOfSink := -1
	for i, d := range drafts {
		if d.Status != StatusPending {
			continue
		}
		if best < 0 || moreCurrent(d, drafts[best]) {
			best = i
		}
		if d.RulesetID == sink {
			if bestOfSink < 0 || moreCurrent(d, drafts[bestOfSink]) {
				bestOfSink = i
			}
		}
	}
	if sink != "" && bestOfSink >= 0 {
		return bestOfSink
	}
	return best
}

// moreCurrent reports whether a is temporally later than b.
func moreCurrent(a, b InvoiceDraft) bool {
	if a.Year != b.Year {
		return a.Year > b.Year
	}
	return a.Month > b.Month
}
