/*
recompute.go - The single entry point callers invoke on every change

PURPOSE:
  One synchronous, side-effect-free pass over in-memory inputs:

    rulesets + calendar
        -> pending periods          (evaluate.go)
        -> base drafts              (draft.go, consulting ledger.go)
        -> status + edits restored  (merge.go, edits.go)
        -> extra value layered in   (extra.go)
        -> displayed drafts

  The caller owns all mutable state (override ledger, edit tracker,
  previous drafts) and invokes Recompute on load, refresh and every
  config change. A superseded result is simply discarded in favor of the
  latest - the pass blocks on nothing.

ORDERING NOTE:
  The extra value is allocated AFTER status reconciliation so a draft
  already marked done in this session never absorbs it. Tracked edits do
  not cover amounts, so the order of edit application and allocation
  cannot conflict.
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT / RESULT
// =============================================================================

// RecomputeInput carries everything a pass reads. The ledger and tracker
// are mutated in place (totals recorded, stale overrides pruned); all
// other fields are read-only.
type RecomputeInput struct {
	Rulesets []Ruleset
	AsOf     time.Time

	// LastInvoiced maps ruleset id to the absolute number of the last
	// fully invoiced period. Missing entries mean "nothing invoiced yet".
	LastInvoiced map[RulesetID]int

	Ledger *OverrideLedger
	Edits  *EditTracker

	// Previous is the draft list shown after the prior pass.
	Previous []InvoiceDraft

	// ExtraValue is the sum of classified extra items plus the running
	// ad-hoc invoice total.
	ExtraValue decimal.Decimal

	// ExtraSink optionally pins the ruleset whose most recent pending
	// draft absorbs the extra value.
	ExtraSink RulesetID
}

// RecomputeResult is the reconciled output of one pass.
type RecomputeResult struct {
	Drafts []InvoiceDraft

	// Unallocated is the extra value no pending draft could absorb.
	// Never silently dropped; the caller surfaces it.
	Unallocated decimal.Decimal
}

// =============================================================================
// RECOMPUTE
// =============================================================================

// Recompute performs one full computation pass. For fixed inputs the
// result is byte-for-byte identical across calls, except for fields
// explicitly carried over from the edit tracker or draft status.
func Recompute(in RecomputeInput) (*RecomputeResult, error) {
	ledger := in.Ledger
	if ledger == nil {
		ledger = NewOverrideLedger()
	}

	var fresh []InvoiceDraft
	live := make(map[PeriodKey]struct{})

	for i := range in.Rulesets {
		rs := &in.Rulesets[i]

		lastInvoiced, ok := in.LastInvoiced[rs.ID]
		if !ok {
			lastInvoiced = rs.Periodicity.PeriodNumber(rs.ActiveFrom.Year, rs.ActiveFrom.Month) - 1
		}

		pending, err := EvaluatePending(rs, in.AsOf, lastInvoiced)
		if err != nil {
			return nil, err
		}

		for _, d := range BuildDrafts(rs, pending, ledger) {
			live[d.PeriodKey()] = struct{}{}
			fresh = append(fresh, d)
		}
	}

	if err := checkUniqueIDs(fresh); err != nil {
		return nil, err
	}
	ledger.Prune(live)

	merged := MergeDrafts(fresh, in.Previous, in.Edits)
	drafts, unallocated := AllocateExtra(merged, in.ExtraValue, in.ExtraSink)

	return &RecomputeResult{Drafts: drafts, Unallocated: unallocated}, nil
}

// checkUniqueIDs treats a duplicate draft id as a fatal invariant
// violation, never resolved by last-write-wins.
func checkUniqueIDs(drafts []InvoiceDraft) error {
	seen := make(map[DraftID]struct{}, len(drafts))
	for _, d := range drafts {
		if _, dup := seen[d.ID]; dup {
			return &DuplicateDraftError{ID: d.ID}
		}
		seen[d.ID] = struct{}{}
	}
	return nil
}
