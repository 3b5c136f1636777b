/*
Package session holds the caller-owned state around the billing engine.

PURPOSE:
  The engine in package billing is pure: it computes drafts from inputs
  and keeps nothing. Something still has to own those inputs between
  passes - the override ledger, the edit tracker, the previously
  displayed drafts, the ad-hoc invoice list, the last-invoiced counters.
  That something is the Session.

  The Session is the single logical thread the engine's concurrency
  model requires: every mutation goes through its mutex, recomputation is
  idempotent, and a superseded pass is simply overwritten by the latest.

LIFECYCLE:
  load config -> New -> (SetOverride | RecordEdit | AddAdhoc | SetExtraItems
  | Recompute)* -> GenerateAll -> counters advance, ledgers clear -> repeat

SEE ALSO:
  - generate.go: Batch generation with per-draft serialization
  - billing/recompute.go: The pass this session drives
*/
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/warp/billing-engine/billing"
)

// Session owns the mutable state that survives recomputation.
type Session struct {
	mu sync.Mutex

	rulesets     []billing.Ruleset
	lastInvoiced map[billing.RulesetID]int

	ledger *billing.OverrideLedger
	edits  *billing.EditTracker
	adhoc  *billing.AdhocList

	extraItems []billing.ExtraItem
	extraSink  billing.RulesetID

	drafts      []billing.InvoiceDraft
	unallocated decimal.Decimal

	// flights serializes generation per draft id.
	flights singleflight.Group

	now func() time.Time
}

// New creates a session for the given rulesets and last-invoiced period
// numbers (missing entries mean nothing invoiced yet).
func New(rulesets []billing.Ruleset, lastInvoiced map[billing.RulesetID]int) *Session {
	if lastInvoiced == nil {
		lastInvoiced = make(map[billing.RulesetID]int)
	}
	return &Session{
		rulesets:     rulesets,
		lastInvoiced: lastInvoiced,
		ledger:       billing.NewOverrideLedger(),
		edits:        billing.NewEditTracker(),
		adhoc:        billing.NewAdhocList(),
		now:          time.Now,
	}
}

// SetClock replaces the wall clock. Tests pin it to fixed dates.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// =============================================================================
// CONFIGURATION CHANGES - each one triggers a fresh pass
// =============================================================================

// SetRulesets replaces the ruleset configuration and recomputes.
func (s *Session) SetRulesets(rulesets []billing.Ruleset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rulesets = rulesets
	return s.recomputeLocked()
}

// SetExtraSink pins the ruleset that absorbs extra value and recomputes.
func (s *Session) SetExtraSink(id billing.RulesetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extraSink = id
	return s.recomputeLocked()
}

// SetExtraItems replaces the classified extra-income items and recomputes.
func (s *Session) SetExtraItems(items []billing.ExtraItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extraItems = items
	return s.recomputeLocked()
}

// Ruleset returns the configured ruleset by id.
func (s *Session) Ruleset(id billing.RulesetID) (billing.Ruleset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rs := range s.rulesets {
		if rs.ID == id {
			return rs, true
		}
	}
	return billing.Ruleset{}, false
}

// =============================================================================
// RECOMPUTATION
// =============================================================================

// Recompute runs one engine pass against the current wall clock.
func (s *Session) Recompute() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputeLocked()
}

func (s *Session) recomputeLocked() error {
	extra := billing.SumExtraItems(s.extraItems).Add(s.adhoc.PendingTotal())

	result, err := billing.Recompute(billing.RecomputeInput{
		Rulesets:     s.rulesets,
		AsOf:         s.now(),
		LastInvoiced: s.lastInvoiced,
		Ledger:       s.ledger,
		Edits:        s.edits,
		Previous:     s.drafts,
		ExtraValue:   extra,
		ExtraSink:    s.extraSink,
	})
	if err != nil {
		return err
	}
	s.drafts = result.Drafts
	s.unallocated = result.Unallocated
	return nil
}

// Drafts returns a copy of the reconciled periodic draft list.
func (s *Session) Drafts() []billing.InvoiceDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]billing.InvoiceDraft, len(s.drafts))
	copy(out, s.drafts)
	return out
}

// Draft returns one draft by id.
func (s *Session) Draft(id billing.DraftID) (billing.InvoiceDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftLocked(id)
}

func (s *Session) draftLocked(id billing.DraftID) (billing.InvoiceDraft, bool) {
	for _, d := range s.drafts {
		if d.ID == id {
			return d, true
		}
	}
	return billing.InvoiceDraft{}, false
}

// Unallocated returns the extra value no pending draft could absorb.
func (s *Session) Unallocated() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unallocated
}

// =============================================================================
// OVERRIDES
// =============================================================================

// SetOverride records a user-supplied total for a draft's period and
// recomputes. The override substitutes for the period's own base amount;
// carry-in from earlier periods stays on top.
func (s *Session) SetOverride(id billing.DraftID, total decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.draftLocked(id)
	if !ok {
		return fmt.Errorf("override %s: %w", id, billing.ErrDraftNotFound)
	}
	s.ledger.Set(d.PeriodKey(), total)
	return s.recomputeLocked()
}

// ClearOverride resets a draft's period to the calculated total.
func (s *Session) ClearOverride(id billing.DraftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.draftLocked(id)
	if !ok {
		return fmt.Errorf("clear override %s: %w", id, billing.ErrDraftNotFound)
	}
	s.ledger.Clear(d.PeriodKey())
	return s.recomputeLocked()
}

// OverrideEffective reports whether the draft's override meaningfully
// differs from the computed base amount.
func (s *Session) OverrideEffective(id billing.DraftID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.draftLocked(id)
	if !ok {
		return false
	}
	return s.ledger.IsEffective(d.PeriodKey())
}

// CalculatedTotal returns the non-overridden total recorded for a draft's
// period in the latest pass. The UI uses it for "reset to calculated".
func (s *Session) CalculatedTotal(id billing.DraftID) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.draftLocked(id)
	if !ok {
		return decimal.Zero, false
	}
	return s.ledger.CalculatedTotal(d.PeriodKey())
}

// =============================================================================
// EDITS
// =============================================================================

// RecordEdit merges a partial field edit for a draft and recomputes so
// the displayed list reflects it immediately.
func (s *Session) RecordEdit(id billing.DraftID, edit billing.DraftEdit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.draftLocked(id); !ok {
		return fmt.Errorf("edit %s: %w", id, billing.ErrDraftNotFound)
	}
	s.edits.Record(id, edit)
	return s.recomputeLocked()
}

// =============================================================================
// AD-HOC INVOICES
// =============================================================================

// AddAdhoc inserts an ad-hoc invoice and recomputes (its amount joins the
// running extra total).
func (s *Session) AddAdhoc(inv billing.AdhocInvoice) (billing.AdhocInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.now()
	}
	inv = s.adhoc.Add(inv)
	return inv, s.recomputeLocked()
}

// RemoveAdhoc deletes an ad-hoc invoice and recomputes.
func (s *Session) RemoveAdhoc(id billing.DraftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adhoc.Remove(id)
	return s.recomputeLocked()
}

// AdhocInvoices returns the separately managed ad-hoc list.
func (s *Session) AdhocInvoices() []billing.AdhocInvoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adhoc.All()
}
