/*
generate.go - Batch invoice generation

PURPOSE:
  "Generate all" walks every pending draft (periodic and ad-hoc) and
  invokes the caller's generation callback per draft id. Generation is
  the one operation that must never run twice concurrently for the same
  draft - double-invoicing a period is the cardinal sin - so each id is
  guarded by a singleflight group.

FAILURE POLICY:
  A failing draft stays pending. Failure neither rolls back nor blocks
  generation of other rulesets' drafts; the report names every failed id.
  Within one ruleset, drafts are processed in period order and a failure
  halts the ruleset's remainder of the batch: the last-invoiced counter
  advances only contiguously, so billing past a failed period would make
  that period's number fall at or below the counter and the owed amount
  could never be billed again. Only after a FULLY successful batch are
  the override ledger, the edit tracker and the extra items cleared: the
  periods they referenced are no longer pending.
*/
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/billing-engine/billing"
)

// GenerateFunc persists/renders/sends one invoice draft. Rendering and
// dispatch live outside this module; this is the seam they plug into.
type GenerateFunc func(ctx context.Context, draft billing.InvoiceDraft) error

// GenerateFailure names a draft that could not be generated.
type GenerateFailure struct {
	ID  billing.DraftID
	Err error
}

// GenerateReport summarizes one batch run.
type GenerateReport struct {
	Generated []billing.DraftID
	Failed    []GenerateFailure
}

// AllSucceeded reports whether every attempted draft was generated.
func (r *GenerateReport) AllSucceeded() bool {
	return len(r.Failed) == 0
}

// =============================================================================
// GENERATE ALL
// =============================================================================

// GenerateAll generates every pending draft, then every pending ad-hoc
// invoice. Returns the per-id report; the error wraps
// billing.ErrGenerationFailed when at least one draft failed.
func (s *Session) GenerateAll(ctx context.Context, fn GenerateFunc) (*GenerateReport, error) {
	report := &GenerateReport{}

	// Pending drafts arrive ordered by (ruleset, year, month). Once a
	// ruleset's draft fails, its later periods are skipped: they stay
	// pending and the invoiced-period counter never jumps the gap.
	halted := make(map[billing.RulesetID]struct{})
	for _, d := range s.pendingDrafts() {
		if _, ok := halted[d.RulesetID]; ok {
			continue
		}
		if err := s.generateOne(ctx, d, fn); err != nil {
			halted[d.RulesetID] = struct{}{}
			report.Failed = append(report.Failed, GenerateFailure{ID: d.ID, Err: err})
			continue
		}
		report.Generated = append(report.Generated, d.ID)
	}

	for _, inv := range s.pendingAdhoc() {
		d := adhocDraft(inv, s.nowFunc()())
		if err := s.generateOne(ctx, d, fn); err != nil {
			report.Failed = append(report.Failed, GenerateFailure{ID: d.ID, Err: err})
			continue
		}
		report.Generated = append(report.Generated, d.ID)
	}

	if report.AllSucceeded() {
		s.clearAfterBatch()
		return report, nil
	}
	return report, fmt.Errorf("%d of %d drafts failed: %w",
		len(report.Failed), len(report.Failed)+len(report.Generated), billing.ErrGenerationFailed)
}

// generateOne runs the callback for a single draft id, serialized per id.
// The draft's pendency is re-checked inside the critical section so a
// concurrent batch cannot invoice the same period twice.
func (s *Session) generateOne(ctx context.Context, d billing.InvoiceDraft, fn GenerateFunc) error {
	_, err, _ := s.flights.Do(string(d.ID), func() (any, error) {
		if !s.stillPending(d.ID) {
			return nil, nil // generated by a concurrent batch; not an error
		}
		if err := fn(ctx, d); err != nil {
			return nil, err
		}
		s.markGenerated(d)
		return nil, nil
	})
	return err
}

// =============================================================================
// INTERNAL STATE TRANSITIONS
// =============================================================================

func (s *Session) pendingDrafts() []billing.InvoiceDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []billing.InvoiceDraft
	for _, d := range s.drafts {
		if d.Status == billing.StatusPending {
			out = append(out, d)
		}
	}
	return out
}

func (s *Session) pendingAdhoc() []billing.AdhocInvoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []billing.AdhocInvoice
	for _, inv := range s.adhoc.All() {
		if inv.Status == billing.StatusPending {
			out = append(out, inv)
		}
	}
	return out
}

func (s *Session) nowFunc() func() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Session) stillPending(id billing.DraftID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if billing.IsAdhocID(id) {
		inv, ok := s.adhoc.Get(id)
		return ok && inv.Status == billing.StatusPending
	}
	d, ok := s.draftLocked(id)
	return ok && d.Status == billing.StatusPending
}

// markGenerated flips the draft to done and advances the ruleset's
// last-invoiced counter so the period drops out of the next pass. The
// done draft stays in the displayed list until the next recomputation.
func (s *Session) markGenerated(d billing.InvoiceDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if billing.IsAdhocID(d.ID) {
		s.adhoc.MarkDone(d.ID)
		return
	}

	for i := range s.drafts {
		if s.drafts[i].ID == d.ID {
			s.drafts[i].Status = billing.StatusDone
			break
		}
	}

	for _, rs := range s.rulesets {
		if rs.ID == d.RulesetID {
			n := rs.Periodicity.PeriodNumber(d.Year, d.Month)
			if cur, ok := s.lastInvoiced[rs.ID]; !ok || n > cur {
				s.lastInvoiced[rs.ID] = n
			}
			break
		}
	}
}

// clearAfterBatch wipes period-scoped state once every draft generated:
// the periods the overrides, edits and extra items referenced are gone.
func (s *Session) clearAfterBatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Reset()
	s.edits.Reset()
	s.extraItems = nil
}

// adhocDraft projects an ad-hoc invoice into the callback's draft shape.
func adhocDraft(inv billing.AdhocInvoice, now time.Time) billing.InvoiceDraft {
	issue := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return billing.InvoiceDraft{
		ID:               inv.ID,
		Label:            inv.Label,
		Amount:           inv.Amount,
		Description:      inv.Description,
		CustomerOverride: inv.Customer,
		Status:           billing.StatusPending,
		Year:             issue.Year(),
		Month:            issue.Month(),
		IssueDate:        issue,
		DueDate:          issue.AddDate(0, 0, billing.DefaultDueDateOffsetDays),
	}
}
