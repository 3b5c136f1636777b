/*
draft.go - Draft builder

PURPOSE:
  Turns evaluated pending periods into invoice draft records: one draft
  per pending period, deterministic id, amounts routed through the
  override ledger, label and description expanded from the ruleset's
  templates. Pure function of its inputs - safe to call on every input
  change.
*/
package billing

import (
	"fmt"
	"time"
)

// =============================================================================
// DRAFT BUILDER
// =============================================================================

// BuildDrafts converts pending periods into drafts for one ruleset,
// applying the override ledger to each period's amount. Every draft
// starts pending; status survival is the merger's job.
func BuildDrafts(rs *Ruleset, pending []PendingPeriod, ledger *OverrideLedger) []InvoiceDraft {
	drafts := make([]InvoiceDraft, 0, len(pending))
	for _, p := range pending {
		key := NewPeriodKey(rs.ID, p.Year, p.Month)
		issue := EntitlementDate(p.Year, p.Month, rs.EntitlementDay)

		drafts = append(drafts, InvoiceDraft{
			ID:          DraftID(key),
			RulesetID:   rs.ID,
			Year:        p.Year,
			Month:       p.Month,
			Label:       draftLabel(rs.Name, p.Year, p.Month),
			Amount:      ledger.Apply(key, p.OwnBase, p.CarryIn),
			Description: rs.DescriptionFor(p.Year, p.Month),
			Status:      StatusPending,
			IssueDate:   issue,
			DueDate:     issue.AddDate(0, 0, rs.dueOffset()),
		})
	}
	return drafts
}

func draftLabel(name string, year int, month time.Month) string {
	return fmt.Sprintf("%s %s %d", name, month, year)
}
