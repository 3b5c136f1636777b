/*
merge.go - Reconciliation of fresh drafts against the previous pass

PURPOSE:
  Recomputation must never regress user intent. A recompute triggered by
  an unrelated change (new extra item, config tweak) rebuilds every draft
  from scratch - this file puts back what the rebuild cannot know:
  generation status and tracked manual edits.

ALGORITHM (keyed by draft id):
  1. Fresh draft with a previous counterpart: copy status forward.
  2. Apply tracked edits field by field on top of the fresh values.
     Amount is never edit-covered, so it is always freshly computed.
  3. Previous drafts with no fresh counterpart are dropped (the period
     was invoiced or is no longer pending).
  4. New fresh drafts are inserted as-is: pending, no edits.

  Result ordering is stable by (rulesetID, year, month). Ad-hoc invoices
  are kept in their own separately managed list, never interleaved here.
*/
package billing

import "sort"

// =============================================================================
// RECONCILIATION MERGER
// =============================================================================

// MergeDrafts combines freshly rebuilt drafts with the previously
// displayed list and the edit tracker. Pure: inputs are not mutated.
func MergeDrafts(fresh, previous []InvoiceDraft, edits *EditTracker) []InvoiceDraft {
	prevByID := make(map[DraftID]InvoiceDraft, len(previous))
	for _, d := range previous {
		prevByID[d.ID] = d
	}

	merged := make([]InvoiceDraft, 0, len(fresh))
	for _, d := range fresh {
		if prev, ok := prevByID[d.ID]; ok {
			d.Status = prev.Status
		}
		if edits != nil {
			if e, ok := edits.Edits(d.ID); ok {
				e.ApplyTo(&d)
			}
		}
		merged = append(merged, d)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.RulesetID != b.RulesetID {
			return a.RulesetID < b.RulesetID
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	return merged
}
