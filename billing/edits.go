/*
edits.go - Out-of-band tracker for manual field edits

PURPOSE:
  Users tweak individual drafts - a different description, a hand-picked
  invoice number, another customer. Those edits live OUTSIDE the drafts
  (which are thrown away and rebuilt every pass) so recomputation can
  never lose them. Keyed by draft id; amounts are deliberately excluded,
  they belong to the override ledger.

MERGE SEMANTICS:
  Record merges per field, later edits win per field. Editing the
  description and then the invoice number in two interactions leaves BOTH
  edits in place.
*/
package billing

// =============================================================================
// DRAFT EDIT - Partial record of manually changed fields
// =============================================================================

// DraftEdit carries the fields a user may change on a draft. Nil means
// "not edited"; an empty string is a real edit clearing the field.
// Amount is intentionally absent - see ledger.go.
type DraftEdit struct {
	Label             *string
	Description       *string
	InvoiceNoOverride *string
	CustomerOverride  *string
}

// IsZero reports whether no field is edited.
func (e DraftEdit) IsZero() bool {
	return e.Label == nil && e.Description == nil &&
		e.InvoiceNoOverride == nil && e.CustomerOverride == nil
}

// merge overlays in on top of e, field by field.
func (e DraftEdit) merge(in DraftEdit) DraftEdit {
	if in.Label != nil {
		e.Label = in.Label
	}
	if in.Description != nil {
		e.Description = in.Description
	}
	if in.InvoiceNoOverride != nil {
		e.InvoiceNoOverride = in.InvoiceNoOverride
	}
	if in.CustomerOverride != nil {
		e.CustomerOverride = in.CustomerOverride
	}
	return e
}

// ApplyTo overwrites the draft's fields with the edited values.
func (e DraftEdit) ApplyTo(d *InvoiceDraft) {
	if e.Label != nil {
		d.Label = *e.Label
	}
	if e.Description != nil {
		d.Description = *e.Description
	}
	if e.InvoiceNoOverride != nil {
		d.InvoiceNoOverride = *e.InvoiceNoOverride
	}
	if e.CustomerOverride != nil {
		d.CustomerOverride = *e.CustomerOverride
	}
}

// =============================================================================
// EDIT TRACKER
// =============================================================================

// EditTracker stores manual edits per draft id for the lifetime of a
// generation session. Cleared wholesale after a successful batch
// generation.
type EditTracker struct {
	edits map[DraftID]DraftEdit
}

// NewEditTracker returns an empty tracker.
func NewEditTracker() *EditTracker {
	return &EditTracker{edits: make(map[DraftID]DraftEdit)}
}

// Record merges the partial edit into any existing edit set for the id.
func (t *EditTracker) Record(id DraftID, edit DraftEdit) {
	t.edits[id] = t.edits[id].merge(edit)
}

// Edits returns the tracked edit set for a draft id.
func (t *EditTracker) Edits(id DraftID) (DraftEdit, bool) {
	e, ok := t.edits[id]
	return e, ok
}

// Forget drops the edits for one draft id.
func (t *EditTracker) Forget(id DraftID) {
	delete(t.edits, id)
}

// Reset clears all tracked edits.
func (t *EditTracker) Reset() {
	t.edits = make(map[DraftID]DraftEdit)
}

// Len returns the number of drafts with tracked edits.
func (t *EditTracker) Len() int {
	return len(t.edits)
}
