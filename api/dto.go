/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  Every amount crosses the wire as a decimal string ("1234.50"), never as
  a JSON number. Billing values must survive the round trip exactly.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/ruleset.go: RulesetJSON, reused verbatim as the ruleset DTO
*/
package api

import (
	"time"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// DRAFTS
// =============================================================================

// DraftDTO represents one reconciled invoice draft.
type DraftDTO struct {
	ID        string `json:"id"`
	RulesetID string `json:"ruleset_id"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`

	Label       string `json:"label"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`

	InvoiceNoOverride string `json:"invoice_no_override,omitempty"`
	CustomerOverride  string `json:"customer_override,omitempty"`

	Status    string `json:"status"`
	IssueDate string `json:"issue_date"`
	DueDate   string `json:"due_date"`

	// CalculatedTotal is the non-overridden total for this draft's period,
	// shown next to an effective override as "reset to calculated".
	CalculatedTotal   string `json:"calculated_total,omitempty"`
	OverrideEffective bool   `json:"override_effective,omitempty"`
}

// DraftsResponse is the full reconciled view returned by GET /api/drafts.
type DraftsResponse struct {
	Drafts      []DraftDTO `json:"drafts"`
	Adhoc       []AdhocDTO `json:"adhoc"`
	Unallocated string     `json:"unallocated_extra"`
	AsOf        string     `json:"as_of"`
}

// OverrideRequest sets a user-supplied total for a draft's period.
type OverrideRequest struct {
	Amount string `json:"amount"`
}

// EditRequest carries a partial field edit. Absent fields stay untouched;
// amounts are never editable here, they go through the override endpoint.
type EditRequest struct {
	Label             *string `json:"label,omitempty"`
	Description       *string `json:"description,omitempty"`
	InvoiceNoOverride *string `json:"invoice_no_override,omitempty"`
	CustomerOverride  *string `json:"customer_override,omitempty"`
}

// =============================================================================
// AD-HOC INVOICES
// =============================================================================

// AdhocDTO represents one ad-hoc invoice.
type AdhocDTO struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	Customer    string `json:"customer,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// CreateAdhocRequest is the request to add an ad-hoc invoice.
type CreateAdhocRequest struct {
	Label       string `json:"label"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	Customer    string `json:"customer,omitempty"`
}

// =============================================================================
// EXTRA ITEMS
// =============================================================================

// ExtraItemDTO is one classified variable-income item.
type ExtraItemDTO struct {
	ID     string `json:"id,omitempty"`
	Label  string `json:"label"`
	Value  string `json:"value"`
	Source string `json:"source,omitempty"`
}

// SetExtraRequest replaces the full set of extra-income items.
type SetExtraRequest struct {
	Items []ExtraItemDTO `json:"items"`
}

// =============================================================================
// GENERATION
// =============================================================================

// GenerateFailureDTO names a draft that could not be generated.
type GenerateFailureDTO struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// GenerateResponse reports one batch generation run.
type GenerateResponse struct {
	Generated []string             `json:"generated"`
	Failed    []GenerateFailureDTO `json:"failed"`
}

// =============================================================================
// INVOICES (generated history)
// =============================================================================

// InvoiceDTO represents one generated invoice.
type InvoiceDTO struct {
	ID          string `json:"id"`
	RulesetID   string `json:"ruleset_id,omitempty"`
	Year        int    `json:"year,omitempty"`
	Month       int    `json:"month,omitempty"`
	Label       string `json:"label"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	InvoiceNo   string `json:"invoice_no,omitempty"`
	Customer    string `json:"customer,omitempty"`
	IssueDate   string `json:"issue_date"`
	DueDate     string `json:"due_date"`
	CreatedAt   string `json:"created_at"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toDraftDTO(d billing.InvoiceDraft, calculated string, effective bool) DraftDTO {
	return DraftDTO{
		ID:                string(d.ID),
		RulesetID:         string(d.RulesetID),
		Year:              d.Year,
		Month:             int(d.Month),
		Label:             d.Label,
		Amount:            d.Amount.String(),
		Description:       d.Description,
		InvoiceNoOverride: d.InvoiceNoOverride,
		CustomerOverride:  d.CustomerOverride,
		Status:            string(d.Status),
		IssueDate:         d.EffectiveIssueDate().Format("2006-01-02"),
		DueDate:           d.DueDate.Format("2006-01-02"),
		CalculatedTotal:   calculated,
		OverrideEffective: effective,
	}
}

func toAdhocDTO(inv billing.AdhocInvoice) AdhocDTO {
	return AdhocDTO{
		ID:          string(inv.ID),
		Label:       inv.Label,
		Amount:      inv.Amount.String(),
		Description: inv.Description,
		Customer:    inv.Customer,
		Status:      string(inv.Status),
		CreatedAt:   inv.CreatedAt.Format(time.RFC3339),
	}
}

func toInvoiceDTO(rec sqlite.InvoiceRecord) InvoiceDTO {
	return InvoiceDTO{
		ID:          string(rec.ID),
		RulesetID:   string(rec.RulesetID),
		Year:        rec.Year,
		Month:       int(rec.Month),
		Label:       rec.Label,
		Amount:      rec.Amount.String(),
		Description: rec.Description,
		InvoiceNo:   rec.InvoiceNo,
		Customer:    rec.Customer,
		IssueDate:   rec.IssueDate.Format("2006-01-02"),
		DueDate:     rec.DueDate.Format("2006-01-02"),
		CreatedAt:   rec.CreatedAt.Format(time.RFC3339),
	}
}
