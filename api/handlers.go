/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the draft computation and reconciliation engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  session and the store.

ENDPOINTS:
  Drafts:
    GET    /api/drafts                   Reconciled draft list (recomputed)
    PUT    /api/drafts/{id}/override     Set amount override
    DELETE /api/drafts/{id}/override     Clear amount override
    PATCH  /api/drafts/{id}              Record field edits

  Generation:
    POST   /api/generate                 Generate every pending draft
    GET    /api/invoices                 Generated invoice history

  Configuration:
    GET    /api/rulesets                 List ruleset documents
    POST   /api/rulesets                 Create/replace a ruleset
    DELETE /api/rulesets/{id}            Delete a ruleset
    GET    /api/company                  Company profile document
    PUT    /api/company                  Replace company profile

  Variable income:
    GET    /api/adhoc                    List ad-hoc invoices
    POST   /api/adhoc                    Add ad-hoc invoice
    DELETE /api/adhoc/{id}               Remove ad-hoc invoice
    PUT    /api/extra                    Replace extra-income items

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid ruleset documents, bad amounts
  - 404: Draft or ruleset not found
  - 409: Duplicate draft id, invoice already generated
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - session: The state this layer drives
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/factory"
	"github.com/warp/billing-engine/session"
	"github.com/warp/billing-engine/store/sqlite"
)

const companyDocKey = "company"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Session *session.Session
}

// NewHandler creates a handler backed by the given store. Call Bootstrap
// before serving.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{Store: store}
}

// Bootstrap loads rulesets, last-invoiced counters and the company profile
// from the store and runs the first computation pass. An invalid ruleset
// document is a startup failure, never silently skipped.
func (h *Handler) Bootstrap(ctx context.Context) error {
	rulesets, err := h.loadRulesets(ctx)
	if err != nil {
		return err
	}

	lastInvoiced, err := h.Store.LastInvoicedPeriods(ctx)
	if err != nil {
		return fmt.Errorf("load last invoiced periods: %w", err)
	}

	h.Session = session.New(rulesets, lastInvoiced)

	if sink, err := h.companySink(ctx); err != nil {
		return err
	} else if sink != "" {
		return h.Session.SetExtraSink(sink)
	}
	return h.Session.Recompute()
}

func (h *Handler) loadRulesets(ctx context.Context) ([]billing.Ruleset, error) {
	docs, err := h.Store.ListRulesetDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ruleset documents: %w", err)
	}

	rulesets := make([]billing.Ruleset, 0, len(docs))
	for id, doc := range docs {
		rs, err := factory.ParseRuleset(doc)
		if err != nil {
			return nil, fmt.Errorf("ruleset %q: %w", id, err)
		}
		rulesets = append(rulesets, *rs)
	}
	sort.Slice(rulesets, func(i, j int) bool { return rulesets[i].ID < rulesets[j].ID })
	return rulesets, nil
}

func (h *Handler) companySink(ctx context.Context) (billing.RulesetID, error) {
	doc, ok, err := h.Store.GetDocument(ctx, companyDocKey)
	if err != nil {
		return "", fmt.Errorf("load company document: %w", err)
	}
	if !ok {
		return "", nil
	}
	var company struct {
		ExtraSinkRuleset string `json:"extra_sink_ruleset"`
	}
	if err := json.Unmarshal([]byte(doc), &company); err != nil {
		return "", fmt.Errorf("company document: %w", err)
	}
	return billing.RulesetID(company.ExtraSinkRuleset), nil
}

// =============================================================================
// DRAFT HANDLERS
// =============================================================================

// ListDrafts recomputes against the current wall clock and returns the
// reconciled draft list plus ad-hoc invoices and unallocated extra value.
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Recompute(); err != nil {
		writeEngineError(w, "Failed to compute drafts", err)
		return
	}

	drafts := h.Session.Drafts()
	dtos := make([]DraftDTO, len(drafts))
	for i, d := range drafts {
		var calculated string
		if total, ok := h.Session.CalculatedTotal(d.ID); ok {
			calculated = total.String()
		}
		dtos[i] = toDraftDTO(d, calculated, h.Session.OverrideEffective(d.ID))
	}

	adhoc := h.Session.AdhocInvoices()
	adhocDTOs := make([]AdhocDTO, len(adhoc))
	for i, inv := range adhoc {
		adhocDTOs[i] = toAdhocDTO(inv)
	}

	writeJSON(w, http.StatusOK, DraftsResponse{
		Drafts:      dtos,
		Adhoc:       adhocDTOs,
		Unallocated: h.Session.Unallocated().String(),
		AsOf:        time.Now().UTC().Format(time.RFC3339),
	})
}

// SetOverride records a user-supplied total for a draft's period.
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	id := billing.DraftID(chi.URLParam(r, "id"))

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	if err := h.Session.SetOverride(id, amount); err != nil {
		writeEngineError(w, "Failed to set override", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ClearOverride resets a draft's period to the calculated total.
func (h *Handler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	id := billing.DraftID(chi.URLParam(r, "id"))
	if err := h.Session.ClearOverride(id); err != nil {
		writeEngineError(w, "Failed to clear override", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// EditDraft records partial field edits for a draft.
func (h *Handler) EditDraft(w http.ResponseWriter, r *http.Request) {
	id := billing.DraftID(chi.URLParam(r, "id"))

	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	edit := billing.DraftEdit{
		Label:             req.Label,
		Description:       req.Description,
		InvoiceNoOverride: req.InvoiceNoOverride,
		CustomerOverride:  req.CustomerOverride,
	}
	if edit.IsZero() {
		writeError(w, http.StatusBadRequest, "No editable fields in request", nil)
		return
	}

	if err := h.Session.RecordEdit(id, edit); err != nil {
		writeEngineError(w, "Failed to record edit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// GENERATION HANDLERS
// =============================================================================

// Generate runs the batch: every pending draft, periodic then ad-hoc.
// Partial failure returns 502 with the per-draft report; already-generated
// periods fail at the database primary key and stay pending here.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	report, err := h.Session.GenerateAll(r.Context(), h.persistInvoice)
	if err != nil && !errors.Is(err, billing.ErrGenerationFailed) {
		writeError(w, http.StatusInternalServerError, "Generation failed", err)
		return
	}

	resp := GenerateResponse{Generated: make([]string, len(report.Generated))}
	for i, id := range report.Generated {
		resp.Generated[i] = string(id)
	}
	for _, f := range report.Failed {
		resp.Failed = append(resp.Failed, GenerateFailureDTO{ID: string(f.ID), Error: f.Err.Error()})
	}

	status := http.StatusOK
	if len(resp.Failed) > 0 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

// persistInvoice is the generation callback: it writes the invoice row.
// Rendering and dispatch (PDF, email) hang off the persisted record and
// live outside this module.
func (h *Handler) persistInvoice(ctx context.Context, d billing.InvoiceDraft) error {
	rec := sqlite.InvoiceRecord{
		ID:           d.ID,
		RulesetID:    d.RulesetID,
		Year:         d.Year,
		Month:        d.Month,
		PeriodNumber: -1,
		Label:        d.Label,
		Amount:       d.Amount,
		Description:  d.Description,
		InvoiceNo:    d.InvoiceNoOverride,
		Customer:     d.CustomerOverride,
		IssueDate:    d.EffectiveIssueDate(),
		DueDate:      d.DueDate,
	}
	if !billing.IsAdhocID(d.ID) {
		if rs, ok := h.Session.Ruleset(d.RulesetID); ok {
			rec.PeriodNumber = rs.Periodicity.PeriodNumber(d.Year, d.Month)
		}
	}
	return h.Store.SaveInvoice(ctx, rec)
}

// ListInvoices returns the generated invoice history, newest first.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListInvoices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}
	dtos := make([]InvoiceDTO, len(records))
	for i, rec := range records {
		dtos[i] = toInvoiceDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RULESET HANDLERS
// =============================================================================

// ListRulesets returns every ruleset document.
func (h *Handler) ListRulesets(w http.ResponseWriter, r *http.Request) {
	rulesets, err := h.loadRulesets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rulesets", err)
		return
	}
	dtos := make([]factory.RulesetJSON, len(rulesets))
	for i := range rulesets {
		dtos[i] = factory.ToJSON(&rulesets[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertRuleset validates and stores a ruleset document, then reloads the
// session's configuration.
func (h *Handler) UpsertRuleset(w http.ResponseWriter, r *http.Request) {
	var doc factory.RulesetJSON
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rs, err := factory.FromJSON(doc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid ruleset", err)
		return
	}
	stored, err := factory.RulesetDocument(rs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to serialize ruleset", err)
		return
	}
	if err := h.Store.SaveRuleset(r.Context(), rs.ID, stored); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save ruleset", err)
		return
	}
	if err := h.reloadRulesets(r.Context()); err != nil {
		writeEngineError(w, "Failed to apply ruleset", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.ToJSON(rs))
}

// DeleteRuleset removes a ruleset document. Generated invoices are kept.
func (h *Handler) DeleteRuleset(w http.ResponseWriter, r *http.Request) {
	id := billing.RulesetID(chi.URLParam(r, "id"))
	if err := h.Store.DeleteRuleset(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete ruleset", err)
		return
	}
	if err := h.reloadRulesets(r.Context()); err != nil {
		writeEngineError(w, "Failed to apply ruleset removal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) reloadRulesets(ctx context.Context) error {
	rulesets, err := h.loadRulesets(ctx)
	if err != nil {
		return err
	}
	return h.Session.SetRulesets(rulesets)
}

// =============================================================================
// AD-HOC INVOICE HANDLERS
// =============================================================================

// ListAdhoc returns the ad-hoc invoice list.
func (h *Handler) ListAdhoc(w http.ResponseWriter, r *http.Request) {
	adhoc := h.Session.AdhocInvoices()
	dtos := make([]AdhocDTO, len(adhoc))
	for i, inv := range adhoc {
		dtos[i] = toAdhocDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAdhoc adds an ad-hoc invoice. Its amount joins the running extra
// total immediately.
func (h *Handler) CreateAdhoc(w http.ResponseWriter, r *http.Request) {
	var req CreateAdhocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, "Label is required", nil)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	inv, err := h.Session.AddAdhoc(billing.AdhocInvoice{
		Label:       req.Label,
		Amount:      amount,
		Description: req.Description,
		Customer:    req.Customer,
	})
	if err != nil {
		writeEngineError(w, "Failed to add invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdhocDTO(inv))
}

// DeleteAdhoc removes an ad-hoc invoice.
func (h *Handler) DeleteAdhoc(w http.ResponseWriter, r *http.Request) {
	id := billing.DraftID(chi.URLParam(r, "id"))
	if err := h.Session.RemoveAdhoc(id); err != nil {
		writeEngineError(w, "Failed to remove invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// EXTRA ITEMS HANDLER
// =============================================================================

// SetExtra replaces the classified extra-income items.
func (h *Handler) SetExtra(w http.ResponseWriter, r *http.Request) {
	var req SetExtraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	items := make([]billing.ExtraItem, 0, len(req.Items))
	for i, it := range req.Items {
		value, err := decimal.NewFromString(it.Value)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid value in item %d", i), err)
			return
		}
		items = append(items, billing.ExtraItem{ID: it.ID, Label: it.Label, Value: value, Source: it.Source})
	}

	if err := h.Session.SetExtraItems(items); err != nil {
		writeEngineError(w, "Failed to set extra items", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// COMPANY PROFILE HANDLERS
// =============================================================================

// GetCompany returns the company profile document.
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	doc, ok, err := h.Store.GetDocument(r.Context(), companyDocKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load company profile", err)
		return
	}
	if !ok {
		doc = "{}"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}

// PutCompany replaces the company profile document and applies the extra
// sink ruleset it names.
func (h *Handler) PutCompany(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON document", err)
		return
	}
	if err := h.Store.PutDocument(r.Context(), companyDocKey, string(raw)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save company profile", err)
		return
	}

	sink, err := h.companySink(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid company profile", err)
		return
	}
	if err := h.Session.SetExtraSink(sink); err != nil {
		writeEngineError(w, "Failed to apply extra sink", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine sentinel errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	var dup *billing.DuplicateDraftError
	switch {
	case errors.Is(err, billing.ErrDraftNotFound), errors.Is(err, billing.ErrRulesetNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.As(err, &dup):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, billing.ErrRulesetInvalid):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
