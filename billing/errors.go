/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The engine is total over well-formed inputs: the only errors it can
  produce are configuration errors (malformed rulesets) and invariant
  violations (duplicate draft ids), both of which must be surfaced loudly
  rather than papered over with guessed defaults.

USAGE:
  Callers can match with errors.Is / errors.As:

    if errors.Is(err, billing.ErrRulesetInvalid) {
        // show the settings editor
    }
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRulesetInvalid is returned when a ruleset is missing required
	// configuration. The evaluator never guesses a default that would
	// silently change billing amounts.
	ErrRulesetInvalid = errors.New("ruleset invalid")

	// ErrDuplicateDraftID is returned when a computation pass produces two
	// drafts with the same id. This is a bug condition, never resolved by
	// last-write-wins.
	ErrDuplicateDraftID = errors.New("duplicate draft id")

	// ErrDraftNotFound is returned when an operation references a draft id
	// not present in the current list.
	ErrDraftNotFound = errors.New("draft not found")

	// ErrRulesetNotFound is returned when an operation references an
	// unknown ruleset id.
	ErrRulesetNotFound = errors.New("ruleset not found")

	// ErrGenerationFailed is returned by batch generation when at least one
	// draft could not be generated. Per-draft failures are reported
	// alongside; successful drafts are not rolled back.
	ErrGenerationFailed = errors.New("generation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RulesetConfigError names the ruleset and field that failed validation.
type RulesetConfigError struct {
	RulesetID RulesetID
	Field     string
	Reason    string
}

func (e *RulesetConfigError) Error() string {
	return fmt.Sprintf("ruleset %q: %s: %s", e.RulesetID, e.Field, e.Reason)
}

func (e *RulesetConfigError) Unwrap() error { return ErrRulesetInvalid }

// DuplicateDraftError reports the colliding draft id.
type DuplicateDraftError struct {
	ID DraftID
}

func (e *DuplicateDraftError) Error() string {
	return fmt.Sprintf("duplicate draft id %q produced in a single pass", e.ID)
}

func (e *DuplicateDraftError) Unwrap() error { return ErrDuplicateDraftID }

// IsConfigError returns true if the error is due to caller configuration
// rather than an engine bug.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrRulesetInvalid) || errors.Is(err, ErrRulesetNotFound)
}
