package collector

import (
	"errors"
	"fmt"

	"github.com/garyjia/invoice-collector/internal/gateway"
	"github.com/garyjia/invoice-collector/internal/template"
)

// ErrorKind is the closed set of classified failure categories a run
// can produce.
type ErrorKind int

const (
	// KindReadFailure aborts the run before any side effect.
	KindReadFailure ErrorKind = iota

	// KindInvalidInvoiceData excludes one row; the run continues.
	KindInvalidInvoiceData

	// KindTemplateMissing and KindTemplateMalformed isolate one
	// invoice; its tracking fields stay untouched.
	KindTemplateMissing
	KindTemplateMalformed

	// KindRateLimited means the drafts API retries were exhausted.
	KindRateLimited

	// KindDraftFailure is any other non-retryable draft error.
	KindDraftFailure

	// KindWriteBackFailure is batch-level: reported, never rolled back.
	KindWriteBackFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindReadFailure:
		return "read_failure"
	case KindInvalidInvoiceData:
		return "invalid_invoice_data"
	case KindTemplateMissing:
		return "template_missing"
	case KindTemplateMalformed:
		return "template_malformed"
	case KindRateLimited:
		return "rate_limited"
	case KindDraftFailure:
		return "draft_failure"
	case KindWriteBackFailure:
		return "write_back_failure"
	default:
		return "unknown"
	}
}

// RunError is one classified failure collected during a run. Per-row
// and per-invoice errors carry the invoice id; batch-level errors
// leave it empty.
type RunError struct {
	Kind      ErrorKind
	InvoiceID string
	Err       error
}

func (e *RunError) Error() string {
	if e.InvoiceID != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.InvoiceID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// classifyActingError maps a render or draft-creation failure onto its
// error kind.
func classifyActingError(invoiceID string, err error) *RunError {
	kind := KindDraftFailure
	switch {
	case errors.Is(err, template.ErrTemplateMissing):
		kind = KindTemplateMissing
	case errors.Is(err, template.ErrTemplateMalformed):
		kind = KindTemplateMalformed
	case errors.Is(err, gateway.ErrRateLimited):
		kind = KindRateLimited
	}
	return &RunError{Kind: kind, InvoiceID: invoiceID, Err: err}
}
