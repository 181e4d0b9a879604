package models

import (
	"fmt"
	"strings"
	"time"
)

// StatusOverdue is the invoice status that makes a row eligible for
// reminder processing. Comparison is case-insensitive.
const StatusOverdue = "overdue"

// Invoice represents a single invoice row loaded from the spreadsheet.
// Identity is InvoiceID; the record is materialized fresh each run and
// never cached across runs.
type Invoice struct {
	InvoiceID   string
	ClientName  string
	ClientEmail string
	Amount      float64
	Currency    string
	DueDate     time.Time
	SentDate    time.Time
	Status      string
	Notes       string

	// Tracking fields, mutated only through write-back after a
	// successful draft creation. Zero values mean "never sent".
	LastStageSent int
	LastSentAt    time.Time
}

// Validate checks the invariants every invoice must satisfy before it
// enters the core. Rows that fail are excluded from the run.
func (i *Invoice) Validate() error {
	if i.InvoiceID == "" {
		return fmt.Errorf("invoice_id cannot be empty")
	}
	if i.ClientEmail == "" || !strings.Contains(i.ClientEmail, "@") {
		return fmt.Errorf("invalid email for %s: %q", i.ClientName, i.ClientEmail)
	}
	if i.Amount < 0 {
		return fmt.Errorf("amount cannot be negative: %v", i.Amount)
	}
	return nil
}

// IsOverdue reports whether the invoice status marks it overdue.
func (i *Invoice) IsOverdue() bool {
	return strings.EqualFold(strings.TrimSpace(i.Status), StatusOverdue)
}

// ReminderDecision is the per-invoice, per-run routing outcome. It is
// derived state and never persisted.
type ReminderDecision struct {
	InvoiceID  string
	Stage      int
	ShouldSend bool
}

// DraftCreated records a draft produced during a run.
type DraftCreated struct {
	InvoiceID   string
	Stage       int
	ClientEmail string
	ClientName  string
	Subject     string
	DraftID     string
	Amount      float64
	Currency    string
	DaysOverdue int
}

func (d DraftCreated) String() string {
	return fmt.Sprintf("%s | Stage %dd | %s | %.2f %s", d.InvoiceID, d.Stage, d.ClientName, d.Amount, d.Currency)
}

// TrackingUpdate is one write-back entry: the new stage and send date
// for an invoice whose draft was created this run.
type TrackingUpdate struct {
	InvoiceID string
	Stage     int
	SentAt    time.Time
}
