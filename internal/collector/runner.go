// Package collector orchestrates one reminder run: load invoices,
// decide per invoice, create drafts, write tracking state back in one
// batch, and report successes alongside classified errors.
package collector

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/garyjia/invoice-collector/internal/models"
	"github.com/garyjia/invoice-collector/internal/router"
	"github.com/garyjia/invoice-collector/internal/store"
)

// InvoiceStore is the system of record for invoice rows.
type InvoiceStore interface {
	ReadAll(ctx context.Context) ([]models.Invoice, []store.RowError, error)
	WriteBack(ctx context.Context, updates []models.TrackingUpdate) (int, error)
}

// DraftGateway creates outbound drafts through the remote API.
type DraftGateway interface {
	CreateDraft(ctx context.Context, toEmail, subject, body string) (string, error)
}

// TemplateRenderer renders the per-stage reminder templates.
type TemplateRenderer interface {
	RenderStage(stage int, vars map[string]string) (subject, body string, err error)
}

// RunRecorder persists a completed run to the local ledger. Optional;
// a nil recorder disables the ledger.
type RunRecorder interface {
	RecordRun(ctx context.Context, result *RunResult) error
}

// RunResult is everything a run produced: drafts created, classified
// errors, and write-back accounting. The caller derives the process
// exit code from HasErrors.
type RunResult struct {
	Date        time.Time
	DryRun      bool
	Drafts      []models.DraftCreated
	Errors      []*RunError
	RowsUpdated int
}

// HasErrors reports whether any classified error was collected.
func (r *RunResult) HasErrors() bool { return len(r.Errors) > 0 }

// Runner executes collection runs. Invoices are processed
// sequentially: the drafts API is rate-limited, and no invoice's
// decision depends on another's.
type Runner struct {
	store    InvoiceStore
	gateway  DraftGateway
	renderer TemplateRenderer
	router   *router.Router
	recorder RunRecorder
	logger   *zap.Logger
	printer  *message.Printer
}

// NewRunner wires a runner from its collaborators. recorder may be nil.
func NewRunner(
	invoices InvoiceStore,
	drafts DraftGateway,
	renderer TemplateRenderer,
	rtr *router.Router,
	recorder RunRecorder,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		store:    invoices,
		gateway:  drafts,
		renderer: renderer,
		router:   rtr,
		recorder: recorder,
		logger:   logger,
		printer:  message.NewPrinter(language.English),
	}
}

// Run executes one collection run for the given reference date.
//
// Only a load failure is fatal; every later failure is isolated to its
// invoice, collected into the result, and the run continues. Dry-run
// performs the decision and rendering work but skips draft creation
// and write-back. The write-back is a single batched call issued after
// every draft attempt has settled, never per invoice.
func (r *Runner) Run(ctx context.Context, today time.Time, dryRun bool) (*RunResult, error) {
	result := &RunResult{Date: today, DryRun: dryRun}

	r.logger.Info("Starting collection run",
		zap.String("date", today.Format("2006-01-02")),
		zap.Bool("dry_run", dryRun))

	// Loading
	invoices, rowErrs, err := r.store.ReadAll(ctx)
	if err != nil {
		return nil, &RunError{Kind: KindReadFailure, Err: err}
	}
	for _, re := range rowErrs {
		result.Errors = append(result.Errors, &RunError{
			Kind:      KindInvalidInvoiceData,
			InvoiceID: re.InvoiceID,
			Err:       re,
		})
	}

	overdue := make([]models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.IsOverdue() {
			overdue = append(overdue, inv)
		}
	}
	r.logger.Info("Loaded invoices",
		zap.Int("total", len(invoices)),
		zap.Int("overdue", len(overdue)),
		zap.Int("invalid_rows", len(rowErrs)))

	// Deciding + Acting, one invoice at a time
	var updates []models.TrackingUpdate
	for _, inv := range overdue {
		days := router.DaysOverdue(inv.DueDate, today)
		stage, _ := r.router.StageFor(days)

		if !r.router.ShouldSend(stage, inv.LastStageSent, inv.LastSentAt, today) {
			r.logger.Debug("Skipping invoice",
				zap.String("invoice_id", inv.InvoiceID),
				zap.Int("stage", stage),
				zap.Int("last_stage_sent", inv.LastStageSent))
			continue
		}

		decision := models.ReminderDecision{InvoiceID: inv.InvoiceID, Stage: stage, ShouldSend: true}
		draft, err := r.act(ctx, inv, decision, days, dryRun)
		if err != nil {
			runErr := classifyActingError(inv.InvoiceID, err)
			result.Errors = append(result.Errors, runErr)
			r.logger.Error("Failed to process invoice",
				zap.String("invoice_id", inv.InvoiceID),
				zap.String("kind", runErr.Kind.String()),
				zap.Error(err))
			continue
		}

		result.Drafts = append(result.Drafts, draft)
		if !dryRun {
			updates = append(updates, models.TrackingUpdate{
				InvoiceID: inv.InvoiceID,
				Stage:     stage,
				SentAt:    today,
			})
		}
	}

	// Persisting: one batched write after all acting attempts. Drafts
	// already created are not undoable, so a write-back failure is
	// reported and the next run may re-send the same stage.
	if !dryRun && len(updates) > 0 {
		count, err := r.store.WriteBack(ctx, updates)
		if err != nil {
			result.Errors = append(result.Errors, &RunError{Kind: KindWriteBackFailure, Err: err})
			r.logger.Error("Write-back failed; drafts were already created and the next run may duplicate them",
				zap.Int("pending_updates", len(updates)),
				zap.Error(err))
		} else {
			result.RowsUpdated = count
		}
	}

	if r.recorder != nil {
		if err := r.recorder.RecordRun(ctx, result); err != nil {
			r.logger.Warn("Failed to record run in ledger", zap.Error(err))
		}
	}

	r.logger.Info("Collection run complete",
		zap.Int("drafts", len(result.Drafts)),
		zap.Int("errors", len(result.Errors)),
		zap.Int("rows_updated", result.RowsUpdated))

	return result, nil
}

// act renders the stage template and, outside dry-run, creates the
// draft through the gateway.
func (r *Runner) act(ctx context.Context, inv models.Invoice, decision models.ReminderDecision, days int, dryRun bool) (models.DraftCreated, error) {
	vars := r.templateVars(inv)

	subject, body, err := r.renderer.RenderStage(decision.Stage, vars)
	if err != nil {
		return models.DraftCreated{}, err
	}

	draft := models.DraftCreated{
		InvoiceID:   inv.InvoiceID,
		Stage:       decision.Stage,
		ClientEmail: inv.ClientEmail,
		ClientName:  inv.ClientName,
		Subject:     subject,
		Amount:      inv.Amount,
		Currency:    inv.Currency,
		DaysOverdue: days,
	}

	if dryRun {
		r.logger.Info("[dry-run] Would create draft",
			zap.String("invoice_id", inv.InvoiceID),
			zap.Int("stage", decision.Stage),
			zap.String("to", inv.ClientEmail),
			zap.String("subject", subject))
		return draft, nil
	}

	draftID, err := r.gateway.CreateDraft(ctx, inv.ClientEmail, subject, body)
	if err != nil {
		return models.DraftCreated{}, err
	}
	draft.DraftID = draftID

	r.logger.Info("Created draft",
		zap.String("draft_id", draftID),
		zap.String("invoice_id", inv.InvoiceID),
		zap.Int("stage", decision.Stage),
		zap.String("to", inv.ClientEmail))

	return draft, nil
}

// templateVars builds the substitution map. Numeric values are
// pre-formatted here; the renderer substitutes strings only.
func (r *Runner) templateVars(inv models.Invoice) map[string]string {
	return map[string]string{
		"name":       inv.ClientName,
		"invoice_id": inv.InvoiceID,
		"amount":     r.printer.Sprintf("%.2f", inv.Amount),
		"currency":   inv.Currency,
		"due_date":   inv.DueDate.Format("Jan 02, 2006"),
	}
}
