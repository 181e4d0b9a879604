// Package store reads invoice rows from an Excel workbook and writes
// reminder tracking state back to it. Rows are strictly parsed at this
// boundary; the core never sees loosely-typed spreadsheet data.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-collector/internal/models"
)

const (
	colInvoiceID     = "invoice_id"
	colClientName    = "client_name"
	colClientEmail   = "client_email"
	colAmount        = "amount"
	colCurrency      = "currency"
	colDueDate       = "due_date"
	colSentDate      = "sent_date"
	colStatus        = "status"
	colNotes         = "notes"
	colLastStageSent = "last_stage_sent"
	colLastSentAt    = "last_sent_at"
)

var requiredColumns = []string{
	colInvoiceID, colClientName, colClientEmail, colAmount,
	colCurrency, colDueDate, colSentDate, colStatus,
}

// Accepted date layouts, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"2006-01-02 15:04:05",
}

// RowError is a classified per-row parse failure. The row is excluded
// from the run; the run itself continues.
type RowError struct {
	Row       int // 1-based spreadsheet row number
	InvoiceID string
	Err       error
}

func (e RowError) Error() string {
	if e.InvoiceID != "" {
		return fmt.Sprintf("row %d (%s): %v", e.Row, e.InvoiceID, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// ExcelStore is the invoice system of record backed by an Excel
// workbook with a header row.
type ExcelStore struct {
	path   string
	sheet  string
	logger *zap.Logger
}

// NewExcelStore creates a store for the given workbook path and sheet.
func NewExcelStore(path, sheet string, logger *zap.Logger) *ExcelStore {
	return &ExcelStore{path: path, sheet: sheet, logger: logger}
}

// ReadAll loads every invoice row. Open/transport failures and missing
// required columns fail the whole read; individual bad rows come back
// as RowErrors alongside the parsed invoices.
func (s *ExcelStore) ReadAll(ctx context.Context) ([]models.Invoice, []RowError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %q: %w", s.sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	columns, err := headerIndex(rows[0])
	if err != nil {
		return nil, nil, err
	}

	var invoices []models.Invoice
	var rowErrs []RowError

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header
		if blankRow(row) {
			continue
		}

		inv, err := parseRow(row, columns)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: rowNum, InvoiceID: cell(row, columns, colInvoiceID), Err: err})
			continue
		}
		invoices = append(invoices, inv)
	}

	s.logger.Info("Loaded invoices from workbook",
		zap.String("path", s.path),
		zap.Int("invoices", len(invoices)),
		zap.Int("bad_rows", len(rowErrs)))

	return invoices, rowErrs, nil
}

// WriteBack persists tracking updates in a single batched save. Rows
// are resolved by invoice_id equality; updates for ids not present in
// the workbook are silently skipped. Returns the number of rows
// actually updated.
func (s *ExcelStore) WriteBack(ctx context.Context, updates []models.TrackingUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("failed to open workbook %s: %w", s.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to read sheet %q: %w", s.sheet, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	header := normalizeHeader(rows[0])
	idCol, ok := header[colInvoiceID]
	if !ok {
		return 0, fmt.Errorf("column %q not found in sheet %q", colInvoiceID, s.sheet)
	}
	stageCol, ok := header[colLastStageSent]
	if !ok {
		return 0, fmt.Errorf("column %q not found in sheet %q", colLastStageSent, s.sheet)
	}
	dateCol, ok := header[colLastSentAt]
	if !ok {
		return 0, fmt.Errorf("column %q not found in sheet %q", colLastSentAt, s.sheet)
	}

	// Index data rows by invoice id.
	rowByID := make(map[string]int, len(rows))
	for i, row := range rows[1:] {
		if idCol < len(row) {
			if id := strings.TrimSpace(row[idCol]); id != "" {
				rowByID[id] = i + 2
			}
		}
	}

	updated := 0
	for _, u := range updates {
		rowNum, ok := rowByID[u.InvoiceID]
		if !ok {
			s.logger.Warn("Write-back skipping unknown invoice",
				zap.String("invoice_id", u.InvoiceID))
			continue
		}

		stageCell, err := excelize.CoordinatesToCellName(stageCol+1, rowNum)
		if err != nil {
			return updated, fmt.Errorf("resolving cell for %s: %w", u.InvoiceID, err)
		}
		dateCell, err := excelize.CoordinatesToCellName(dateCol+1, rowNum)
		if err != nil {
			return updated, fmt.Errorf("resolving cell for %s: %w", u.InvoiceID, err)
		}

		if err := f.SetCellValue(s.sheet, stageCell, u.Stage); err != nil {
			return updated, fmt.Errorf("setting stage for %s: %w", u.InvoiceID, err)
		}
		if err := f.SetCellValue(s.sheet, dateCell, u.SentAt.Format("2006-01-02")); err != nil {
			return updated, fmt.Errorf("setting sent date for %s: %w", u.InvoiceID, err)
		}
		updated++
	}

	if err := f.Save(); err != nil {
		return 0, fmt.Errorf("failed to save workbook %s: %w", s.path, err)
	}

	s.logger.Info("Wrote tracking updates to workbook",
		zap.String("path", s.path),
		zap.Int("updated", updated),
		zap.Int("skipped", len(updates)-updated))

	return updated, nil
}

// headerIndex maps lowercased, trimmed column names to indices and
// checks that every required column is present.
func headerIndex(header []string) (map[string]int, error) {
	columns := normalizeHeader(header)

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func normalizeHeader(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name != "" {
			columns[name] = i
		}
	}
	return columns
}

func parseRow(row []string, columns map[string]int) (models.Invoice, error) {
	inv := models.Invoice{
		InvoiceID:   cell(row, columns, colInvoiceID),
		ClientName:  cell(row, columns, colClientName),
		ClientEmail: cell(row, columns, colClientEmail),
		Currency:    cell(row, columns, colCurrency),
		Status:      cell(row, columns, colStatus),
		Notes:       cell(row, columns, colNotes),
	}
	if inv.Currency == "" {
		inv.Currency = "USD"
	}

	if raw := cell(row, columns, colAmount); raw != "" {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return models.Invoice{}, fmt.Errorf("invalid amount %q", raw)
		}
		inv.Amount = amount
	}

	due, err := parseDate(cell(row, columns, colDueDate))
	if err != nil {
		return models.Invoice{}, fmt.Errorf("invalid due_date: %w", err)
	}
	if due.IsZero() {
		return models.Invoice{}, fmt.Errorf("due_date is required")
	}
	inv.DueDate = due

	if inv.SentDate, err = parseDate(cell(row, columns, colSentDate)); err != nil {
		return models.Invoice{}, fmt.Errorf("invalid sent_date: %w", err)
	}
	if inv.LastSentAt, err = parseDate(cell(row, columns, colLastSentAt)); err != nil {
		return models.Invoice{}, fmt.Errorf("invalid last_sent_at: %w", err)
	}

	if raw := cell(row, columns, colLastStageSent); raw != "" {
		stage, err := strconv.Atoi(raw)
		if err != nil {
			return models.Invoice{}, fmt.Errorf("invalid last_stage_sent %q", raw)
		}
		inv.LastStageSent = stage
	}

	if err := inv.Validate(); err != nil {
		return models.Invoice{}, err
	}
	return inv, nil
}

func cell(row []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseDate parses a cell value as a calendar date. Empty cells return
// the zero time.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
