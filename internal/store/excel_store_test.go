package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-collector/internal/models"
)

const testSheet = "Invoices"

var testHeader = []string{
	"invoice_id", "client_name", "client_email", "amount", "currency",
	"due_date", "sent_date", "status", "notes", "last_stage_sent", "last_sent_at",
}

// writeWorkbook creates a workbook in a temp dir with the given header
// and rows and returns its path.
func writeWorkbook(t *testing.T, header []string, rows [][]any) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "invoices.xlsx")
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet(testSheet)
	require.NoError(t, err)

	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	require.NoError(t, f.SetSheetRow(testSheet, "A1", &headerCells))

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(testSheet, cell, &row))
	}

	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadAll(t *testing.T) {
	path := writeWorkbook(t, testHeader, [][]any{
		{"INV-001", "Acme Corp", "billing@acme.test", "1200.50", "USD", "2025-01-01", "2024-12-15", "Overdue", "priority client", "7", "2025-01-08"},
		{"INV-002", "Globex", "ap@globex.test", "300", "EUR", "2025-01-05", "2024-12-20", "Paid", "", "", ""},
	})

	s := NewExcelStore(path, testSheet, zap.NewNop())
	invoices, rowErrs, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Len(t, invoices, 2)

	inv := invoices[0]
	assert.Equal(t, "INV-001", inv.InvoiceID)
	assert.Equal(t, "Acme Corp", inv.ClientName)
	assert.Equal(t, "billing@acme.test", inv.ClientEmail)
	assert.Equal(t, 1200.50, inv.Amount)
	assert.Equal(t, "USD", inv.Currency)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), inv.DueDate)
	assert.Equal(t, "Overdue", inv.Status)
	assert.Equal(t, "priority client", inv.Notes)
	assert.Equal(t, 7, inv.LastStageSent)
	assert.Equal(t, time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), inv.LastSentAt)
	assert.True(t, inv.IsOverdue())

	inv = invoices[1]
	assert.Equal(t, "INV-002", inv.InvoiceID)
	assert.Equal(t, 0, inv.LastStageSent)
	assert.True(t, inv.LastSentAt.IsZero())
	assert.False(t, inv.IsOverdue())
}

func TestReadAll_MissingRequiredColumnFailsRead(t *testing.T) {
	header := []string{"invoice_id", "client_name", "client_email", "amount", "currency", "due_date", "sent_date"}
	path := writeWorkbook(t, header, nil)

	s := NewExcelStore(path, testSheet, zap.NewNop())
	_, _, err := s.ReadAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status")
}

func TestReadAll_MissingFileFailsRead(t *testing.T) {
	s := NewExcelStore(filepath.Join(t.TempDir(), "nope.xlsx"), testSheet, zap.NewNop())
	_, _, err := s.ReadAll(context.Background())
	assert.Error(t, err)
}

func TestReadAll_BadRowsAreIsolated(t *testing.T) {
	path := writeWorkbook(t, testHeader, [][]any{
		{"INV-001", "Acme", "billing@acme.test", "100", "USD", "2025-01-01", "2024-12-15", "Overdue", "", "", ""},
		{"INV-002", "Globex", "not-an-email", "100", "USD", "2025-01-01", "2024-12-15", "Overdue", "", "", ""},
		{"INV-003", "Initech", "ap@initech.test", "100", "USD", "not a date", "2024-12-15", "Overdue", "", "", ""},
		{"", "Hooli", "pay@hooli.test", "100", "USD", "2025-01-01", "2024-12-15", "Overdue", "", "", ""},
		{"INV-005", "Umbrella", "ap@umbrella.test", "-50", "USD", "2025-01-01", "2024-12-15", "Overdue", "", "", ""},
		{"INV-006", "Stark", "ap@stark.test", "abc", "USD", "2025-01-01", "2024-12-15", "Overdue", "", "", ""},
	})

	s := NewExcelStore(path, testSheet, zap.NewNop())
	invoices, rowErrs, err := s.ReadAll(context.Background())
	require.NoError(t, err)

	require.Len(t, invoices, 1)
	assert.Equal(t, "INV-001", invoices[0].InvoiceID)

	require.Len(t, rowErrs, 5)
	assert.Equal(t, 3, rowErrs[0].Row)
	assert.Equal(t, "INV-002", rowErrs[0].InvoiceID)
	assert.Contains(t, rowErrs[1].Error(), "date")
}

func TestWriteBack(t *testing.T) {
	path := writeWorkbook(t, testHeader, [][]any{
		{"INV-001", "Acme", "billing@acme.test", "100", "USD", "2025-01-01", "2024-12-15", "Overdue", "", "", ""},
		{"INV-002", "Globex", "ap@globex.test", "200", "USD", "2025-01-01", "2024-12-15", "Overdue", "", "7", "2025-01-08"},
	})

	s := NewExcelStore(path, testSheet, zap.NewNop())
	today := time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)

	count, err := s.WriteBack(context.Background(), []models.TrackingUpdate{
		{InvoiceID: "INV-001", Stage: 21, SentAt: today},
		{InvoiceID: "INV-002", Stage: 21, SentAt: today},
		{InvoiceID: "INV-MISSING", Stage: 7, SentAt: today}, // silently skipped
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Re-read through the store and check the tracking state stuck.
	invoices, rowErrs, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Len(t, invoices, 2)

	for _, inv := range invoices {
		assert.Equal(t, 21, inv.LastStageSent, inv.InvoiceID)
		assert.Equal(t, today, inv.LastSentAt, inv.InvoiceID)
	}
}

func TestWriteBack_NoUpdatesIsNoop(t *testing.T) {
	s := NewExcelStore(filepath.Join(t.TempDir(), "absent.xlsx"), testSheet, zap.NewNop())
	count, err := s.WriteBack(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWriteBack_MissingTrackingColumns(t *testing.T) {
	header := []string{"invoice_id", "client_name", "client_email", "amount", "currency", "due_date", "sent_date", "status"}
	path := writeWorkbook(t, header, [][]any{
		{"INV-001", "Acme", "billing@acme.test", "100", "USD", "2025-01-01", "2024-12-15", "Overdue"},
	})

	s := NewExcelStore(path, testSheet, zap.NewNop())
	_, err := s.WriteBack(context.Background(), []models.TrackingUpdate{
		{InvoiceID: "INV-001", Stage: 7, SentAt: time.Now()},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last_stage_sent")
}
