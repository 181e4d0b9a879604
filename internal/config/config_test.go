package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
store:
  path: data/invoices.xlsx
  sheet: Invoices
drafts:
  base_url: https://mail.example.com/api/v1
  sender: billing@example.com
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "data/invoices.xlsx", cfg.Store.Path)
	assert.Equal(t, "Invoices", cfg.Store.Sheet)
	assert.Equal(t, "https://mail.example.com/api/v1", cfg.Drafts.BaseURL)

	// Defaults
	assert.Equal(t, []int{7, 14, 21, 28, 35, 42}, cfg.Stages)
	assert.Equal(t, 4, cfg.Drafts.MaxRetries)
	assert.Equal(t, time.Second, cfg.Drafts.InitialWait)
	assert.Equal(t, "templates", cfg.Templates.Dir)
	assert.True(t, cfg.Ledger.Enabled)
	assert.Equal(t, 8, cfg.Window.StartHour)
	assert.Equal(t, 18, cfg.Window.EndHour)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig+`
stages: [10, 20, 30]
drafts_extra: ignored
window:
  start_hour: 9
  end_hour: 17
`))
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 30}, cfg.Stages)
	assert.Equal(t, 9, cfg.Window.StartHour)
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	_, err := Load(writeConfig(t, `
store:
  path: data/invoices.xlsx
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drafts.base_url")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestWithinBusinessHours(t *testing.T) {
	cfg := &Config{Window: WindowConfig{StartHour: 8, EndHour: 18}}

	assert.True(t, cfg.WithinBusinessHours(time.Date(2025, 1, 8, 8, 0, 0, 0, time.UTC)))
	assert.True(t, cfg.WithinBusinessHours(time.Date(2025, 1, 8, 17, 59, 0, 0, time.UTC)))
	assert.False(t, cfg.WithinBusinessHours(time.Date(2025, 1, 8, 7, 59, 0, 0, time.UTC)))
	assert.False(t, cfg.WithinBusinessHours(time.Date(2025, 1, 8, 18, 0, 0, 0, time.UTC)))
}
