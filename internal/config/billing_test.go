package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBillingConfigHolder_DefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewBillingConfigHolder()
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, "Tax", cfg.TaxCategory)
	assert.Equal(t, "BILL", cfg.BillNumberPrefix)
	assert.Equal(t, "Completed", cfg.DefaultTripStatus)
	assert.Equal(t, 30*time.Second, cfg.GenerationLockTTL)
}

func TestNewBillingConfigHolder_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("billing:\n  taxCategory: GST\n  billNumberPrefix: INV\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "billing.yml"), content, 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewBillingConfigHolder()
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, "GST", cfg.TaxCategory)
	assert.Equal(t, "INV", cfg.BillNumberPrefix)
	assert.Equal(t, "Completed", cfg.DefaultTripStatus)
}

func TestValidateBillingConfig(t *testing.T) {
	assert.NoError(t, validateBillingConfig(DefaultBillingConfig()))

	cfg := DefaultBillingConfig()
	cfg.BillNumberPrefix = "BILL NO"
	assert.Error(t, validateBillingConfig(cfg))

	cfg = DefaultBillingConfig()
	cfg.GenerationLockTTL = -time.Second
	assert.Error(t, validateBillingConfig(cfg))
}

func TestNewStaticBillingConfigHolder_FillsBlanks(t *testing.T) {
	holder := NewStaticBillingConfigHolder(BillingConfig{TaxCategory: "VAT"})
	cfg := holder.Get()
	assert.Equal(t, "VAT", cfg.TaxCategory)
	assert.Equal(t, "BILL", cfg.BillNumberPrefix)
}
