package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/match_backend/matching"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearPolicyEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"QUANTITY_TOLERANCE_PCT", "PRICE_TOLERANCE_DOLLARS", "TOTAL_TOLERANCE_PCT",
		"MIN_SCORE_FOR_APPROVAL", "MATCH_POLICY_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadMatchPolicySet_Defaults(t *testing.T) {
	clearPolicyEnv(t)

	set, err := LoadMatchPolicySet()
	require.NoError(t, err)
	assert.Equal(t, matching.DefaultPolicy(), set.Default)
	assert.Equal(t, set.Default, set.ForVendor(99))
}

func TestLoadMatchPolicySet_EnvOverrides(t *testing.T) {
	clearPolicyEnv(t)
	t.Setenv("QUANTITY_TOLERANCE_PCT", "5")
	t.Setenv("PRICE_TOLERANCE_DOLLARS", "0.25")
	t.Setenv("MIN_SCORE_FOR_APPROVAL", "90")

	set, err := LoadMatchPolicySet()
	require.NoError(t, err)
	assert.True(t, set.Default.QuantityTolerancePct.Equal(decimal.NewFromInt(5)))
	assert.True(t, set.Default.PriceTolerance.Equal(decimal.RequireFromString("0.25")))
	assert.True(t, set.Default.TotalTolerancePct.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 90, set.Default.MinScoreForApproval)
}

func TestLoadMatchPolicySet_InvalidEnv(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"QUANTITY_TOLERANCE_PCT", "two"},
		{"PRICE_TOLERANCE_DOLLARS", "-1"},
		{"MIN_SCORE_FOR_APPROVAL", "101"},
		{"MIN_SCORE_FOR_APPROVAL", "ninety"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearPolicyEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadMatchPolicySet()
			assert.Error(t, err)
		})
	}
}

func TestLoadMatchPolicySet_File(t *testing.T) {
	clearPolicyEnv(t)
	t.Setenv("TOTAL_TOLERANCE_PCT", "3")

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default:
  price_tolerance: 1.5
vendors:
  - supplier_id: 12
    quantity_tolerance_pct: 10
    min_score_for_approval: 80
  - supplier_id: 13
    total_tolerance_pct: 0
`), 0o600))
	t.Setenv("MATCH_POLICY_FILE", path)

	set, err := LoadMatchPolicySet()
	require.NoError(t, err)

	assert.True(t, set.Default.PriceTolerance.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, set.Default.TotalTolerancePct.Equal(decimal.NewFromInt(3)), "env value is the base for the file")

	v12 := set.ForVendor(12)
	assert.True(t, v12.QuantityTolerancePct.Equal(decimal.NewFromInt(10)))
	assert.True(t, v12.PriceTolerance.Equal(decimal.RequireFromString("1.5")), "vendor inherits the file default")
	assert.Equal(t, 80, v12.MinScoreForApproval)

	v13 := set.ForVendor(13)
	assert.True(t, v13.TotalTolerancePct.IsZero())
	assert.Equal(t, 95, v13.MinScoreForApproval)
}

func TestParseMatchPolicySet_Rejects(t *testing.T) {
	base := matching.DefaultPolicy()
	tests := []struct {
		name string
		yaml string
	}{
		{"negative tolerance", "default:\n  quantity_tolerance_pct: -1\n"},
		{"score above 100", "vendors:\n  - supplier_id: 1\n    min_score_for_approval: 120\n"},
		{"missing supplier", "vendors:\n  - price_tolerance: 1\n"},
		{"duplicate supplier", "vendors:\n  - supplier_id: 4\n  - supplier_id: 4\n"},
		{"not yaml", "default: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMatchPolicySet([]byte(tt.yaml), base)
			assert.Error(t, err)
		})
	}
}

func TestNewDefaultMatchSweepConfig(t *testing.T) {
	t.Setenv("MATCH_SWEEP_SCHEDULE", "")
	t.Setenv("MATCH_SWEEP_BATCH_SIZE", "-3")
	t.Setenv("MATCH_SWEEP_WORKERS", "4")
	t.Setenv("MATCH_TIMEZONE", "Not/AZone")

	var logged bytes.Buffer
	GetLogger().SetOutput(&logged)
	t.Cleanup(func() { GetLogger().SetOutput(os.Stdout) })

	cfg := NewDefaultMatchSweepConfig()
	assert.Equal(t, "*/15 * * * *", cfg.Schedule)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Contains(t, logged.String(), `"level":"warning"`)
	assert.Contains(t, logged.String(), `"timezone":"Not/AZone"`)
}
