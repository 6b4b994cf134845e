package compliance

import (
	"testing"

	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuditor(t *testing.T) *Auditor {
	t.Helper()
	a, err := NewAuditor(nil)
	require.NoError(t, err)
	return a
}

func TestAuditDecisionRule(t *testing.T) {
	a := newTestAuditor(t)

	tests := []struct {
		name       string
		ratio      float64
		hedgeType  types.HedgeType
		wantStatus types.AuditStatus
		wantMax    float64
		wantRec    float64
	}{
		{"duration within limit", 0.70, types.HedgeDuration, types.AuditPass, 0.80, 0},
		{"duration exactly at limit", 0.80, types.HedgeDuration, types.AuditPass, 0.80, 0},
		{"duration above limit", 0.85, types.HedgeDuration, types.AuditFail, 0.80, 0.76},
		{"fx above limit", 0.95, types.HedgeFX, types.AuditFail, 0.90, 0.855},
		{"equity above limit", 0.60, types.HedgeEquity, types.AuditFail, 0.50, 0.475},
		{"unknown type uses duration", 0.85, types.HedgeType("credit"), types.AuditFail, 0.80, 0.76},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.AuditRatio(tt.ratio, tt.hedgeType)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantMax, got.MaxAllowed)
			assert.Equal(t, tt.ratio, got.Proposed)
			require.NoError(t, got.Validate())

			if tt.wantStatus == types.AuditFail {
				require.NotNil(t, got.Recommendation)
				assert.InDelta(t, tt.wantRec, *got.Recommendation, 1e-9)
			} else {
				assert.Nil(t, got.Recommendation)
			}
		})
	}
}

func TestRecommendationAlwaysPassesReaudit(t *testing.T) {
	a := newTestAuditor(t)

	for _, ht := range []types.HedgeType{types.HedgeDuration, types.HedgeFX, types.HedgeEquity} {
		max := a.MaxFor(ht)
		for ratio := max + 0.0001; ratio <= 1.0; ratio += 0.0137 {
			first := a.AuditRatio(ratio, ht)
			require.Equal(t, types.AuditFail, first.Status, "ratio %.4f for %s", ratio, ht)
			require.NotNil(t, first.Recommendation)
			assert.LessOrEqual(t, *first.Recommendation, first.MaxAllowed)
			assert.Less(t, *first.Recommendation, ratio, "refinement must move toward the limit")

			second := a.AuditRatio(*first.Recommendation, ht)
			assert.Equal(t, types.AuditPass, second.Status, "re-audit of %.4f for %s", *first.Recommendation, ht)
		}
	}
}

func TestAuditIsPure(t *testing.T) {
	a := newTestAuditor(t)
	p := types.HedgeProposal{Ratio: 0.72, HedgeType: types.HedgeDuration}
	assert.Equal(t, a.Audit(p), a.Audit(p))
}

func TestNewAuditorConfig(t *testing.T) {
	a, err := NewAuditor(&Config{
		HedgeLimits:  HedgeLimits{types.HedgeFX: 0.75},
		SafetyFactor: 0.90,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.75, a.MaxFor(types.HedgeFX))
	assert.Equal(t, 0.80, a.MaxFor(types.HedgeDuration), "unset types keep defaults")
	assert.InDelta(t, 0.675, a.Recommend(0.75), 1e-9)
	assert.Len(t, a.Limits(), 3)

	_, err = NewAuditor(&Config{HedgeLimits: HedgeLimits{types.HedgeFX: 1.5}})
	assert.Error(t, err)

	_, err = NewAuditor(&Config{HedgeLimits: HedgeLimits{"credit": 0.5}})
	assert.Error(t, err)

	_, err = NewAuditor(&Config{SafetyFactor: 1.2})
	assert.Error(t, err)
}

func TestCheckGlobal(t *testing.T) {
	rc := riskctx.Sample()
	results := CheckGlobal(rc, DefaultGlobalLimits())
	require.Len(t, results, 3)
	assert.Empty(t, Violations(results))

	breached := *rc
	breached.FXExposurePct = 0.158
	breached.TopIssuerWeight = 0.06
	violations := Violations(CheckGlobal(&breached, DefaultGlobalLimits()))
	require.Len(t, violations, 2)
	assert.Equal(t, "FX exposure", violations[0].Name)
	assert.Equal(t, "Single issuer", violations[1].Name)

	lowEquity := *rc
	lowEquity.Allocation = []types.AllocationRow{{AssetClass: "Public Equities", CurrentWeight: 0.15}}
	lowEquity.TopIssuerWeight = 0
	results = CheckGlobal(&lowEquity, DefaultGlobalLimits())
	require.Len(t, results, 2, "issuer check skipped without issuer data")
	assert.False(t, results[1].Passed)
	assert.Contains(t, results[1].String(), "VIOLATION")

	assert.Nil(t, CheckGlobal(nil, DefaultGlobalLimits()))
}

func TestGlobalLimitsValidate(t *testing.T) {
	assert.NoError(t, DefaultGlobalLimits().Validate())
	bad := DefaultGlobalLimits()
	bad.MaxSingleIssuer = 0
	assert.Error(t, bad.Validate())
}
