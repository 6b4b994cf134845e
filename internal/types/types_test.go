package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestIntentRouting(t *testing.T) {
	tests := []struct {
		intent      Intent
		computation bool
		auditable   bool
	}{
		{IntentHedgeAdjustment, true, true},
		{IntentStressTest, true, false},
		{IntentLimitQuery, true, false},
		{IntentGeneralQuery, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			if !tt.intent.IsValid() {
				t.Fatalf("expected %s to be valid", tt.intent)
			}
			if got := tt.intent.RequiresComputation(); got != tt.computation {
				t.Errorf("RequiresComputation() = %v, want %v", got, tt.computation)
			}
			if got := tt.intent.IsAuditable(); got != tt.auditable {
				t.Errorf("IsAuditable() = %v, want %v", got, tt.auditable)
			}
		})
	}

	if Intent("REBALANCE").IsValid() {
		t.Error("unknown intent should be invalid")
	}
}

func TestParseHedgeType(t *testing.T) {
	tests := map[string]HedgeType{
		"fx":       HedgeFX,
		"Currency": HedgeFX,
		"equity":   HedgeEquity,
		"duration": HedgeDuration,
		"":         HedgeDuration,
		"credit":   HedgeDuration,
	}
	for in, want := range tests {
		if got := ParseHedgeType(in); got != want {
			t.Errorf("ParseHedgeType(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestProposalVariants(t *testing.T) {
	proposals := map[Intent]Proposal{
		IntentHedgeAdjustment: HedgeProposal{Ratio: 0.5, HedgeType: HedgeFX},
		IntentStressTest:      StressProposal{RateShockBP: 100},
		IntentLimitQuery:      LimitProposal{View: ViewLimits},
		IntentGeneralQuery:    GeneralProposal{},
	}
	for intent, p := range proposals {
		if p.Intent() != intent {
			t.Errorf("%T.Intent() = %s, want %s", p, p.Intent(), intent)
		}
	}

	hp := HedgeProposal{Ratio: 0.85, HedgeType: HedgeDuration}
	refined := hp.WithRatio(0.76)
	if hp.Ratio != 0.85 {
		t.Errorf("WithRatio mutated the original: %v", hp.Ratio)
	}
	if refined.Ratio != 0.76 || refined.HedgeType != HedgeDuration {
		t.Errorf("unexpected refined proposal: %+v", refined)
	}
}

func TestAuditResultValidate(t *testing.T) {
	rec := 0.76
	tooHigh := 0.81

	tests := []struct {
		name    string
		result  AuditResult
		wantErr bool
	}{
		{"pass without recommendation", AuditResult{Status: AuditPass, Proposed: 0.7, MaxAllowed: 0.8}, false},
		{"pass with recommendation", AuditResult{Status: AuditPass, Proposed: 0.7, MaxAllowed: 0.8, Recommendation: &rec}, true},
		{"fail with recommendation", AuditResult{Status: AuditFail, Proposed: 0.85, MaxAllowed: 0.8, Recommendation: &rec}, false},
		{"fail without recommendation", AuditResult{Status: AuditFail, Proposed: 0.85, MaxAllowed: 0.8}, true},
		{"recommendation above limit", AuditResult{Status: AuditFail, Proposed: 0.85, MaxAllowed: 0.8, Recommendation: &tooHigh}, true},
		{"unknown status", AuditResult{Status: "MAYBE"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDecision(t *testing.T) {
	for _, in := range []string{"approved", "APPROVE", " yes "} {
		d, err := ParseDecision(in)
		if err != nil || d != DecisionApproved {
			t.Errorf("ParseDecision(%q) = %s, %v", in, d, err)
		}
	}
	for _, in := range []string{"rejected", "reject", "no"} {
		d, err := ParseDecision(in)
		if err != nil || d != DecisionRejected {
			t.Errorf("ParseDecision(%q) = %s, %v", in, d, err)
		}
	}
	if _, err := ParseDecision("maybe"); err == nil {
		t.Error("expected error for unknown decision")
	}
	if DecisionApproved.Status() != ApprovalApproved || DecisionRejected.Status() != ApprovalRejected {
		t.Error("decision did not map onto the expected status")
	}
}

func TestPendingApprovalRoundTrip(t *testing.T) {
	rec := 0.76
	pa := PendingApproval{
		ID:             "appr-1",
		Intent:         IntentHedgeAdjustment,
		HedgeType:      HedgeDuration,
		Proposed:       0.85,
		MaxAllowed:     0.80,
		Recommendation: rec,
		Audit:          AuditResult{Status: AuditFail, Proposed: 0.85, MaxAllowed: 0.80, Recommendation: &rec},
		Trace:          []ThinkingStep{NewStep(StageAudit, StepWarning, "limit breached")},
		Status:         ApprovalPending,
	}
	if err := pa.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	data, err := json.Marshal(pa)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded PendingApproval
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Audit.Recommendation == nil || *decoded.Audit.Recommendation != rec {
		t.Errorf("recommendation lost in round trip: %+v", decoded.Audit)
	}
	if len(decoded.Trace) != 1 || decoded.Trace[0].Stage != StageAudit {
		t.Errorf("trace lost in round trip: %+v", decoded.Trace)
	}

	pa.Intent = IntentStressTest
	if err := pa.Validate(); err == nil {
		t.Error("expected validation error for non-hedge approval")
	}
}

func TestMissingContextError(t *testing.T) {
	var err error = &MissingContextError{Fields: []string{"total_assets", "total_liabilities"}}
	var mce *MissingContextError
	if !errors.As(err, &mce) {
		t.Fatal("errors.As failed")
	}
	if got := err.Error(); got != "risk context is missing required fields: total_assets, total_liabilities" {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestRiskContextHelpers(t *testing.T) {
	rc := &RiskContext{
		AssetDuration:     4.4,
		LiabilityDuration: 12.9,
		Allocation: []AllocationRow{
			{AssetClass: "Public Equities", CurrentWeight: 0.38, PolicyTarget: 0.36, RangeMin: 0.30, RangeMax: 0.45},
			{AssetClass: "Private Equity", CurrentWeight: 0.05},
			{AssetClass: "Fixed Income", CurrentWeight: 0.42},
		},
	}
	if gap := rc.DurationGap(); gap > -8.49 || gap < -8.51 {
		t.Errorf("DurationGap() = %v", gap)
	}
	if w := rc.AllocationWeight("equit"); w < 0.429 || w > 0.431 {
		t.Errorf("AllocationWeight(equit) = %v", w)
	}
	row := rc.Allocation[0]
	if d := row.Deviation(); d < 0.0199 || d > 0.0201 {
		t.Errorf("Deviation() = %v", d)
	}
	if !row.InRange() {
		t.Error("expected row to be in range")
	}
}

func TestRunRecordValidate(t *testing.T) {
	start := time.Date(2026, 1, 30, 9, 0, 0, 0, time.UTC)
	r := &RunRecord{ID: "run-1", Intent: IntentHedgeAdjustment, StartedAt: start, CompletedAt: start.Add(2 * time.Second)}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Duration() != 2*time.Second {
		t.Errorf("expected 2s, got %v", r.Duration())
	}

	r.CompletedAt = start.Add(-time.Second)
	if err := r.Validate(); err == nil {
		t.Error("expected error for completion before start")
	}
	r.CompletedAt = start
	r.Intent = "SELL"
	if err := r.Validate(); err == nil {
		t.Error("expected error for invalid intent")
	}
}
