package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/riskpilot/riskpilot/internal/events"
	"github.com/riskpilot/riskpilot/internal/types"
)

func TestEventStorage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	step := types.NewStep(types.StageAudit, types.StepWarning, "Compliance FAIL: 85% duration hedge exceeds 80% limit").
		WithTool("compliance_audit",
			map[string]interface{}{"ratio": 0.85, "hedge_type": "duration"},
			map[string]interface{}{"status": "FAIL", "recommendation": 0.76})
	step.Timestamp = base.Add(2 * time.Second)

	stepEvent, err := events.NewStepEvent("run-1", 3, step)
	if err != nil {
		t.Fatalf("NewStepEvent failed: %v", err)
	}

	started := events.NewTurnStartedEvent("run-1", "alice", "Increase duration hedge to 85%")
	started.Timestamp = base

	other := events.NewTurnStartedEvent("run-2", "bob", "Run a stress test")
	other.Timestamp = base.Add(time.Minute)

	for _, e := range []*events.Event{stepEvent, started, other} {
		if err := store.StoreEvent(ctx, e); err != nil {
			t.Fatalf("StoreEvent(%s) failed: %v", e.Type, err)
		}
	}

	t.Run("GetEventsByRun", func(t *testing.T) {
		got, err := store.GetEventsByRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("GetEventsByRun failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 events, got %d", len(got))
		}
		// Chronological regardless of insert order
		if got[0].Type != events.EventTypeTurnStarted || got[1].Type != events.EventTypeThinkingStep {
			t.Errorf("unexpected order: %s, %s", got[0].Type, got[1].Type)
		}
		if got[0].Actor != "alice" {
			t.Errorf("expected actor alice, got %q", got[0].Actor)
		}
		if !got[0].Timestamp.Equal(base) {
			t.Errorf("expected timestamp %v, got %v", base, got[0].Timestamp)
		}

		data, err := got[1].GetThinkingStepData()
		if err != nil {
			t.Fatalf("GetThinkingStepData failed: %v", err)
		}
		if data.Seq != 3 || data.Stage != "AUDIT" || data.Tool != "compliance_audit" {
			t.Errorf("unexpected step data: %+v", data)
		}
		if data.Result["recommendation"] != 0.76 {
			t.Errorf("expected recommendation 0.76, got %v", data.Result["recommendation"])
		}
		if got[1].Severity != events.SeverityWarning {
			t.Errorf("expected warning severity, got %s", got[1].Severity)
		}
	})

	t.Run("GetEventsWithFilter", func(t *testing.T) {
		got, err := store.GetEvents(ctx, events.EventFilter{Type: events.EventTypeTurnStarted})
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 turn_started events, got %d", len(got))
		}
		// Most recent first
		if got[0].RunID != "run-2" {
			t.Errorf("expected run-2 first, got %s", got[0].RunID)
		}

		got, err = store.GetEvents(ctx, events.EventFilter{
			AfterTime:  base.Add(time.Second),
			BeforeTime: base.Add(30 * time.Second),
		})
		if err != nil {
			t.Fatalf("GetEvents with time range failed: %v", err)
		}
		if len(got) != 1 || got[0].Type != events.EventTypeThinkingStep {
			t.Errorf("expected only the step event in range, got %d events", len(got))
		}

		got, err = store.GetEvents(ctx, events.EventFilter{Severity: events.SeverityWarning, RunID: "run-2"})
		if err != nil {
			t.Fatalf("GetEvents failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no warning events for run-2, got %d", len(got))
		}
	})

	t.Run("GetRecentEvents", func(t *testing.T) {
		got, err := store.GetRecentEvents(ctx, 2)
		if err != nil {
			t.Fatalf("GetRecentEvents failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 events, got %d", len(got))
		}
		if got[0].RunID != "run-2" {
			t.Errorf("expected newest event first, got run %s", got[0].RunID)
		}

		if _, err := store.GetRecentEvents(ctx, 0); err == nil {
			t.Error("expected error for zero limit")
		}
	})
}

func TestStoreEventValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.StoreEvent(ctx, nil); err == nil {
		t.Error("expected error for nil event")
	}
	if err := store.StoreEvent(ctx, &events.Event{Type: events.EventTypeBudgetAlert, Message: "x"}); err == nil {
		t.Error("expected error for event without id")
	}

	// Duplicate ids are rejected
	e := events.NewEvent(events.EventTypeBudgetAlert, "", events.SeverityWarning, "budget at 80%", nil)
	if err := store.StoreEvent(ctx, e); err != nil {
		t.Fatalf("StoreEvent failed: %v", err)
	}
	if err := store.StoreEvent(ctx, e); err == nil {
		t.Error("expected error storing the same event twice")
	}
}

func TestApprovalEventsByApprovalID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	requested, err := events.NewApprovalRequestedEvent("run-9", "appr-9", "FX hedge escalated", events.ApprovalRequestedData{
		HedgeType: "fx", Proposed: 0.95, MaxAllowed: 0.90, Recommendation: 0.855, Policy: "governed",
	})
	if err != nil {
		t.Fatalf("NewApprovalRequestedEvent failed: %v", err)
	}
	if err := store.StoreEvent(ctx, requested); err != nil {
		t.Fatalf("StoreEvent failed: %v", err)
	}

	got, err := store.GetEvents(ctx, events.EventFilter{ApprovalID: "appr-9"})
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	data, err := got[0].GetApprovalRequestedData()
	if err != nil {
		t.Fatalf("GetApprovalRequestedData failed: %v", err)
	}
	if data.Recommendation != 0.855 || data.Policy != "governed" {
		t.Errorf("unexpected data: %+v", data)
	}
}
