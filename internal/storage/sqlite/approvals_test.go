package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskpilot/riskpilot/internal/types"
)

func fxApproval(id string) *types.PendingApproval {
	rec := 0.855
	return &types.PendingApproval{
		ID:             id,
		RunID:          "run-" + id,
		UserText:       "Set FX hedge to 95%",
		Intent:         types.IntentHedgeAdjustment,
		HedgeType:      types.HedgeFX,
		Proposed:       0.95,
		MaxAllowed:     0.90,
		Recommendation: rec,
		Audit: types.AuditResult{
			Status: types.AuditFail, HedgeType: types.HedgeFX,
			Proposed: 0.95, MaxAllowed: 0.90, Recommendation: &rec,
		},
		Trace: []types.ThinkingStep{
			types.NewStep(types.StageAnalyze, types.StepSuccess, "Extracted HEDGE_ADJUSTMENT"),
			types.NewStep(types.StageAudit, types.StepPending, "Compliance FAIL: 95% fx hedge exceeds 90% limit"),
		},
	}
}

func TestCreateAndGetApproval(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	p := fxApproval("a1")
	require.NoError(t, store.CreateApproval(ctx, p))
	assert.Equal(t, types.ApprovalPending, p.Status)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := store.GetApproval(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "run-a1", got.RunID)
	assert.Equal(t, types.HedgeFX, got.HedgeType)
	assert.Equal(t, 0.855, got.Recommendation)
	assert.Equal(t, types.ApprovalPending, got.Status)
	assert.Nil(t, got.ReviewedAt)
	require.NotNil(t, got.Audit.Recommendation)
	assert.Equal(t, 0.855, *got.Audit.Recommendation)
	require.Len(t, got.Trace, 2)
	assert.Equal(t, types.StageAudit, got.Trace[1].Stage)
	assert.Equal(t, types.StepPending, got.Trace[1].Status)
}

func TestCreateApprovalValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	assert.Error(t, store.CreateApproval(ctx, nil))

	bad := fxApproval("bad")
	bad.Recommendation = 0.95
	assert.Error(t, store.CreateApproval(ctx, bad), "recommendation above the limit must be rejected")

	stress := fxApproval("stress")
	stress.Intent = types.IntentStressTest
	assert.Error(t, store.CreateApproval(ctx, stress))

	require.NoError(t, store.CreateApproval(ctx, fxApproval("dup")))
	assert.Error(t, store.CreateApproval(ctx, fxApproval("dup")))
}

func TestGetApprovalNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetApproval(context.Background(), "missing")
	assert.True(t, errors.Is(err, types.ErrApprovalNotFound), "got %v", err)
}

func TestResolveApproval(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateApproval(ctx, fxApproval("a1")))

	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	p, err := store.ResolveApproval(ctx, "a1", types.ApprovalApproved, "cio", "within risk appetite", at)
	require.NoError(t, err)
	assert.Equal(t, types.ApprovalApproved, p.Status)
	assert.Equal(t, "cio", p.ReviewedBy)
	assert.Equal(t, "within risk appetite", p.Reason)
	require.NotNil(t, p.ReviewedAt)
	assert.True(t, p.ReviewedAt.Equal(at))

	// Second resolution fails and reports the current state
	p, err = store.ResolveApproval(ctx, "a1", types.ApprovalRejected, "someone-else", "", at)
	assert.True(t, errors.Is(err, types.ErrApprovalNotPending), "got %v", err)
	require.NotNil(t, p)
	assert.Equal(t, types.ApprovalApproved, p.Status)
	assert.Equal(t, "cio", p.ReviewedBy)

	_, err = store.ResolveApproval(ctx, "nope", types.ApprovalApproved, "cio", "", at)
	assert.True(t, errors.Is(err, types.ErrApprovalNotFound), "got %v", err)

	_, err = store.ResolveApproval(ctx, "a1", types.ApprovalPending, "cio", "", at)
	assert.Error(t, err)

	_, err = store.ResolveApproval(ctx, "a1", types.ApprovalApproved, "", "", at)
	assert.Error(t, err)
}

func TestResolveApprovalExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.CreateApproval(ctx, fxApproval("race")))

	const reviewers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, notPending := 0, 0

	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := types.ApprovalApproved
			if i%2 == 1 {
				status = types.ApprovalRejected
			}
			_, err := store.ResolveApproval(ctx, "race", status, "reviewer", "", time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, types.ErrApprovalNotPending):
				notPending++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, reviewers-1, notPending)
}

func TestListApprovals(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i, id := range []string{"first", "second", "third"} {
		p := fxApproval(id)
		p.CreatedAt = time.Date(2026, 1, 1, 9, i, 0, 0, time.UTC)
		require.NoError(t, store.CreateApproval(ctx, p))
	}
	_, err := store.ResolveApproval(ctx, "second", types.ApprovalRejected, "cio", "too aggressive", time.Now())
	require.NoError(t, err)

	pending, err := store.ListApprovals(ctx, types.ApprovalPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "first", pending[0].ID)
	assert.Equal(t, "third", pending[1].ID)

	all, err := store.ListApprovals(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	rejected, err := store.ListApprovals(ctx, types.ApprovalRejected)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "too aggressive", rejected[0].Reason)
}
