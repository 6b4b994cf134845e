package respond

import (
	"fmt"

	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/types"
)

// ApprovalRequest is shown when a turn is suspended for sign-off
func ApprovalRequest(p *types.PendingApproval) string {
	return fmt.Sprintf(`Approval required (request %s)

The proposed %s hedge ratio %s exceeds the compliance limit of %s.

System recommendation: adjust to %s (95%% of the limit).

Approve the recommended adjustment or reject the operation.

Compliance: FAIL at %s (%s limit %s). Awaiting approval.`,
		p.ID, p.HedgeType,
		riskctx.FormatRatio(p.Proposed), riskctx.FormatRatio(p.MaxAllowed),
		riskctx.FormatRatio(p.Recommendation),
		riskctx.FormatRatio(p.Proposed), p.HedgeType, riskctx.FormatRatio(p.MaxAllowed))
}

// Approved confirms an approved adjustment
func Approved(p *types.PendingApproval) string {
	return fmt.Sprintf(`Operation approved by %s.

The %s hedge ratio is adjusted to %s, within the %s limit.

This action has been logged to the audit trail.`,
		reviewer(p), p.HedgeType, riskctx.FormatRatio(p.Recommendation), riskctx.FormatRatio(p.MaxAllowed))
}

// Rejected confirms a rejected adjustment
func Rejected(p *types.PendingApproval) string {
	text := fmt.Sprintf(`Operation rejected by %s.

The %s hedge adjustment to %s has been cancelled. The current configuration remains unchanged.`,
		reviewer(p), p.HedgeType, riskctx.FormatRatio(p.Proposed))
	if p.Reason != "" {
		text += "\n\nReason: " + p.Reason
	}
	return text
}

func reviewer(p *types.PendingApproval) string {
	if p.ReviewedBy == "" {
		return "reviewer"
	}
	return p.ReviewedBy
}
