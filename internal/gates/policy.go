package gates

import (
	"fmt"
	"strings"

	"github.com/riskpilot/riskpilot/internal/loop"
)

// ApprovalPolicy decides what happens when a hedge proposal fails its audit
type ApprovalPolicy string

const (
	// PolicyGoverned suspends every failed hedge audit for human sign-off.
	// The recommendation is shown as the suggested resolution; REFINE does
	// not run on its own.
	PolicyGoverned ApprovalPolicy = "governed"

	// PolicyAutoRefine lets the loop refine failed proposals without asking
	PolicyAutoRefine ApprovalPolicy = "auto_refine"
)

// DefaultPolicy is used when none is configured
const DefaultPolicy = PolicyGoverned

// ParsePolicy validates a configured policy name. Empty means DefaultPolicy.
func ParsePolicy(s string) (ApprovalPolicy, error) {
	switch ApprovalPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultPolicy, nil
	case PolicyGoverned:
		return PolicyGoverned, nil
	case PolicyAutoRefine, "auto-refine", "auto":
		return PolicyAutoRefine, nil
	}
	return "", fmt.Errorf("invalid approval policy %q (expected governed or auto_refine)", s)
}

// IsValid checks if the policy value is valid
func (p ApprovalPolicy) IsValid() bool {
	return p == PolicyGoverned || p == PolicyAutoRefine
}

// RequiresApproval implements loop.EscalationPolicy. The loop only asks
// after a failed audit.
func (p ApprovalPolicy) RequiresApproval(ls *loop.LoopState) bool {
	if p != PolicyGoverned {
		return false
	}
	_, isHedge := ls.HedgeProposal()
	return isHedge
}
