// Package respond turns a finished loop run into the text shown to the user.
// Whatever the model writes, the compliance outcome is appended
// deterministically so it can never be lost or reworded.
package respond

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/riskpilot/riskpilot/internal/ai"
	"github.com/riskpilot/riskpilot/internal/calc"
	"github.com/riskpilot/riskpilot/internal/compliance"
	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/types"
)

// DefaultMaxWords caps every synthesized response
const DefaultMaxWords = 200

// Input is everything the synthesizer may talk about
type Input struct {
	Text     string
	Intent   types.Intent
	Proposal types.Proposal
	Context  *types.RiskContext

	// First is the audit of the original proposal, Final the last one.
	// Both are nil when nothing was audited.
	First      *types.AuditResult
	Final      *types.AuditResult
	Iterations int
	// Exhausted means refinement stopped before reaching a PASS
	Exhausted bool

	Trace []types.ThinkingStep
	Err   error
}

// Reply is the synthesized text plus how it was produced
type Reply struct {
	Text   string
	Status types.StepStatus
	// Detail explains a degraded reply (model failure, fatal error)
	Detail string
}

// Config configures a Synthesizer
type Config struct {
	// Client may be nil, in which case replies are templated
	Client      ai.Completer
	HedgeLimits []compliance.LimitEntry
	Global      compliance.GlobalLimits
	MaxWords    int
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Synthesizer writes responses. It holds no per-turn state.
type Synthesizer struct {
	client      ai.Completer
	hedgeLimits []compliance.LimitEntry
	global      compliance.GlobalLimits
	maxWords    int
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *slog.Logger
}

// New creates a synthesizer
func New(cfg *Config) *Synthesizer {
	if cfg == nil {
		cfg = &Config{}
	}
	s := &Synthesizer{
		client:      cfg.Client,
		hedgeLimits: cfg.HedgeLimits,
		global:      cfg.Global,
		maxWords:    cfg.MaxWords,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}
	if s.maxWords <= 0 {
		s.maxWords = DefaultMaxWords
	}
	if s.maxTokens <= 0 {
		s.maxTokens = 400
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if s.global == (compliance.GlobalLimits{}) {
		s.global = compliance.DefaultGlobalLimits()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Synthesize never fails: model errors degrade to an apology that still
// carries the compliance line.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) Reply {
	line := ComplianceLine(in)

	if in.Err != nil {
		return Reply{
			Text:   s.finish(errorMessage(in.Err), line),
			Status: types.StepError,
			Detail: in.Err.Error(),
		}
	}

	if s.client == nil {
		return Reply{
			Text:   s.finish(Summary(in), line),
			Status: types.StepSuccess,
			Detail: "templated (no model configured)",
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Complete(callCtx, ai.Request{
		Operation:   "synthesis",
		System:      SystemPrompt(in.Context, s.hedgeLimits, s.global, s.maxWords),
		Prompt:      ExecutionContext(in) + "\nUser query: " + in.Text,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		if err == nil {
			err = errors.New("model returned an empty response")
		}
		s.logger.Warn("response synthesis failed", "error", err)
		return Reply{
			Text:   s.finish(Apology(in), line),
			Status: types.StepError,
			Detail: err.Error(),
		}
	}

	return Reply{
		Text:   s.finish(resp.Text, line),
		Status: types.StepSuccess,
	}
}

// finish caps body so that body plus compliance line fit the word budget
func (s *Synthesizer) finish(body, line string) string {
	budget := s.maxWords - len(strings.Fields(line))
	if budget < 1 {
		budget = 1
	}
	body = CapWords(strings.TrimSpace(body), budget)
	if line == "" {
		return body
	}
	return body + "\n\n" + line
}

// ComplianceLine states the audit outcome. Empty when nothing was audited.
func ComplianceLine(in Input) string {
	if in.First == nil || in.Final == nil {
		return ""
	}
	first, final := in.First, in.Final
	ht := final.HedgeType

	switch {
	case first.Passed():
		return fmt.Sprintf("Compliance: PASS. %s %s hedge is within the %s limit.",
			riskctx.FormatRatio(first.Proposed), ht, riskctx.FormatRatio(first.MaxAllowed))

	case final.Passed():
		return fmt.Sprintf("Compliance: FAIL at %s (%s limit %s), refined to %s and re-audited: PASS.",
			riskctx.FormatRatio(first.Proposed), ht, riskctx.FormatRatio(first.MaxAllowed),
			riskctx.FormatRatio(final.Proposed))

	case in.Exhausted:
		return fmt.Sprintf("Compliance: FAIL at %s (%s limit %s). No compliant alternative found after %d refinement(s); last proposal %s.",
			riskctx.FormatRatio(first.Proposed), ht, riskctx.FormatRatio(first.MaxAllowed),
			in.Iterations, riskctx.FormatRatio(final.Proposed))
	}

	line := fmt.Sprintf("Compliance: FAIL at %s (%s limit %s).",
		riskctx.FormatRatio(first.Proposed), ht, riskctx.FormatRatio(first.MaxAllowed))
	if final.Recommendation != nil {
		line += fmt.Sprintf(" Suggested compliant ratio: %s.", riskctx.FormatRatio(*final.Recommendation))
	}
	return line
}

// Apology is the reply when the model cannot be reached
func Apology(in Input) string {
	return "I'm sorry, I couldn't generate a full answer right now because the language model is unavailable. " +
		Summary(in)
}

// Summary is a deterministic description of the computed result
func Summary(in Input) string {
	switch p := in.Proposal.(type) {
	case types.HedgeProposal:
		return fmt.Sprintf("Requested %s hedge ratio: %s.", p.HedgeType, riskctx.FormatRatio(originalRatio(in, p)))

	case types.StressProposal:
		r := p.Result
		name := p.Scenario
		if name == "" {
			name = "custom scenario"
		}
		return fmt.Sprintf("Stress test (%s: rates %+.0fbp, equities %s, inflation %s): funded status moves from %s to %s (%s), surplus change %s.",
			name, p.RateShockBP, riskctx.FormatSignedPct(p.EquityShock, 0), riskctx.FormatSignedPct(p.InflationShock, 1),
			riskctx.FormatPct(r.BaseFundedStatus, 1), riskctx.FormatPct(r.StressedFundedStatus, 1),
			riskctx.FormatSignedPct(r.FundedStatusDelta, 1), riskctx.FormatMillions(r.SurplusDelta))

	case types.LimitProposal:
		return limitSummary(p)
	}

	return "I can check hedge proposals against compliance limits, run stress tests and report limit status. " +
		"Ask, for example, \"increase the duration hedge to 75%\" or \"run the stagflation scenario\"."
}

func originalRatio(in Input, p types.HedgeProposal) float64 {
	if in.First != nil {
		return in.First.Proposed
	}
	return p.Ratio
}

func limitSummary(p types.LimitProposal) string {
	var b strings.Builder
	switch p.View {
	case types.ViewMetrics:
		m := p.Metrics
		fmt.Fprintf(&b, "Funded status %s, surplus %s, duration gap %.1f years (assets %.1f, liabilities %.1f), FX exposure %s.",
			riskctx.FormatPct(m.FundedStatus, 1), riskctx.FormatBillions(m.Surplus),
			m.DurationGap, m.AssetDuration, m.LiabilityDuration, riskctx.FormatPct(m.FXExposurePct, 1))
	case types.ViewAllocation:
		b.WriteString("Allocation vs policy target:")
		for _, d := range p.Allocation {
			fmt.Fprintf(&b, " %s %s (%s);", d.AssetClass,
				riskctx.FormatPct(d.CurrentWeight, 1), riskctx.FormatSignedPct(d.Deviation, 1))
		}
	default:
		b.WriteString(calc.Describe(p) + ".")
		for _, row := range p.Summary.Rows {
			if row.Status != types.LimitOK {
				fmt.Fprintf(&b, " %s: %s at %s.", row.Status, row.Label, riskctx.FormatPct(row.CurrentWeight, 1))
			}
		}
	}
	if v := compliance.Violations(p.Global); len(v) > 0 {
		for _, g := range v {
			fmt.Fprintf(&b, " Global limit breached: %s.", g.String())
		}
	}
	return b.String()
}

func errorMessage(err error) string {
	var mce *types.MissingContextError
	if errors.As(err, &mce) {
		return fmt.Sprintf("I can't compute that because %s. Please reload the risk snapshot and try again.", mce.Error())
	}
	return fmt.Sprintf("I couldn't complete that request: %v.", err)
}

// CapWords truncates text after n words, keeping the original spacing
func CapWords(text string, n int) string {
	count := 0
	inWord := false
	for i, r := range text {
		space := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !space && !inWord {
			count++
			if count > n {
				return strings.TrimRight(text[:i], " \n\t\r") + " …"
			}
		}
		inWord = !space
	}
	return text
}
