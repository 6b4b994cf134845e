package loop

import (
	"sort"
	"sync"
	"time"

	"github.com/riskpilot/riskpilot/internal/types"
)

// Outcome classifies how a turn ended
type Outcome string

const (
	OutcomeUnaudited Outcome = "unaudited" // no hedge proposal was audited
	OutcomePassed    Outcome = "passed"    // first audit passed
	OutcomeRefined   Outcome = "refined"   // failed, then refined into a pass
	OutcomeExhausted Outcome = "exhausted" // refinement gave up
	OutcomeSuspended Outcome = "suspended" // awaiting approval
	OutcomeError     Outcome = "error"     // fatal-for-turn error
)

// MetricsCollector instruments refinement loop runs.
// Pass nil to the loop config to disable collection.
type MetricsCollector interface {
	// RecordStep is called after every node execution
	RecordStep(stage types.Stage, status types.StepStatus, duration time.Duration)

	// RecordRunComplete is called once per turn
	RecordRunComplete(metrics *RunMetrics)

	// GetAggregateMetrics returns rolled-up statistics across all turns
	GetAggregateMetrics() *AggregateMetrics
}

// RunMetrics captures one turn
type RunMetrics struct {
	Intent     types.Intent
	Strategy   string
	Outcome    Outcome
	Steps      int
	Iterations int
	// BudgetExhausted is true when the step budget, not the table, ended the turn
	BudgetExhausted bool
	Duration        time.Duration
}

// AggregateMetrics rolls up every recorded turn
type AggregateMetrics struct {
	TotalRuns int

	// ByOutcome counts turns per outcome
	ByOutcome map[Outcome]int

	// ByIntent breaks down turns by intent
	ByIntent map[types.Intent]*IntentMetrics

	// FallbackExtractions counts turns whose model extraction fell back
	FallbackExtractions int

	BudgetExhaustedRuns int

	TotalIterations int
	MeanIterations  float64
	MeanSteps       float64
	P50Steps        int
	P95Steps        int

	// StepErrors counts node executions that ended in an error step
	StepErrors int

	TotalDuration time.Duration
	// StageDuration is time spent per node type
	StageDuration map[types.Stage]time.Duration
}

// IntentMetrics aggregates turns of one intent
type IntentMetrics struct {
	Count          int
	MeanIterations float64
	MeanSteps      float64
}

// InMemoryMetricsCollector keeps every run in memory. Safe for concurrent use.
type InMemoryMetricsCollector struct {
	mu            sync.Mutex
	runs          []*RunMetrics
	stageDuration map[types.Stage]time.Duration
	stepErrors    int
}

// NewInMemoryMetricsCollector creates a new in-memory metrics collector
func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return &InMemoryMetricsCollector{
		runs:          make([]*RunMetrics, 0),
		stageDuration: make(map[types.Stage]time.Duration),
	}
}

// RecordStep implements MetricsCollector
func (m *InMemoryMetricsCollector) RecordStep(stage types.Stage, status types.StepStatus, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stageDuration[stage] += duration
	if status == types.StepError {
		m.stepErrors++
	}
}

// RecordRunComplete implements MetricsCollector
func (m *InMemoryMetricsCollector) RecordRunComplete(metrics *RunMetrics) {
	if metrics == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, metrics)
}

// GetRuns returns a copy of the recorded runs
func (m *InMemoryMetricsCollector) GetRuns() []*RunMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*RunMetrics, len(m.runs))
	copy(out, m.runs)
	return out
}

// GetAggregateMetrics implements MetricsCollector
func (m *InMemoryMetricsCollector) GetAggregateMetrics() *AggregateMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	agg := &AggregateMetrics{
		ByOutcome:     make(map[Outcome]int),
		ByIntent:      make(map[types.Intent]*IntentMetrics),
		StageDuration: make(map[types.Stage]time.Duration, len(m.stageDuration)),
		StepErrors:    m.stepErrors,
	}
	for stage, d := range m.stageDuration {
		agg.StageDuration[stage] = d
	}
	if len(m.runs) == 0 {
		return agg
	}

	steps := make([]int, 0, len(m.runs))
	totalSteps := 0
	for _, run := range m.runs {
		agg.TotalRuns++
		agg.ByOutcome[run.Outcome]++
		agg.TotalIterations += run.Iterations
		agg.TotalDuration += run.Duration
		if run.Strategy == "keyword_fallback" {
			agg.FallbackExtractions++
		}
		if run.BudgetExhausted {
			agg.BudgetExhaustedRuns++
		}
		steps = append(steps, run.Steps)
		totalSteps += run.Steps
		updateIntentMetrics(agg.ByIntent, run)
	}

	agg.MeanIterations = float64(agg.TotalIterations) / float64(agg.TotalRuns)
	agg.MeanSteps = float64(totalSteps) / float64(agg.TotalRuns)

	sort.Ints(steps)
	agg.P50Steps = percentile(steps, 50)
	agg.P95Steps = percentile(steps, 95)

	return agg
}

// updateIntentMetrics folds one run into the per-intent incremental means
func updateIntentMetrics(byIntent map[types.Intent]*IntentMetrics, run *RunMetrics) {
	im := byIntent[run.Intent]
	if im == nil {
		im = &IntentMetrics{}
		byIntent[run.Intent] = im
	}
	im.Count++
	im.MeanIterations += (float64(run.Iterations) - im.MeanIterations) / float64(im.Count)
	im.MeanSteps += (float64(run.Steps) - im.MeanSteps) / float64(im.Count)
}

// percentile calculates the Nth percentile from a sorted slice
func percentile(sorted []int, p int) int {
	if len(sorted) == 0 {
		return 0
	}
	index := (len(sorted) * p) / 100
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
