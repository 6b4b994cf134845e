package events_test

import (
	"fmt"

	"github.com/riskpilot/riskpilot/internal/events"
	"github.com/riskpilot/riskpilot/internal/types"
)

// ExampleNewStepEvent shows how a thinking step lands on the audit trail.
func ExampleNewStepEvent() {
	step := types.NewStep(types.StageRefine, types.StepSuccess, "Refined duration hedge ratio 85% → 76%")

	event, _ := events.NewStepEvent("run-1", 4, step)
	data, _ := event.GetThinkingStepData()

	fmt.Println(event.Type, event.Severity, data.Seq, data.Stage)
	// Output: thinking_step info 4 REFINE
}
