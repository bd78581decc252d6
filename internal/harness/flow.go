package harness

import (
	"context"
	"sync"
	"time"

	"github.com/QuarksBlueFoot/styxctl/internal/registry"
	"github.com/QuarksBlueFoot/styxctl/internal/submit"
)

// FlowContext is the mutable state one flow's steps share. Earlier
// steps write handles for later steps to consume. Each flow owns its
// own context; flows never share one.
type FlowContext map[string]string

// Step is one operation inside a flow. Build encodes the instruction,
// possibly reading prior steps' outputs from the context; After runs
// on success and may write new entries for later steps.
type Step struct {
	Name  string
	Op    string // registry operation name, for classification
	Build func(fc FlowContext) ([]byte, error)
	After func(fc FlowContext, receipt submit.Receipt)
}

// Flow is a named ordered list of steps modeling one realistic
// multi-step use of the program.
type Flow struct {
	Name  string
	Steps []Step
}

// RunFlows executes the given flows. Steps within a flow are strictly
// sequential; a failed step skips the remainder of its flow and marks
// the flow failed without touching other flows. With ParallelFlows set
// the flows themselves run concurrently.
func (o *Orchestrator) RunFlows(ctx context.Context, flows []Flow) error {
	o.begin()

	if !o.opts.ParallelFlows {
		for _, flow := range flows {
			if ctx.Err() != nil {
				return nil
			}
			o.runFlow(ctx, flow)
		}
		return nil
	}

	var wg sync.WaitGroup
	for _, flow := range flows {
		wg.Add(1)
		go func(f Flow) {
			defer wg.Done()
			o.runFlow(ctx, f)
		}(flow)
	}
	wg.Wait()
	return nil
}

func (o *Orchestrator) runFlow(ctx context.Context, flow Flow) {
	fc := make(FlowContext)
	o.log.Info().Str("flow", flow.Name).Int("steps", len(flow.Steps)).Msg("flow started")

	for _, step := range flow.Steps {
		if ctx.Err() != nil {
			return
		}
		spec, ok := o.reg.Get(step.Op)
		if !ok {
			spec = registry.OperationSpec{Name: step.Op}
		}

		payload, err := step.Build(fc)
		if err != nil {
			o.record(Outcome{
				Operation: step.Op,
				Flow:      flow.Name,
				Class:     ClassUnexpectedFailure,
				Detail:    truncateDetail(err.Error()),
				At:        time.Now(),
			})
			o.log.Warn().Str("flow", flow.Name).Str("step", step.Name).Err(err).Msg("flow failed, remaining steps skipped")
			return
		}

		out, receipt := o.submitAndClassify(ctx, spec, flow.Name, payload)
		if out.Class != ClassPassed {
			o.log.Warn().Str("flow", flow.Name).Str("step", step.Name).Str("detail", out.Detail).Msg("flow failed, remaining steps skipped")
			return
		}
		if step.After != nil {
			step.After(fc, receipt)
		}
	}
	o.log.Info().Str("flow", flow.Name).Msg("flow completed")
}
