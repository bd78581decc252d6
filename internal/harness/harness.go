// Package harness drives conformance runs against the Styx program:
// ordered multi-step flows sharing mutable context, and exhaustive
// sweeps over the full operation registry. The harness owns the
// outcome log and is the only component that classifies results.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/QuarksBlueFoot/styxctl/internal/observability"
	"github.com/QuarksBlueFoot/styxctl/internal/registry"
	"github.com/QuarksBlueFoot/styxctl/internal/resolver"
	"github.com/QuarksBlueFoot/styxctl/internal/submit"
	"github.com/QuarksBlueFoot/styxctl/internal/wire"
)

// RunState is the run lifecycle: NotStarted -> Running -> Completed.
type RunState int

const (
	StateNotStarted RunState = iota
	StateRunning
	StateCompleted
)

func (s RunState) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Submitter is the slice of the transaction submitter the harness
// drives.
type Submitter interface {
	Submit(ctx context.Context, payload []byte, signer submit.Signer) (submit.Result, error)
}

// Resolver pre-materializes prerequisite state for sweep entries. It
// is optional: a nil resolver exercises operations against absent
// state, which the classifier then treats as expected failures.
type Resolver interface {
	Resolve(ctx context.Context, tag registry.StateTag) (resolver.MaterializedState, error)
}

// Options tunes a run.
type Options struct {
	Classifier    Classifier
	SweepDelay    time.Duration
	ParallelFlows bool
	Logger        zerolog.Logger
}

// Orchestrator drives flows and sweeps and owns the outcome log.
type Orchestrator struct {
	reg      *registry.Registry
	res      Resolver
	sub      Submitter
	signer   submit.Signer
	classify Classifier
	opts     Options
	log      zerolog.Logger

	mu        sync.Mutex
	state     RunState
	runID     string
	startedAt time.Time
	outcomes  []Outcome
}

func NewOrchestrator(reg *registry.Registry, res Resolver, sub Submitter, signer submit.Signer, opts Options) *Orchestrator {
	classify := opts.Classifier
	if classify == nil {
		classify = DefaultClassifier
	}
	return &Orchestrator{
		reg:      reg,
		res:      res,
		sub:      sub,
		signer:   signer,
		classify: classify,
		opts:     opts,
		log:      opts.Logger,
	}
}

// State reports the run lifecycle state.
func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Counts reports outcomes recorded so far, for live status.
func (o *Orchestrator) Counts() (total, passed, expected, unexpected int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, out := range o.outcomes {
		total++
		switch out.Class {
		case ClassPassed:
			passed++
		case ClassExpectedFailure:
			expected++
		case ClassUnexpectedFailure:
			unexpected++
		}
	}
	return
}

func (o *Orchestrator) begin() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateNotStarted {
		o.state = StateRunning
		o.runID = uuid.NewString()
		o.startedAt = time.Now()
	}
}

// Finish closes the run and returns the artifact of record.
func (o *Orchestrator) Finish() Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = StateCompleted
	report := Report{
		RunID:      o.runID,
		StartedAt:  o.startedAt,
		FinishedAt: time.Now(),
		Outcomes:   append([]Outcome(nil), o.outcomes...),
	}
	for _, out := range report.Outcomes {
		report.Total++
		switch out.Class {
		case ClassPassed:
			report.Passed++
		case ClassExpectedFailure:
			report.ExpectedFailures++
		case ClassUnexpectedFailure:
			report.UnexpectedFailures++
		}
	}
	return report
}

func (o *Orchestrator) record(out Outcome) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, out)
	o.mu.Unlock()
	observability.RecordSubmission(out.Operation, string(out.Class), out.Elapsed)
}

// submitAndClassify is the shared attempt path for flow steps and
// sweep entries.
func (o *Orchestrator) submitAndClassify(ctx context.Context, spec registry.OperationSpec, flowName string, payload []byte) (Outcome, submit.Receipt) {
	res, err := o.sub.Submit(ctx, payload, o.signer)

	out := Outcome{
		Operation: spec.Name,
		Flow:      flowName,
		Class:     o.classify(spec, err),
		Attempts:  res.Attempts,
		Elapsed:   res.Elapsed,
		At:        time.Now(),
	}
	if err != nil {
		out.Detail = truncateDetail(err.Error())
	} else {
		out.Detail = truncateDetail(res.Receipt.Detail)
	}
	o.record(out)
	return out, res.Receipt
}

// RunSweep exercises every registered operation standalone, in table
// order, with a fixed inter-submission delay as backpressure against
// the transport. Cancellation is observed between entries; an entry
// already submitted completes. Only CycleError aborts the sweep.
func (o *Orchestrator) RunSweep(ctx context.Context) error {
	o.begin()

	for i, spec := range o.reg.All() {
		if ctx.Err() != nil {
			o.log.Info().Int("remaining", len(o.reg.All())-i).Msg("sweep cancelled")
			return nil
		}
		if i > 0 && o.opts.SweepDelay > 0 {
			select {
			case <-time.After(o.opts.SweepDelay):
			case <-ctx.Done():
				return nil
			}
		}

		handle := ""
		if spec.Prereq != registry.NoPrereq && o.res != nil {
			state, err := o.res.Resolve(ctx, spec.Prereq)
			switch {
			case err == nil:
				handle = state.Handle
			default:
				var cycleErr *resolver.CycleError
				if errors.As(err, &cycleErr) {
					return err
				}
				// Resolution failed transiently; submit anyway and let
				// the classifier bucket the result.
				o.log.Warn().Str("op", spec.Name).Err(err).Msg("prerequisite unresolved before sweep entry")
			}
		}

		payload, err := minimalBuffer(spec, handle)
		if err != nil {
			o.record(Outcome{
				Operation: spec.Name,
				Class:     ClassUnexpectedFailure,
				Detail:    truncateDetail(err.Error()),
				At:        time.Now(),
			})
			continue
		}
		out, _ := o.submitAndClassify(ctx, spec, "", payload)
		o.log.Debug().Str("op", spec.Name).Str("class", string(out.Class)).Msg("sweep entry")
	}
	return nil
}

// minimalBuffer builds the smallest syntactically valid instruction
// for spec. When a prerequisite handle is known it lands in the blob
// field matching the tag name, falling back to the first 32-byte blob.
func minimalBuffer(spec registry.OperationSpec, handle string) ([]byte, error) {
	values := make([]wire.FieldValue, len(spec.Layout))
	placed := handle == ""
	for i, def := range spec.Layout {
		values[i] = wire.FieldValue{Name: def.Name}
		if placed || def.Kind != wire.FieldBlob {
			continue
		}
		if def.Name == string(spec.Prereq) || def.Width == 32 {
			values[i].Bytes = registry.HandleBytes(handle, def.Width)
			placed = true
		}
	}
	return spec.Encode(values)
}
