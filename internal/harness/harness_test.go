package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/QuarksBlueFoot/styxctl/internal/registry"
	"github.com/QuarksBlueFoot/styxctl/internal/resolver"
	"github.com/QuarksBlueFoot/styxctl/internal/submit"
	"github.com/QuarksBlueFoot/styxctl/internal/testutil/testlog"
	"github.com/QuarksBlueFoot/styxctl/internal/wire"
)

// scriptedSubmitter accepts everything except operations whose compact
// header appears in reject, which fail with the given rejection.
type scriptedSubmitter struct {
	reject map[[2]byte]*submit.RejectedError
	calls  [][]byte
}

func (s *scriptedSubmitter) Submit(ctx context.Context, payload []byte, signer submit.Signer) (submit.Result, error) {
	s.calls = append(s.calls, payload)
	if len(payload) >= 2 {
		if rej, ok := s.reject[[2]byte{payload[0], payload[1]}]; ok {
			return submit.Result{Attempts: 1, Elapsed: time.Millisecond}, rej
		}
	}
	return submit.Result{
		Receipt:  submit.Receipt{Signature: "sig", Handles: map[string]string{"widget": "widget-handle"}, Detail: "accepted"},
		Attempts: 1,
		Elapsed:  time.Millisecond,
	}, nil
}

func createUseRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	specs := []registry.OperationSpec{
		{
			Tier: wire.TierCompact, Domain: 0x01, Opcode: 0x01,
			Name: "create_widget", MinPayloadLen: 40,
			Layout: []wire.FieldDef{
				{Name: "amount", Kind: wire.FieldU64},
				{Name: "owner", Kind: wire.FieldBlob, Width: 32},
			},
		},
		{
			Tier: wire.TierCompact, Domain: 0x01, Opcode: 0x02,
			Name: "use_widget", MinPayloadLen: 20, Prereq: registry.StateTag("widget"),
			Layout: []wire.FieldDef{
				{Name: "widget", Kind: wire.FieldBlob, Width: 32},
			},
		},
	}
	recipes := []registry.Recipe{
		{Tag: "widget", Op: "create_widget", Fill: func(string) []wire.FieldValue {
			return []wire.FieldValue{{Name: "amount", Uint: 1}}
		}},
	}
	reg, err := registry.New(specs, recipes)
	require.NoError(t, err)
	return reg
}

// Sweep with the resolver wired: the prerequisite is pre-materialized,
// so both the creator and the consumer pass.
func TestSweepWithResolverPassesBothOperations(t *testing.T) {
	testlog.Start(t)
	reg := createUseRegistry(t)
	sub := &scriptedSubmitter{}
	res := resolver.New(reg, sub, submit.Signer{}, zerolog.Nop())
	orch := NewOrchestrator(reg, res, sub, submit.Signer{}, Options{Logger: zerolog.Nop()})

	require.NoError(t, orch.RunSweep(context.Background()))
	report := orch.Finish()

	require.Equal(t, 2, report.Total)
	require.Equal(t, 2, report.Passed)
	require.Empty(t, report.Unexpected())
	for _, out := range report.Outcomes {
		require.Equal(t, ClassPassed, out.Class, out.Operation)
	}
}

// Sweep with the resolver disabled: the consumer fails with a missing
// state rejection, which must classify as expected, not unexpected.
func TestSweepWithoutResolverClassifiesExpectedFailure(t *testing.T) {
	testlog.Start(t)
	reg := createUseRegistry(t)
	sub := &scriptedSubmitter{
		reject: map[[2]byte]*submit.RejectedError{
			{0x01, 0x02}: {Code: 3012, Message: "referenced state not found"},
		},
	}
	orch := NewOrchestrator(reg, nil, sub, submit.Signer{}, Options{Logger: zerolog.Nop()})

	require.NoError(t, orch.RunSweep(context.Background()))
	report := orch.Finish()

	require.Equal(t, 2, report.Total)
	require.Equal(t, 1, report.Passed)
	require.Equal(t, 1, report.ExpectedFailures)
	require.Equal(t, 0, report.UnexpectedFailures)
}

// A failed step skips the rest of its flow: the outcome log holds
// exactly the failed step and nothing after it.
func TestFlowFailureSkipsRemainingSteps(t *testing.T) {
	testlog.Start(t)
	reg := createUseRegistry(t)
	sub := &scriptedSubmitter{
		reject: map[[2]byte]*submit.RejectedError{
			{0x01, 0x01}: {Code: 1, Message: "arbitrary refusal"},
		},
	}
	orch := NewOrchestrator(reg, nil, sub, submit.Signer{}, Options{Logger: zerolog.Nop()})

	stepBRan := false
	flow := Flow{
		Name: "widget-flow",
		Steps: []Step{
			{
				Name: "create", Op: "create_widget",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "create_widget", nil)
				},
				After: captureHandle("widget"),
			},
			{
				Name: "use", Op: "use_widget",
				Build: func(fc FlowContext) ([]byte, error) {
					stepBRan = true
					return encodeOp(reg, "use_widget", []wire.FieldValue{
						{Name: "widget", Bytes: registry.HandleBytes(fc["widget"], 32)},
					})
				},
			},
		},
	}

	require.NoError(t, orch.RunFlows(context.Background(), []Flow{flow}))
	report := orch.Finish()

	require.False(t, stepBRan, "step B must not be attempted")
	require.Len(t, report.Outcomes, 1)
	require.Equal(t, "create_widget", report.Outcomes[0].Operation)
	require.Equal(t, ClassUnexpectedFailure, report.Outcomes[0].Class)
}

// Flow context carries handles from step to step.
func TestFlowContextPassesHandles(t *testing.T) {
	testlog.Start(t)
	reg := createUseRegistry(t)
	sub := &scriptedSubmitter{}
	orch := NewOrchestrator(reg, nil, sub, submit.Signer{}, Options{Logger: zerolog.Nop()})

	var seenHandle string
	flow := Flow{
		Name: "widget-flow",
		Steps: []Step{
			{
				Name: "create", Op: "create_widget",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "create_widget", nil)
				},
				After: captureHandle("widget"),
			},
			{
				Name: "use", Op: "use_widget",
				Build: func(fc FlowContext) ([]byte, error) {
					seenHandle = fc["widget"]
					return encodeOp(reg, "use_widget", []wire.FieldValue{
						{Name: "widget", Bytes: registry.HandleBytes(fc["widget"], 32)},
					})
				},
			},
		},
	}

	require.NoError(t, orch.RunFlows(context.Background(), []Flow{flow}))
	report := orch.Finish()

	require.Equal(t, "widget-handle", seenHandle)
	require.Equal(t, 2, report.Passed)
}

// retryTransport fails with transport errors N times, then accepts.
type retryTransport struct {
	failures int
	calls    int
}

func (r *retryTransport) Submit(ctx context.Context, payload []byte, signer submit.Signer) (submit.Receipt, error) {
	r.calls++
	if r.calls <= r.failures {
		return submit.Receipt{}, &submit.TransportError{Op: "post", Err: errors.New("connection reset")}
	}
	return submit.Receipt{Signature: "sig", Detail: "accepted"}, nil
}

// Two transport failures followed by success within a budget of three
// attempts: the outcome passes and its timing spans all attempts.
func TestTransientTransportFailureRecoversWithinBudget(t *testing.T) {
	testlog.Start(t)
	reg := createUseRegistry(t)
	transport := &retryTransport{failures: 2}
	cfg := submit.Config{
		MaxAttempts:    3,
		AttemptTimeout: time.Second,
		Backoff:        submit.BackoffConfig{InitialDelay: 2 * time.Millisecond, Multiplier: 2.0, MaxDelay: 10 * time.Millisecond},
	}
	sub := submit.New(transport, cfg, zerolog.Nop())
	res := resolver.New(reg, sub, submit.Signer{}, zerolog.Nop())
	orch := NewOrchestrator(reg, res, sub, submit.Signer{}, Options{Logger: zerolog.Nop()})

	spec, ok := reg.Get("create_widget")
	require.True(t, ok)
	payload, err := spec.Encode(nil)
	require.NoError(t, err)

	out, _ := orch.submitAndClassify(context.Background(), spec, "", payload)
	require.Equal(t, ClassPassed, out.Class)
	require.Equal(t, 3, out.Attempts)
	require.GreaterOrEqual(t, out.Elapsed, 4*time.Millisecond, "elapsed must include backoff between all attempts")
	require.Equal(t, 3, transport.calls)
}

// Cancellation between sweep entries stops the run; outcomes already
// recorded remain valid.
func TestSweepObservesCancellation(t *testing.T) {
	testlog.Start(t)
	reg := createUseRegistry(t)
	sub := &scriptedSubmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := NewOrchestrator(reg, nil, sub, submit.Signer{}, Options{Logger: zerolog.Nop()})
	require.NoError(t, orch.RunSweep(ctx))
	report := orch.Finish()
	require.Zero(t, report.Total)
	require.Empty(t, sub.calls)
}

func TestRunStateMachine(t *testing.T) {
	testlog.Start(t)
	reg := createUseRegistry(t)
	orch := NewOrchestrator(reg, nil, &scriptedSubmitter{}, submit.Signer{}, Options{Logger: zerolog.Nop()})

	require.Equal(t, StateNotStarted, orch.State())
	require.NoError(t, orch.RunSweep(context.Background()))
	require.Equal(t, StateRunning, orch.State())
	report := orch.Finish()
	require.Equal(t, StateCompleted, orch.State())
	require.NotEmpty(t, report.RunID)
	require.False(t, report.FinishedAt.Before(report.StartedAt))
}

func TestBuiltinFlowsRunCleanAgainstAcceptingProgram(t *testing.T) {
	testlog.Start(t)
	reg, err := registry.Builtin()
	require.NoError(t, err)
	sub := &scriptedSubmitter{}
	orch := NewOrchestrator(reg, nil, sub, submit.Signer{}, Options{Logger: zerolog.Nop()})

	flows := BuiltinFlows(reg)
	require.NotEmpty(t, flows)
	require.NoError(t, orch.RunFlows(context.Background(), flows))
	report := orch.Finish()
	require.Equal(t, report.Total, report.Passed, "all builtin flow steps should pass: %+v", report.Unexpected())
}
