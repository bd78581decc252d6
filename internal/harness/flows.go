package harness

import (
	"fmt"

	"github.com/QuarksBlueFoot/styxctl/internal/registry"
	"github.com/QuarksBlueFoot/styxctl/internal/submit"
	"github.com/QuarksBlueFoot/styxctl/internal/wire"
)

// BuiltinFlows returns the standard multi-step conformance scenarios
// over the builtin registry. Each flow mints its own state in early
// steps and consumes it in later ones through the flow context.
func BuiltinFlows(reg *registry.Registry) []Flow {
	return []Flow{
		noteLifecycleFlow(reg),
		poolTradingFlow(reg),
		escrowSettlementFlow(reg),
		governanceFlow(reg),
	}
}

// encodeOp renders one operation through the registry, failing the
// step if the operation is unknown.
func encodeOp(reg *registry.Registry, name string, values []wire.FieldValue) ([]byte, error) {
	spec, ok := reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("harness: unknown operation %q", name)
	}
	return spec.Encode(values)
}

// captureHandle stores the receipt handle for key, falling back to the
// transaction signature when the program returned no named handle.
func captureHandle(key string) func(fc FlowContext, receipt submit.Receipt) {
	return func(fc FlowContext, receipt submit.Receipt) {
		handle := receipt.Handles[key]
		if handle == "" {
			handle = receipt.Signature
		}
		fc[key] = handle
	}
}

func noteLifecycleFlow(reg *registry.Registry) Flow {
	return Flow{
		Name: "note-lifecycle",
		Steps: []Step{
			{
				Name: "mint", Op: "mint_note",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "mint_note", []wire.FieldValue{
						{Name: "amount", Uint: 250_000},
						{Name: "owner", Bytes: registry.HandleBytes("conformance-owner", 32)},
					})
				},
				After: captureHandle("note"),
			},
			{
				Name: "transfer", Op: "transfer_note",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "transfer_note", []wire.FieldValue{
						{Name: "note", Bytes: registry.HandleBytes(fc["note"], 32)},
						{Name: "recipient", Bytes: registry.HandleBytes("conformance-recipient", 32)},
						{Name: "amount", Uint: 100_000},
						{Name: "memo", Bytes: []byte("flow transfer")},
					})
				},
			},
			{
				Name: "burn", Op: "burn_note",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "burn_note", []wire.FieldValue{
						{Name: "note", Bytes: registry.HandleBytes(fc["note"], 32)},
						{Name: "nullifier", Bytes: registry.HandleBytes("flow-nullifier", 32)},
					})
				},
			},
		},
	}
}

func poolTradingFlow(reg *registry.Registry) Flow {
	return Flow{
		Name: "pool-trading",
		Steps: []Step{
			{
				Name: "init", Op: "init_pool",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "init_pool", []wire.FieldValue{
						{Name: "authority", Bytes: registry.HandleBytes("conformance-owner", 32)},
						{Name: "fee_bps", Uint: 30},
					})
				},
				After: captureHandle("pool"),
			},
			{
				Name: "deposit", Op: "deposit",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "deposit", []wire.FieldValue{
						{Name: "pool", Bytes: registry.HandleBytes(fc["pool"], 32)},
						{Name: "amount", Uint: 500_000},
					})
				},
			},
			{
				Name: "swap", Op: "swap",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "swap", []wire.FieldValue{
						{Name: "pool", Bytes: registry.HandleBytes(fc["pool"], 32)},
						{Name: "amount_in", Uint: 10_000},
						{Name: "min_amount_out", Uint: 9_000},
						{Name: "direction", Uint: 1},
					})
				},
			},
			{
				Name: "withdraw", Op: "withdraw",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "withdraw", []wire.FieldValue{
						{Name: "pool", Bytes: registry.HandleBytes(fc["pool"], 32)},
						{Name: "amount", Uint: 400_000},
					})
				},
			},
		},
	}
}

func escrowSettlementFlow(reg *registry.Registry) Flow {
	return Flow{
		Name: "escrow-settlement",
		Steps: []Step{
			{
				Name: "mint", Op: "mint_note",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "mint_note", []wire.FieldValue{
						{Name: "amount", Uint: 750_000},
						{Name: "owner", Bytes: registry.HandleBytes("conformance-owner", 32)},
					})
				},
				After: captureHandle("note"),
			},
			{
				Name: "open", Op: "open_escrow",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "open_escrow", []wire.FieldValue{
						{Name: "note", Bytes: registry.HandleBytes(fc["note"], 32)},
						{Name: "counterparty", Bytes: registry.HandleBytes("conformance-recipient", 32)},
						{Name: "expiry_slot", Uint: 50_000},
					})
				},
				After: captureHandle("escrow"),
			},
			{
				Name: "fund", Op: "fund_escrow",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "fund_escrow", []wire.FieldValue{
						{Name: "escrow", Bytes: registry.HandleBytes(fc["escrow"], 32)},
						{Name: "amount", Uint: 750_000},
					})
				},
			},
			{
				Name: "release", Op: "release_escrow",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "release_escrow", []wire.FieldValue{
						{Name: "escrow", Bytes: registry.HandleBytes(fc["escrow"], 32)},
					})
				},
			},
		},
	}
}

func governanceFlow(reg *registry.Registry) Flow {
	return Flow{
		Name: "governance",
		Steps: []Step{
			{
				Name: "init-pool", Op: "init_pool",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "init_pool", []wire.FieldValue{
						{Name: "authority", Bytes: registry.HandleBytes("conformance-owner", 32)},
						{Name: "fee_bps", Uint: 10},
					})
				},
				After: captureHandle("pool"),
			},
			{
				Name: "propose", Op: "create_proposal",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "create_proposal", []wire.FieldValue{
						{Name: "pool", Bytes: registry.HandleBytes(fc["pool"], 32)},
						{Name: "kind", Uint: 2},
						{Name: "voting_slots", Uint: 1200},
						{Name: "description", Bytes: []byte("raise fee to 40bps")},
					})
				},
				After: captureHandle("proposal"),
			},
			{
				Name: "vote", Op: "cast_vote",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "cast_vote", []wire.FieldValue{
						{Name: "proposal", Bytes: registry.HandleBytes(fc["proposal"], 32)},
						{Name: "weight", Uint: 1_000},
						{Name: "side", Uint: 1},
					})
				},
			},
			{
				Name: "finalize", Op: "finalize_proposal",
				Build: func(fc FlowContext) ([]byte, error) {
					return encodeOp(reg, "finalize_proposal", []wire.FieldValue{
						{Name: "proposal", Bytes: registry.HandleBytes(fc["proposal"], 32)},
					})
				},
			},
		},
	}
}
