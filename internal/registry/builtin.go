package registry

import (
	"github.com/QuarksBlueFoot/styxctl/internal/wire"
)

// Styx compact domains.
const (
	DomainNotes     uint8 = 0x01
	DomainPools     uint8 = 0x02
	DomainProposals uint8 = 0x03
	DomainEscrow    uint8 = 0x04
	DomainAdmin     uint8 = 0x05
)

// State tags the builtin table depends on.
const (
	TagNote     StateTag = "note"
	TagPool     StateTag = "pool"
	TagProposal StateTag = "proposal"
	TagEscrow   StateTag = "escrow"
)

// Namespace prefixes extended-tier selector names.
const Namespace = "styx"

// migrationSchema is the out-of-band schema document for the
// schema-tier ledger migration operation.
var migrationSchema = []byte(`{"name":"migrate_ledger","version":2,"fields":["epoch","checkpoint_root","entries"]}`)

func owner32() wire.FieldDef {
	return wire.FieldDef{Name: "owner", Kind: wire.FieldBlob, Width: 32}
}

func handle32(n string) wire.FieldDef {
	return wire.FieldDef{Name: n, Kind: wire.FieldBlob, Width: 32}
}

// Builtin returns the full Styx operation surface and its creation
// recipes. Callers get a validated registry or a SpecError.
func Builtin() (*Registry, error) {
	return New(builtinSpecs(), builtinRecipes())
}

func builtinSpecs() []OperationSpec {
	return []OperationSpec{
		// Notes: private value records spent via nullifiers.
		{
			Tier: wire.TierCompact, Domain: DomainNotes, Opcode: 0x01,
			Name: "mint_note", MinPayloadLen: 40,
			Layout: []wire.FieldDef{
				{Name: "amount", Kind: wire.FieldU64},
				owner32(),
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainNotes, Opcode: 0x02,
			Name: "transfer_note", MinPayloadLen: 72, Prereq: TagNote,
			Layout: []wire.FieldDef{
				handle32("note"),
				{Name: "recipient", Kind: wire.FieldBlob, Width: 32},
				{Name: "amount", Kind: wire.FieldU64},
				{Name: "memo", Kind: wire.FieldVarBlob16},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainNotes, Opcode: 0x03,
			Name: "burn_note", MinPayloadLen: 64, Prereq: TagNote,
			Layout: []wire.FieldDef{
				handle32("note"),
				{Name: "nullifier", Kind: wire.FieldBlob, Width: 32},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainNotes, Opcode: 0x04,
			Name: "split_note", MinPayloadLen: 48, Prereq: TagNote,
			Layout: []wire.FieldDef{
				handle32("note"),
				{Name: "left_amount", Kind: wire.FieldU64},
				{Name: "right_amount", Kind: wire.FieldU64},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainNotes, Opcode: 0x05,
			Name: "merge_notes", MinPayloadLen: 64, Prereq: TagNote,
			Layout: []wire.FieldDef{
				handle32("left"),
				handle32("right"),
			},
		},

		// Pools: shared liquidity objects.
		{
			Tier: wire.TierCompact, Domain: DomainPools, Opcode: 0x01,
			Name: "init_pool", MinPayloadLen: 41,
			Layout: []wire.FieldDef{
				{Name: "authority", Kind: wire.FieldBlob, Width: 32},
				{Name: "fee_bps", Kind: wire.FieldU64},
				{Name: "flags", Kind: wire.FieldU8},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainPools, Opcode: 0x02,
			Name: "deposit", MinPayloadLen: 40, Prereq: TagPool,
			Layout: []wire.FieldDef{
				handle32("pool"),
				{Name: "amount", Kind: wire.FieldU64},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainPools, Opcode: 0x03,
			Name: "withdraw", MinPayloadLen: 40, Prereq: TagPool,
			Layout: []wire.FieldDef{
				handle32("pool"),
				{Name: "amount", Kind: wire.FieldU64},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainPools, Opcode: 0x04,
			Name: "swap", MinPayloadLen: 49, Prereq: TagPool,
			Layout: []wire.FieldDef{
				handle32("pool"),
				{Name: "amount_in", Kind: wire.FieldU64},
				{Name: "min_amount_out", Kind: wire.FieldU64},
				{Name: "direction", Kind: wire.FieldU8},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainPools, Opcode: 0x05,
			Name: "collect_fees", MinPayloadLen: 32, Prereq: TagPool,
			Layout: []wire.FieldDef{
				handle32("pool"),
			},
		},

		// Proposals: governance over a pool.
		{
			Tier: wire.TierCompact, Domain: DomainProposals, Opcode: 0x01,
			Name: "create_proposal", MinPayloadLen: 42, Prereq: TagPool,
			Layout: []wire.FieldDef{
				handle32("pool"),
				{Name: "kind", Kind: wire.FieldU16},
				{Name: "voting_slots", Kind: wire.FieldU64},
				{Name: "description", Kind: wire.FieldVarBlob16},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainProposals, Opcode: 0x02,
			Name: "cast_vote", MinPayloadLen: 41, Prereq: TagProposal,
			Layout: []wire.FieldDef{
				handle32("proposal"),
				{Name: "weight", Kind: wire.FieldU64},
				{Name: "side", Kind: wire.FieldU8},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainProposals, Opcode: 0x03,
			Name: "finalize_proposal", MinPayloadLen: 32, Prereq: TagProposal,
			Layout: []wire.FieldDef{
				handle32("proposal"),
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainProposals, Opcode: 0x04,
			Name: "cancel_proposal", MinPayloadLen: 32, Prereq: TagProposal,
			Layout: []wire.FieldDef{
				handle32("proposal"),
			},
		},

		// Escrow: two-party settlement over a note.
		{
			Tier: wire.TierCompact, Domain: DomainEscrow, Opcode: 0x01,
			Name: "open_escrow", MinPayloadLen: 72, Prereq: TagNote,
			Layout: []wire.FieldDef{
				handle32("note"),
				{Name: "counterparty", Kind: wire.FieldBlob, Width: 32},
				{Name: "expiry_slot", Kind: wire.FieldU64},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainEscrow, Opcode: 0x02,
			Name: "fund_escrow", MinPayloadLen: 40, Prereq: TagEscrow,
			Layout: []wire.FieldDef{
				handle32("escrow"),
				{Name: "amount", Kind: wire.FieldU64},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainEscrow, Opcode: 0x03,
			Name: "release_escrow", MinPayloadLen: 32, Prereq: TagEscrow,
			Layout: []wire.FieldDef{
				handle32("escrow"),
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainEscrow, Opcode: 0x04,
			Name: "cancel_escrow", MinPayloadLen: 32, Prereq: TagEscrow,
			Layout: []wire.FieldDef{
				handle32("escrow"),
			},
		},

		// Admin.
		{
			Tier: wire.TierCompact, Domain: DomainAdmin, Opcode: 0x01,
			Name: "set_authority", MinPayloadLen: 64,
			Layout: []wire.FieldDef{
				{Name: "current", Kind: wire.FieldBlob, Width: 32},
				{Name: "next", Kind: wire.FieldBlob, Width: 32},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainAdmin, Opcode: 0x02,
			Name: "pause", MinPayloadLen: 1,
			Layout: []wire.FieldDef{
				{Name: "scope", Kind: wire.FieldU8},
			},
		},
		{
			Tier: wire.TierCompact, Domain: DomainAdmin, Opcode: 0x03,
			Name: "resume", MinPayloadLen: 1,
			Layout: []wire.FieldDef{
				{Name: "scope", Kind: wire.FieldU8},
			},
		},

		// Extended tier: symbolically addressed operations.
		{
			Tier:     wire.TierExtended,
			Selector: wire.NameSelector(Namespace, "compress_note_batch"),
			Name:     "compress_note_batch", MinPayloadLen: 36, Prereq: TagNote,
			Layout: []wire.FieldDef{
				handle32("note"),
				{Name: "batch", Kind: wire.FieldVarBlob32},
			},
		},
		{
			Tier:     wire.TierExtended,
			Selector: wire.NameSelector(Namespace, "verify_commitment_proof"),
			Name:     "verify_commitment_proof", MinPayloadLen: 36,
			Layout: []wire.FieldDef{
				{Name: "commitment", Kind: wire.FieldBlob, Width: 32},
				{Name: "proof", Kind: wire.FieldVarBlob32},
			},
		},

		// TLV tier: opaque, forward-compatible extension channel. The
		// program interprets the bytes; the registry only carries the
		// addressing and the lower bound.
		{
			Tier:    wire.TierTLV,
			ExtType: 0x01,
			Name:    "vendor_extension", MinPayloadLen: 0,
			Layout: []wire.FieldDef{},
		},

		// Schema tier: layout defined by an out-of-band document.
		{
			Tier:       wire.TierSchema,
			SchemaHash: wire.DocumentHash(migrationSchema),
			Name:       "migrate_ledger", MinPayloadLen: 40,
			Layout: []wire.FieldDef{
				{Name: "epoch", Kind: wire.FieldU64},
				{Name: "checkpoint_root", Kind: wire.FieldBlob, Width: 32},
				{Name: "entries", Kind: wire.FieldVarBlob32},
			},
		},
	}
}

func builtinRecipes() []Recipe {
	return []Recipe{
		{
			Tag: TagNote, Op: "mint_note",
			Fill: func(string) []wire.FieldValue {
				return []wire.FieldValue{
					{Name: "amount", Uint: 1_000_000},
					{Name: "owner", Bytes: defaultOwner()},
				}
			},
		},
		{
			Tag: TagPool, Op: "init_pool",
			Fill: func(string) []wire.FieldValue {
				return []wire.FieldValue{
					{Name: "authority", Bytes: defaultOwner()},
					{Name: "fee_bps", Uint: 30},
					{Name: "flags", Uint: 0},
				}
			},
		},
		{
			Tag: TagProposal, Op: "create_proposal",
			Fill: func(pool string) []wire.FieldValue {
				return []wire.FieldValue{
					{Name: "pool", Bytes: HandleBytes(pool, 32)},
					{Name: "kind", Uint: 1},
					{Name: "voting_slots", Uint: 600},
					{Name: "description", Bytes: []byte("conformance proposal")},
				}
			},
		},
		{
			Tag: TagEscrow, Op: "open_escrow",
			Fill: func(note string) []wire.FieldValue {
				return []wire.FieldValue{
					{Name: "note", Bytes: HandleBytes(note, 32)},
					{Name: "counterparty", Bytes: defaultOwner()},
					{Name: "expiry_slot", Uint: 10_000},
				}
			},
		},
	}
}

// defaultOwner is the fixed conformance signer placeholder address.
func defaultOwner() []byte {
	owner := make([]byte, 32)
	for i := range owner {
		owner[i] = 0x11
	}
	return owner
}
