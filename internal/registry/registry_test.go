package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/QuarksBlueFoot/styxctl/internal/wire"
)

func minimalSpecs() []OperationSpec {
	return []OperationSpec{
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
			Name: "use_widget", MinPayloadLen: 32, Prereq: StateTag("widget"),
			Layout: []wire.FieldDef{
				{Name: "widget", Kind: wire.FieldBlob, Width: 32},
			},
		},
	}
}

func minimalRecipes() []Recipe {
	return []Recipe{
		{
			Tag: StateTag("widget"), Op: "create_widget",
			Fill: func(string) []wire.FieldValue {
				return []wire.FieldValue{{Name: "amount", Uint: 1}}
			},
		},
	}
}

func TestNewAcceptsConsistentTable(t *testing.T) {
	reg, err := New(minimalSpecs(), minimalRecipes())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := len(reg.All()); got != 2 {
		t.Fatalf("all: got %d specs", got)
	}
}

func TestNewRejectsReservedCompactDomain(t *testing.T) {
	for _, domain := range []uint8{0x00, 0xFE, 0xFF} {
		specs := minimalSpecs()
		specs[0].Domain = domain
		_, err := New(specs, minimalRecipes())
		var specErr *SpecError
		if !errors.As(err, &specErr) {
			t.Fatalf("domain 0x%02X: expected SpecError, got %v", domain, err)
		}
		if !strings.Contains(specErr.Error(), "reserved discriminator") {
			t.Fatalf("domain 0x%02X: %v", domain, specErr)
		}
	}
}

func TestNewRejectsUnsatisfiableMinLength(t *testing.T) {
	specs := minimalSpecs()
	// Fixed layout yields 40 bytes; declaring 41 can never be met.
	specs[0].MinPayloadLen = 41
	_, err := New(specs, minimalRecipes())
	var specErr *SpecError
	if !errors.As(err, &specErr) {
		t.Fatalf("expected SpecError, got %v", err)
	}
}

func TestNewAllowsHigherMinWithVariableField(t *testing.T) {
	specs := minimalSpecs()
	specs[0].Layout = append(specs[0].Layout, wire.FieldDef{Name: "memo", Kind: wire.FieldVarBlob16})
	specs[0].MinPayloadLen = 60
	if _, err := New(specs, minimalRecipes()); err != nil {
		t.Fatalf("variable layout rejected: %v", err)
	}
}

func TestNewRejectsDuplicateSelectors(t *testing.T) {
	specs := minimalSpecs()
	specs[1].Domain = specs[0].Domain
	specs[1].Opcode = specs[0].Opcode
	_, err := New(specs, minimalRecipes())
	var specErr *SpecError
	if !errors.As(err, &specErr) {
		t.Fatalf("expected SpecError, got %v", err)
	}
	if !strings.Contains(specErr.Error(), "collides") {
		t.Fatalf("unexpected problems: %v", specErr)
	}
}

func TestNewRejectsPrereqWithoutRecipe(t *testing.T) {
	_, err := New(minimalSpecs(), nil)
	var specErr *SpecError
	if !errors.As(err, &specErr) {
		t.Fatalf("expected SpecError, got %v", err)
	}
	if !strings.Contains(specErr.Error(), "no creation recipe") {
		t.Fatalf("unexpected problems: %v", specErr)
	}
}

func TestNewRejectsRecipeForUnknownOperation(t *testing.T) {
	recipes := minimalRecipes()
	recipes[0].Op = "no_such_op"
	_, err := New(minimalSpecs(), recipes)
	var specErr *SpecError
	if !errors.As(err, &specErr) {
		t.Fatalf("expected SpecError, got %v", err)
	}
}

func TestLookupByDecodedEnvelope(t *testing.T) {
	reg, err := New(minimalSpecs(), minimalRecipes())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	spec, _ := reg.Get("create_widget")
	buf, err := spec.Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := wire.Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	found, ok := reg.Lookup(env)
	if !ok || found.Name != "create_widget" {
		t.Fatalf("lookup: ok=%v name=%q", ok, found.Name)
	}
	if _, ok := reg.Lookup(wire.Envelope{Tier: wire.TierCompact, Domain: 0x77, Opcode: 0x01}); ok {
		t.Fatalf("lookup of unknown selector succeeded")
	}
}

func TestEncodeNeverUndercutsMinPayloadLen(t *testing.T) {
	specs := minimalSpecs()
	specs[0].Layout = append(specs[0].Layout, wire.FieldDef{Name: "memo", Kind: wire.FieldVarBlob16})
	specs[0].MinPayloadLen = 60
	reg, err := New(specs, minimalRecipes())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	spec, _ := reg.Get("create_widget")
	buf, err := spec.Encode(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if payload := len(buf) - wire.CompactHeaderLen; payload < spec.MinPayloadLen {
		t.Fatalf("payload %d below declared minimum %d", payload, spec.MinPayloadLen)
	}
}

func TestAllOrderIsStable(t *testing.T) {
	reg, err := New(minimalSpecs(), minimalRecipes())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	first := reg.All()
	second := reg.All()
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Fatalf("order changed at %d: %q vs %q", i, first[i].Name, second[i].Name)
		}
	}
}
