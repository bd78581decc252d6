package registry

import (
	"testing"

	"github.com/QuarksBlueFoot/styxctl/internal/wire"
)

func TestBuiltinTableValidates(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("builtin registry invalid: %v", err)
	}
	if len(reg.All()) == 0 {
		t.Fatalf("builtin registry empty")
	}
}

func TestBuiltinEveryPrereqHasRecipe(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	for _, spec := range reg.All() {
		if spec.Prereq == NoPrereq {
			continue
		}
		if _, ok := reg.RecipeFor(spec.Prereq); !ok {
			t.Fatalf("%s: prerequisite %q has no recipe", spec.Name, spec.Prereq)
		}
	}
}

func TestBuiltinEveryOperationEncodesAndDecodes(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	for _, spec := range reg.All() {
		buf, err := spec.Encode(nil)
		if err != nil {
			t.Fatalf("%s: encode: %v", spec.Name, err)
		}
		env, err := wire.Decode(buf)
		if err != nil {
			t.Fatalf("%s: decode: %v", spec.Name, err)
		}
		found, ok := reg.Lookup(env)
		if !ok {
			t.Fatalf("%s: decoded envelope not found in registry", spec.Name)
		}
		if found.Name != spec.Name {
			t.Fatalf("lookup returned %q for %q", found.Name, spec.Name)
		}
	}
}

func TestBuiltinRecipeFillsEncode(t *testing.T) {
	reg, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	for _, tag := range []StateTag{TagNote, TagPool, TagProposal, TagEscrow} {
		recipe, ok := reg.RecipeFor(tag)
		if !ok {
			t.Fatalf("no recipe for %q", tag)
		}
		spec, ok := reg.Get(recipe.Op)
		if !ok {
			t.Fatalf("recipe %q names unknown op %q", tag, recipe.Op)
		}
		if _, err := spec.Encode(recipe.Fill("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")); err != nil {
			t.Fatalf("recipe %q: encode: %v", tag, err)
		}
	}
}

func TestHandleBytes(t *testing.T) {
	out := HandleBytes("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", 32)
	if len(out) != 32 {
		t.Fatalf("width: %d", len(out))
	}
	raw := HandleBytes("not-base58-0OIl", 8)
	if len(raw) != 8 {
		t.Fatalf("width: %d", len(raw))
	}
}
