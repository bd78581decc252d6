// Package registry holds the static table of every operation the Styx
// program exposes, validated once at load, plus the creation recipes
// that map prerequisite state tags to the operations that mint them.
package registry

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/QuarksBlueFoot/styxctl/internal/wire"
)

// StateTag names a category of on-ledger object an operation consumes.
// The empty tag means no prerequisite.
type StateTag string

const NoPrereq StateTag = ""

// OperationSpec describes one logical operation: where it lives in the
// discriminator space, how its payload is laid out, and what state must
// exist before it can be legally exercised.
type OperationSpec struct {
	Tier   wire.Tier
	Domain uint8
	Opcode uint8

	// Selector addresses extended-tier operations.
	Selector [wire.SelectorLen]byte

	// ExtType addresses TLV-tier operations.
	ExtType uint8

	// SchemaHash addresses schema-tier operations.
	SchemaHash [wire.SchemaHashLen]byte

	Name          string
	MinPayloadLen int
	Layout        []wire.FieldDef
	Prereq        StateTag
}

// Envelope builds the wire envelope for this operation around payload.
func (s OperationSpec) Envelope(payload []byte) wire.Envelope {
	env := wire.Envelope{Tier: s.Tier, Payload: payload}
	switch s.Tier {
	case wire.TierCompact:
		env.Domain = s.Domain
		env.Opcode = s.Opcode
	case wire.TierExtended:
		env.Selector = s.Selector
	case wire.TierTLV:
		env.ExtType = s.ExtType
	case wire.TierSchema:
		env.SchemaHash = s.SchemaHash
	}
	return env
}

// Encode renders values through the spec's layout and wraps the result
// in the tier header. The payload is zero-padded up to MinPayloadLen,
// so the returned buffer never undercuts the receiving side's bound.
func (s OperationSpec) Encode(values []wire.FieldValue) ([]byte, error) {
	payload, err := wire.WriteFields(s.Layout, values)
	if err != nil {
		return nil, fmt.Errorf("registry: encode %s: %w", s.Name, err)
	}
	if len(payload) < s.MinPayloadLen {
		padded := make([]byte, s.MinPayloadLen)
		copy(padded, payload)
		payload = padded
	}
	return wire.Encode(s.Envelope(payload))
}

func (s OperationSpec) key() string {
	switch s.Tier {
	case wire.TierCompact:
		return fmt.Sprintf("c:%02x:%02x", s.Domain, s.Opcode)
	case wire.TierExtended:
		return "e:" + hex.EncodeToString(s.Selector[:])
	case wire.TierTLV:
		return fmt.Sprintf("t:%02x", s.ExtType)
	case wire.TierSchema:
		return "s:" + hex.EncodeToString(s.SchemaHash[:])
	default:
		return fmt.Sprintf("?:%d", s.Tier)
	}
}

// hasVarField reports whether the layout can grow past its fixed widths.
func hasVarField(layout []wire.FieldDef) bool {
	for _, def := range layout {
		if def.Kind == wire.FieldVarBlob16 || def.Kind == wire.FieldVarBlob32 {
			return true
		}
	}
	return false
}

// FillFunc deterministically populates a creation operation's fields.
// parentHandle is the handle of the recipe's own prerequisite, empty
// when the recipe has none.
type FillFunc func(parentHandle string) []wire.FieldValue

// Recipe maps one StateTag to the operation that creates it.
type Recipe struct {
	Tag  StateTag
	Op   string // OperationSpec.Name
	Fill FillFunc
}

// SpecError reports every inconsistency found at registry load. A
// registry that produced one never serves lookups.
type SpecError struct {
	Problems []string
}

func (e *SpecError) Error() string {
	return "registry: invalid spec table: " + strings.Join(e.Problems, "; ")
}

// Registry is the process-wide operation table, immutable after New.
type Registry struct {
	specs   []OperationSpec
	byKey   map[string]int
	byName  map[string]int
	recipes map[StateTag]Recipe
}

// New validates specs and recipes and builds the registry. Validation
// failures are collected into a single SpecError rather than reported
// one at a time.
func New(specs []OperationSpec, recipes []Recipe) (*Registry, error) {
	var problems []string

	byKey := make(map[string]int, len(specs))
	byName := make(map[string]int, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			problems = append(problems, fmt.Sprintf("spec[%d] missing name", i))
			continue
		}
		if spec.Tier == wire.TierCompact && wire.Reserved(spec.Domain) {
			problems = append(problems, fmt.Sprintf("%s: compact domain 0x%02X is a reserved discriminator", spec.Name, spec.Domain))
		}
		if err := wire.ValidateLayout(spec.Layout); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", spec.Name, err))
		}
		if spec.MinPayloadLen < 0 {
			problems = append(problems, fmt.Sprintf("%s: negative min payload length", spec.Name))
		}
		// A fixed layout produces exactly its fixed width; a declared
		// minimum above that can never be satisfied.
		if !hasVarField(spec.Layout) && wire.MinLayoutLen(spec.Layout) < spec.MinPayloadLen {
			problems = append(problems, fmt.Sprintf("%s: layout yields %d bytes, below declared minimum %d",
				spec.Name, wire.MinLayoutLen(spec.Layout), spec.MinPayloadLen))
		}
		if prev, dup := byKey[spec.key()]; dup {
			problems = append(problems, fmt.Sprintf("%s: selector collides with %s", spec.Name, specs[prev].Name))
		} else {
			byKey[spec.key()] = i
		}
		if _, dup := byName[spec.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate operation name %q", spec.Name))
		} else {
			byName[spec.Name] = i
		}
	}

	recipeByTag := make(map[StateTag]Recipe, len(recipes))
	for _, recipe := range recipes {
		if recipe.Tag == NoPrereq {
			problems = append(problems, "recipe with empty tag")
			continue
		}
		if _, dup := recipeByTag[recipe.Tag]; dup {
			problems = append(problems, fmt.Sprintf("duplicate recipe for tag %q", recipe.Tag))
			continue
		}
		if _, ok := byName[recipe.Op]; !ok {
			problems = append(problems, fmt.Sprintf("recipe %q names unknown operation %q", recipe.Tag, recipe.Op))
			continue
		}
		if recipe.Fill == nil {
			problems = append(problems, fmt.Sprintf("recipe %q missing fill", recipe.Tag))
			continue
		}
		recipeByTag[recipe.Tag] = recipe
	}

	// Every declared prerequisite needs exactly one creation recipe.
	for _, spec := range specs {
		if spec.Prereq == NoPrereq {
			continue
		}
		if _, ok := recipeByTag[spec.Prereq]; !ok {
			problems = append(problems, fmt.Sprintf("%s: prerequisite %q has no creation recipe", spec.Name, spec.Prereq))
		}
	}

	if len(problems) > 0 {
		return nil, &SpecError{Problems: problems}
	}

	return &Registry{
		specs:   append([]OperationSpec(nil), specs...),
		byKey:   byKey,
		byName:  byName,
		recipes: recipeByTag,
	}, nil
}

// Lookup finds the spec addressed by a decoded envelope.
func (r *Registry) Lookup(env wire.Envelope) (OperationSpec, bool) {
	probe := OperationSpec{
		Tier:       env.Tier,
		Domain:     env.Domain,
		Opcode:     env.Opcode,
		Selector:   env.Selector,
		ExtType:    env.ExtType,
		SchemaHash: env.SchemaHash,
	}
	i, ok := r.byKey[probe.key()]
	if !ok {
		return OperationSpec{}, false
	}
	return r.specs[i], true
}

// Get finds a spec by display name.
func (r *Registry) Get(name string) (OperationSpec, bool) {
	i, ok := r.byName[name]
	if !ok {
		return OperationSpec{}, false
	}
	return r.specs[i], true
}

// All returns every spec in table order. Sweep mode relies on the
// order being stable between runs.
func (r *Registry) All() []OperationSpec {
	return append([]OperationSpec(nil), r.specs...)
}

// RecipeFor returns the creation recipe for tag.
func (r *Registry) RecipeFor(tag StateTag) (Recipe, bool) {
	recipe, ok := r.recipes[tag]
	return recipe, ok
}
