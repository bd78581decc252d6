// Package resolver materializes prerequisite on-ledger objects lazily
// and exactly once per tag. Concurrent requests for one unresolved tag
// collapse into a single in-flight creation; racing callers wait for
// the first caller's result instead of double-creating.
package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/QuarksBlueFoot/styxctl/internal/observability"
	"github.com/QuarksBlueFoot/styxctl/internal/registry"
	"github.com/QuarksBlueFoot/styxctl/internal/submit"
)

// MaterializedState records one previously created ledger object.
// Immutable for the lifetime of a run.
type MaterializedState struct {
	Tag       registry.StateTag
	Handle    string
	CreatedAt time.Time
}

// CycleError reports a prerequisite chain that loops back on itself.
// Fatal for the run: a cyclic recipe table cannot be materialized.
type CycleError struct {
	Chain []registry.StateTag
}

func (e *CycleError) Error() string {
	out := "resolver: prerequisite cycle:"
	for i, tag := range e.Chain {
		if i > 0 {
			out += " ->"
		}
		out += " " + string(tag)
	}
	return out
}

// Submitter is the slice of the transaction submitter the resolver
// needs to create state.
type Submitter interface {
	Submit(ctx context.Context, payload []byte, signer submit.Signer) (submit.Result, error)
}

type inflight struct {
	done  chan struct{}
	state MaterializedState
	err   error
}

// Resolver owns the materialized-state cache exclusively; it is the
// single writer even under concurrent readers.
type Resolver struct {
	reg    *registry.Registry
	sub    Submitter
	signer submit.Signer
	log    zerolog.Logger

	mu      sync.Mutex
	cache   map[registry.StateTag]MaterializedState
	pending map[registry.StateTag]*inflight
}

func New(reg *registry.Registry, sub Submitter, signer submit.Signer, log zerolog.Logger) *Resolver {
	return &Resolver{
		reg:     reg,
		sub:     sub,
		signer:  signer,
		log:     log,
		cache:   make(map[registry.StateTag]MaterializedState),
		pending: make(map[registry.StateTag]*inflight),
	}
}

// Resolve returns the materialized object for tag, creating it on
// first request. Idempotent; safe for concurrent use.
func (r *Resolver) Resolve(ctx context.Context, tag registry.StateTag) (MaterializedState, error) {
	return r.resolve(ctx, tag, nil)
}

// Reset discards the run-scoped cache. Call between runs, never
// mid-run.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[registry.StateTag]MaterializedState)
}

func (r *Resolver) resolve(ctx context.Context, tag registry.StateTag, chain []registry.StateTag) (MaterializedState, error) {
	for _, seen := range chain {
		if seen == tag {
			return MaterializedState{}, &CycleError{Chain: append(append([]registry.StateTag(nil), chain...), tag)}
		}
	}

	r.mu.Lock()
	if state, ok := r.cache[tag]; ok {
		r.mu.Unlock()
		return state, nil
	}
	if fl, ok := r.pending[tag]; ok {
		r.mu.Unlock()
		select {
		case <-fl.done:
		case <-ctx.Done():
			return MaterializedState{}, ctx.Err()
		}
		if fl.err != nil {
			return MaterializedState{}, fl.err
		}
		return fl.state, nil
	}
	fl := &inflight{done: make(chan struct{})}
	r.pending[tag] = fl
	r.mu.Unlock()

	state, err := r.create(ctx, tag, chain)

	r.mu.Lock()
	delete(r.pending, tag)
	if err == nil {
		r.cache[tag] = state
		fl.state = state
	} else {
		// Leave the tag unresolved so a later caller can retry after a
		// transient failure.
		fl.err = err
	}
	r.mu.Unlock()
	close(fl.done)

	return state, err
}

func (r *Resolver) create(ctx context.Context, tag registry.StateTag, chain []registry.StateTag) (MaterializedState, error) {
	recipe, ok := r.reg.RecipeFor(tag)
	if !ok {
		return MaterializedState{}, fmt.Errorf("resolver: no creation recipe for tag %q", tag)
	}
	spec, ok := r.reg.Get(recipe.Op)
	if !ok {
		return MaterializedState{}, fmt.Errorf("resolver: recipe %q names unknown operation %q", tag, recipe.Op)
	}

	parentHandle := ""
	if spec.Prereq != registry.NoPrereq {
		parent, err := r.resolve(ctx, spec.Prereq, append(chain, tag))
		if err != nil {
			return MaterializedState{}, err
		}
		parentHandle = parent.Handle
	}

	payload, err := spec.Encode(recipe.Fill(parentHandle))
	if err != nil {
		return MaterializedState{}, err
	}

	r.log.Debug().Str("tag", string(tag)).Str("op", spec.Name).Msg("materializing prerequisite state")
	res, err := r.sub.Submit(ctx, payload, r.signer)
	if err != nil {
		return MaterializedState{}, fmt.Errorf("resolver: create %q via %s: %w", tag, spec.Name, err)
	}

	handle := res.Receipt.Handles[string(tag)]
	if handle == "" {
		handle = res.Receipt.Signature
	}
	observability.RecordMaterialization(string(tag))

	return MaterializedState{
		Tag:       tag,
		Handle:    handle,
		CreatedAt: time.Now(),
	}, nil
}
