package flow

import (
	"slices"

	"github.com/siderolabs/gen/xslices"
)

// Step binds a state to the data its view renders.
type Step struct {
	StateID StateID
	// Props is handed to the view of the step as is.
	Props any
	// After, when set to a rendered state, places the step right after it.
	After *StateID
}

// Registry is the ordered list of rendered steps, at most one per state.
// It is not safe for concurrent use; the machine serializes access.
type Registry struct {
	steps []Step
	index map[StateID]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: map[StateID]int{}}
}

// Render inserts or replaces the step for step.StateID.
//
// With an anchor that is rendered the step moves right after the anchor.
// Without one an existing step is replaced in place and a new step is
// placed by state order.
func (r *Registry) Render(step Step) {
	if step.After != nil && *step.After != step.StateID && r.Has(*step.After) {
		r.Remove(step.StateID)

		pos := r.index[*step.After] + 1
		r.steps = slices.Insert(r.steps, pos, step)
		r.reindex()

		return
	}

	if i, ok := r.index[step.StateID]; ok {
		r.steps[i] = step

		return
	}

	pos := slices.IndexFunc(r.steps, func(s Step) bool { return s.StateID > step.StateID })
	if pos < 0 {
		pos = len(r.steps)
	}

	r.steps = slices.Insert(r.steps, pos, step)
	r.reindex()
}

// RemoveAfter removes every step after id, and id itself when inclusive.
// Nothing happens when id is not rendered.
func (r *Registry) RemoveAfter(id StateID, inclusive bool) {
	i, ok := r.index[id]
	if !ok {
		return
	}

	if !inclusive {
		i++
	}

	clear(r.steps[i:])
	r.steps = r.steps[:i]
	r.reindex()
}

// Remove drops the step for id, if any.
func (r *Registry) Remove(id StateID) {
	if r.remove(id) {
		r.reindex()
	}
}

func (r *Registry) remove(id StateID) bool {
	if _, ok := r.index[id]; !ok {
		return false
	}

	r.steps = xslices.Filter(r.steps, func(s Step) bool { return s.StateID != id })

	return true
}

func (r *Registry) reindex() {
	clear(r.index)

	for i, s := range r.steps {
		r.index[s.StateID] = i
	}
}

// Has reports whether a step for id is rendered.
func (r *Registry) Has(id StateID) bool {
	_, ok := r.index[id]

	return ok
}

// Get returns the step for id.
func (r *Registry) Get(id StateID) (Step, bool) {
	i, ok := r.index[id]
	if !ok {
		return Step{}, false
	}

	return r.steps[i], true
}

// Steps returns a copy of the ordered steps.
func (r *Registry) Steps() []Step {
	return slices.Clone(r.steps)
}

// IDs returns the ordered state ids.
func (r *Registry) IDs() []StateID {
	return xslices.Map(r.steps, func(s Step) StateID { return s.StateID })
}

// Len is the number of rendered steps.
func (r *Registry) Len() int {
	return len(r.steps)
}
