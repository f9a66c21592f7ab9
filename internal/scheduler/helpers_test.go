package scheduler

import (
	"io"
	"log/slog"

	"github.com/roach88/phasedefer/internal/ir"
	"github.com/roach88/phasedefer/internal/pipeline"
)

// registration records one hook registration made against fakeAdapter.
type registration struct {
	phase   ir.Phase
	name    string
	current bool
	hook    pipeline.Hook
}

// fakeAdapter records registrations without running a pipeline.
type fakeAdapter struct {
	id            ir.ContextID
	phase         ir.Phase
	registrations []registration
	aux           map[ir.Phase][]pipeline.AuxiliaryPass
	classes       []*ir.ClassNode
	registerErr   error
}

func newFakeAdapter(id ir.ContextID, phase ir.Phase) *fakeAdapter {
	return &fakeAdapter{id: id, phase: phase}
}

func (a *fakeAdapter) ContextID() ir.ContextID { return a.id }
func (a *fakeAdapter) CurrentPhase() ir.Phase  { return a.phase }

func (a *fakeAdapter) RegisterHookAtCurrentPhase(phase ir.Phase, name string, hook pipeline.Hook) error {
	if a.registerErr != nil {
		return a.registerErr
	}
	a.registrations = append(a.registrations, registration{phase: phase, name: name, current: true, hook: hook})
	return nil
}

func (a *fakeAdapter) RegisterHookAtFuturePhase(phase ir.Phase, name string, hook pipeline.Hook) error {
	if a.registerErr != nil {
		return a.registerErr
	}
	a.registrations = append(a.registrations, registration{phase: phase, name: name, hook: hook})
	return nil
}

func (a *fakeAdapter) ApplyToClasses(src ir.SourceRef, op pipeline.ClassOperation) error {
	for _, c := range a.classes {
		if err := op(src, c); err != nil {
			return err
		}
	}
	return nil
}

func (a *fakeAdapter) AuxiliaryPasses(phase ir.Phase) []pipeline.AuxiliaryPass {
	return a.aux[phase]
}

// named returns the registrations with the given hook name.
func (a *fakeAdapter) named(name string) []registration {
	var out []registration
	for _, r := range a.registrations {
		if r.name == name {
			out = append(out, r)
		}
	}
	return out
}

// fire runs every registration for phase in order.
func (a *fakeAdapter) fire(phase ir.Phase, src ir.SourceRef) error {
	for _, r := range a.registrations {
		if r.phase != phase {
			continue
		}
		if err := r.hook(src); err != nil {
			return err
		}
	}
	return nil
}

// testUnit is a Schedulable that appends its name to a shared log when its
// deferred work runs.
type testUnit struct {
	name     string
	priority int
	adapter  pipeline.Adapter
	log      *[]string
	err      error
	onVisit  func()
}

func (u *testUnit) Priority() int                 { return u.priority }
func (u *testUnit) Compilation() pipeline.Adapter { return u.adapter }
func (u *testUnit) DeferredVisit(_ ir.NodeSet, _ ir.SourceRef) error {
	*u.log = append(*u.log, u.name)
	if u.onVisit != nil {
		u.onVisit()
	}
	return u.err
}

func quietScheduler() *Scheduler {
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

var (
	srcA     = ir.SourceRef{Name: "A.src"}
	triggers = ir.NodeSet{{Kind: "annotation", Name: "Deferred"}, {Kind: "class", Name: "Shape"}}
)
