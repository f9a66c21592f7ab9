package ir

// TraceKind categorises trace events.
type TraceKind string

const (
	// TraceVisit: the pipeline visited a transformation unit.
	TraceVisit TraceKind = "visit"
	// TraceDefer: a unit deferred its work to the scheduler.
	TraceDefer TraceKind = "defer"
	// TraceHook: the pipeline invoked a registered hook.
	TraceHook TraceKind = "hook"
	// TraceDeferredVisit: the scheduler ran a deferred invocation.
	TraceDeferredVisit TraceKind = "deferred_visit"
	// TraceAuxiliary: an auxiliary pass ran for a class.
	TraceAuxiliary TraceKind = "auxiliary"
	// TraceFinalize: the finalize hook released the context.
	TraceFinalize TraceKind = "finalize"
	// TraceFailure: a compilation failure aborted the run.
	TraceFailure TraceKind = "failure"
)

// TraceEvent is one entry of a compilation trace. Seq comes from a logical
// clock and is strictly increasing within a run.
type TraceEvent struct {
	Seq      int64     `json:"seq" yaml:"seq"`
	Kind     TraceKind `json:"kind" yaml:"kind"`
	Phase    Phase     `json:"phase" yaml:"phase"`
	Unit     string    `json:"unit,omitempty" yaml:"unit,omitempty"`
	Priority int       `json:"priority,omitempty" yaml:"priority,omitempty"`
	Source   string    `json:"source,omitempty" yaml:"source,omitempty"`
	Class    string    `json:"class,omitempty" yaml:"class,omitempty"`
	Detail   string    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// CanonicalMap converts the event to a map for canonical JSON. Empty
// optional fields are omitted so digests do not depend on zero values.
func (e TraceEvent) CanonicalMap() map[string]any {
	m := map[string]any{
		"seq":   e.Seq,
		"kind":  string(e.Kind),
		"phase": e.Phase.String(),
	}
	if e.Unit != "" {
		m["unit"] = e.Unit
	}
	if e.Priority != 0 {
		m["priority"] = e.Priority
	}
	if e.Source != "" {
		m["source"] = e.Source
	}
	if e.Class != "" {
		m["class"] = e.Class
	}
	if e.Detail != "" {
		m["detail"] = e.Detail
	}
	return m
}
