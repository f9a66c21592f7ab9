package ir

// Plan is a compiled build plan: the sources of one compilation, the
// class-like units they declare, and the transformation units triggered
// while it runs.
type Plan struct {
	Name    string       `json:"name" yaml:"name"`
	Sources []SourceSpec `json:"sources" yaml:"sources"`
	Units   []UnitSpec   `json:"units" yaml:"units"`
}

// SourceSpec declares one source unit and its classes.
type SourceSpec struct {
	Name    string      `json:"name" yaml:"name"`
	Classes []ClassSpec `json:"classes" yaml:"classes"`
}

// ClassSpec declares a class-like unit.
type ClassSpec struct {
	Name    string    `json:"name" yaml:"name"`
	Kind    ClassKind `json:"kind" yaml:"kind"`
	Outer   string    `json:"outer,omitempty" yaml:"outer,omitempty"`
	Members []string  `json:"members,omitempty" yaml:"members,omitempty"`
}

// UnitSpec declares a transformation unit. The pipeline visits the unit in
// Phase for Source; the unit then either defers (the default) or runs its
// work immediately. The work adds Member to Target, or fails with Fail when
// it is set.
type UnitSpec struct {
	Name      string `json:"name" yaml:"name"`
	Priority  int    `json:"priority" yaml:"priority"`
	Phase     Phase  `json:"phase" yaml:"phase"`
	Source    string `json:"source" yaml:"source"`
	Target    string `json:"target" yaml:"target"`
	Member    string `json:"member,omitempty" yaml:"member,omitempty"`
	Fail      string `json:"fail,omitempty" yaml:"fail,omitempty"`
	Immediate bool   `json:"immediate,omitempty" yaml:"immediate,omitempty"`
}

// Source returns the source spec with the given name.
func (p *Plan) Source(name string) (*SourceSpec, bool) {
	for i := range p.Sources {
		if p.Sources[i].Name == name {
			return &p.Sources[i], true
		}
	}
	return nil, false
}

// Class returns the class spec with the given name from any source.
func (p *Plan) Class(name string) (*ClassSpec, bool) {
	for i := range p.Sources {
		for j := range p.Sources[i].Classes {
			if p.Sources[i].Classes[j].Name == name {
				return &p.Sources[i].Classes[j], true
			}
		}
	}
	return nil, false
}
