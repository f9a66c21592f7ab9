package ir

// ContextID identifies one compilation run. The pipeline hands it out and
// every piece of scheduling state is keyed by it.
type ContextID string

// SourceRef identifies one source unit of a compilation.
type SourceRef struct {
	Name string `json:"name" yaml:"name"`
}

// String returns the source name.
func (s SourceRef) String() string {
	return s.Name
}

// Node is an opaque AST node handed to a transformation when it is triggered.
// Element 0 of a NodeSet is conventionally the trigger (an annotation), and
// element 1 the node it decorates.
type Node struct {
	Kind string `json:"kind" yaml:"kind"`
	Name string `json:"name" yaml:"name"`
}

// NodeSet is the payload passed to a transformation visit.
type NodeSet []Node

// ClassKind distinguishes the class-like units a source may declare.
type ClassKind string

const (
	ClassKindClass     ClassKind = "class"
	ClassKindInterface ClassKind = "interface"
	ClassKindEnum      ClassKind = "enum"
	ClassKindInner     ClassKind = "inner"
)

// ValidClassKinds defines the allowed class kinds.
var ValidClassKinds = map[ClassKind]bool{
	ClassKindClass:     true,
	ClassKindInterface: true,
	ClassKindEnum:      true,
	ClassKindInner:     true,
}

// ClassNode is a class-like unit under compilation. Transformations and
// auxiliary passes mutate it in place.
type ClassNode struct {
	Name      string    `json:"name"`
	Kind      ClassKind `json:"kind"`
	Outer     string    `json:"outer,omitempty"`
	Members   []string  `json:"members"`
	Verified  bool      `json:"verified"`
	Completed bool      `json:"completed"`
}

// HasMember reports whether the class declares a member with the given name.
func (c *ClassNode) HasMember(name string) bool {
	for _, m := range c.Members {
		if m == name {
			return true
		}
	}
	return false
}

// AddMember appends a member to the class.
func (c *ClassNode) AddMember(name string) {
	c.Members = append(c.Members, name)
}
