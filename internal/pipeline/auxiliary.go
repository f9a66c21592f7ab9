package pipeline

import (
	"fmt"

	"github.com/roach88/phasedefer/internal/ir"
)

// Names of the default auxiliary passes.
const (
	PassStaticVerifier       = "static_verifier"
	PassInnerClassCompletion = "inner_class_completion"
	PassEnumCompletion       = "enum_completion"
)

// ClassLookup resolves a class by name within a compilation.
type ClassLookup interface {
	Class(name string) (*ir.ClassNode, bool)
}

// DefaultAuxiliaryPasses returns the host's completion passes: the static
// verifier after semantic analysis, and inner-class then enum completion
// after canonicalization.
func DefaultAuxiliaryPasses(classes ClassLookup) map[ir.Phase][]AuxiliaryPass {
	return map[ir.Phase][]AuxiliaryPass{
		ir.PhaseSemanticAnalysis: {
			{Name: PassStaticVerifier, Run: StaticVerifier},
		},
		ir.PhaseCanonicalization: {
			{Name: PassInnerClassCompletion, Run: InnerClassCompletion(classes)},
			{Name: PassEnumCompletion, Run: EnumCompletion},
		},
	}
}

// StaticVerifier rejects classes that declare the same member twice.
func StaticVerifier(src ir.SourceRef, class *ir.ClassNode) error {
	seen := make(map[string]bool, len(class.Members))
	for _, m := range class.Members {
		if seen[m] {
			return &CompilationFailure{
				Phase:   ir.PhaseSemanticAnalysis,
				Source:  src.Name,
				Class:   class.Name,
				Message: fmt.Sprintf("duplicate member %q", m),
			}
		}
		seen[m] = true
	}
	class.Verified = true
	return nil
}

// InnerClassCompletion completes inner classes once their outer class is
// known. Other class kinds pass through untouched.
func InnerClassCompletion(classes ClassLookup) ClassOperation {
	return func(src ir.SourceRef, class *ir.ClassNode) error {
		if class.Kind != ir.ClassKindInner {
			return nil
		}
		if _, ok := classes.Class(class.Outer); !ok || class.Outer == "" {
			return &CompilationFailure{
				Phase:   ir.PhaseCanonicalization,
				Source:  src.Name,
				Class:   class.Name,
				Message: fmt.Sprintf("outer class %q not found", class.Outer),
			}
		}
		class.Completed = true
		return nil
	}
}

// enumImplicitMembers are added to every enum by EnumCompletion.
var enumImplicitMembers = []string{"values", "valueOf"}

// EnumCompletion adds the implicit members every enum carries.
func EnumCompletion(_ ir.SourceRef, class *ir.ClassNode) error {
	if class.Kind != ir.ClassKindEnum {
		return nil
	}
	for _, m := range enumImplicitMembers {
		if !class.HasMember(m) {
			class.AddMember(m)
		}
	}
	class.Completed = true
	return nil
}
