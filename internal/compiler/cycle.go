package compiler

import (
	"github.com/roach88/phasedefer/internal/ir"
)

// outerCycles finds cycles in the outer-class chains of a plan: an inner
// class whose outer chain leads back to itself can never be completed.
//
// Every class has at most one outer class, so each chain is walked once.
// Cycles are reported in class declaration order; each path starts and
// ends with the first declared class of the cycle, e.g. [A, B, A].
func outerCycles(p *ir.Plan) [][]string {
	const (
		unvisited = iota
		inProgress
		done
	)

	var order []string
	outer := make(map[string]string)
	for _, src := range p.Sources {
		for _, cls := range src.Classes {
			order = append(order, cls.Name)
			if cls.Outer != "" {
				outer[cls.Name] = cls.Outer
			}
		}
	}

	state := make(map[string]int, len(order))
	var cycles [][]string
	for _, start := range order {
		if state[start] != unvisited {
			continue
		}

		var chain []string
		cur := start
		for cur != "" && state[cur] == unvisited {
			state[cur] = inProgress
			chain = append(chain, cur)
			cur = outer[cur]
		}

		// Reached a class of the current chain: the suffix from it is a cycle.
		if cur != "" && state[cur] == inProgress {
			for i, name := range chain {
				if name == cur {
					cycle := append([]string{}, chain[i:]...)
					cycles = append(cycles, append(cycle, cur))
					break
				}
			}
		}
		for _, name := range chain {
			state[name] = done
		}
	}
	return cycles
}
