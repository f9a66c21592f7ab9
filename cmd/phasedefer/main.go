// Command phasedefer runs build plans through the phased compilation
// pipeline.
//
// Usage:
//
//	phasedefer validate ./plans
//	phasedefer run --db ./runs.db ./plans
//	phasedefer trace --db ./runs.db --context <id>
//	phasedefer replay --db ./runs.db
//	phasedefer test ./scenarios
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/phasedefer/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "phasedefer: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
