// Command mofa-bridge inspects MoFA dataflows and runs their widget bridges
// against a dora node gateway.
//
// Usage:
//
//	mofa-bridge [flags] <command> [args]
//
// Commands:
//
//	parse    - Print the nodes, widget bindings and requirements of a dataflow
//	env      - Check the environment variables a dataflow needs
//	run      - Connect the widget bridges of a dataflow and print their events
//	config   - Configuration management (contexts, engine settings)
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/mofa-org/dorabridge/cmd/mofa-bridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
