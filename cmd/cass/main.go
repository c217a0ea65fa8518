// Command cass is the entry point for the cass conversation archive and
// search tool. It provides a CLI interface (via Cobra) for scanning coding
// agent session files into a local corpus, indexing them for search, and
// querying or exporting the result.
package main

import (
	"fmt"
	"os"

	"github.com/rawwerks/cass-go/cmd/cass/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
