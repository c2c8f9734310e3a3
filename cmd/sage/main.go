// Command sage is the preemptable SPARQL query server's CLI, grounded on
// the teacher's cmd/trigo entry point but rebuilt around Cobra (as
// roach88-nysm's internal/cli does) instead of a bare os.Args switch, so
// flags, help text and exit codes follow one convention across subcommands.
package main

import (
	"os"

	"github.com/webpreempt/sage/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
