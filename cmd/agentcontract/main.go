// Command agentcontract validates event envelopes and adjudicates schema
// version compatibility for the content pipeline agents.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/agentcontract/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "agentcontract:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
