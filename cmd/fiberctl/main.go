// Command fiberctl is the operator CLI: start the orchestrator, register
// agents, inspect the wallet pool, and query indexed rejections — mirroring
// the teacher's cmd/synnergy root-command-with-nested-subcommands shape.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{Use: "fiberctl"}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(registerAgentCmd())
	rootCmd.AddCommand(walletCmd())
	rootCmd.AddCommand(queryCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
