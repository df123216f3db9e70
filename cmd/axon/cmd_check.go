package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"axon/internal/checker"
)

var checkCmd = &cobra.Command{
	Use:   "check <file.axon>",
	Short: "Type-check a source file and print diagnostics",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	prog, err := parseFile(args[0])
	if err != nil {
		return err
	}

	result := checker.Check(prog)
	for _, d := range result.Diagnostics {
		fmt.Fprintln(cmd.OutOrStdout(), d.String())
	}

	if result.Diagnostics == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "ok: no diagnostics")
	}
	if hasErrors(result.Diagnostics) {
		return fmt.Errorf("%s failed type checking", args[0])
	}
	return nil
}

func hasErrors(diags []checker.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == checker.SeverityError {
			return true
		}
	}
	return false
}
