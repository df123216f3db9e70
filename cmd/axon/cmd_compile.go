package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"axon/internal/checker"
	"axon/internal/ir"
)

var compileCmd = &cobra.Command{
	Use:   "compile <file.axon>",
	Short: "Type-check a source file and print its compiled IR as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

func runCompile(cmd *cobra.Command, args []string) error {
	prog, err := parseFile(args[0])
	if err != nil {
		return err
	}

	result := checker.Check(prog)
	if hasErrors(result.Diagnostics) {
		for _, d := range result.Diagnostics {
			fmt.Fprintln(cmd.ErrOrStderr(), d.String())
		}
		return fmt.Errorf("%s failed type checking, not compiling to IR", args[0])
	}

	irProg, err := ir.Generate(prog)
	if err != nil {
		return fmt.Errorf("generate IR: %w", err)
	}

	data, err := json.MarshalIndent(irProg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal IR: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
