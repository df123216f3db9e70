package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"axon/internal/runtime"
)

var traceSchemaCmd = &cobra.Command{
	Use:   "trace-schema",
	Short: "Print the JSON Schema for a runtime execution trace",
	Args:  cobra.NoArgs,
	RunE:  runTraceSchema,
}

func runTraceSchema(cmd *cobra.Command, args []string) error {
	data, err := runtime.TraceJSONSchema()
	if err != nil {
		return fmt.Errorf("build trace schema: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
