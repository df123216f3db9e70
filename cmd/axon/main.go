// Command axon is the AXON developer harness: compile a source file to
// IR, type-check it and print diagnostics, or run a compiled flow against
// the in-tree stub model client and tool registry while dumping a trace.
//
// It is not a product CLI: there is no provider-credential flow, no
// interactive shell, no package manager for the stdlib of personas and
// anchors. Those stay external per the core's scope.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"axon/internal/config"
	"axon/internal/logging"
)

var (
	verbose    bool
	jsonLogs   bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "axon",
	Short: "AXON compiler and runtime developer harness",
	Long: `axon compiles and runs AXON cognitive-primitive source files.

It wires together the lexer, parser, type checker, IR generator, and
runtime executor built under internal/. Every subcommand operates on a
single .axon source file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.Logging.Verbose = true
		}
		if jsonLogs {
			cfg.Logging.JSON = true
		}
		logger, err = logging.Init(cfg.Logging.Verbose, cfg.Logging.JSON)
		if err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON instead of console format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".axon.yaml", "path to an AXON toolchain config file")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(traceSchemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "axon:", err)
		os.Exit(1)
	}
}
