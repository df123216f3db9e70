package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"axon/internal/ast"
	"axon/internal/checker"
	"axon/internal/ir"
	"axon/internal/runtime"
)

var (
	runTraceOut string
)

var runCmd = &cobra.Command{
	Use:   "run <file.axon>",
	Short: "Compile, check, and execute a source file's entrypoint flow",
	Long: `run executes the program's single run statement against the
in-tree stub model client, an empty tool registry, and an in-memory
memory backend. It never reaches a real provider or tool: that wiring
is left to a caller building its own ModelClient/Registry.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runTraceOut, "trace", "", "write the execution trace as JSON to this path (default: stderr)")
}

func runRun(cmd *cobra.Command, args []string) error {
	astProg, err := parseFile(args[0])
	if err != nil {
		return err
	}

	result := checker.Check(astProg)
	if hasErrors(result.Diagnostics) {
		for _, d := range result.Diagnostics {
			fmt.Fprintln(cmd.ErrOrStderr(), d.String())
		}
		return fmt.Errorf("%s failed type checking, not running", args[0])
	}

	irProg, err := ir.Generate(astProg)
	if err != nil {
		return fmt.Errorf("generate IR: %w", err)
	}

	rc := bindRuntimeContext(astProg, irProg)
	exec := runtime.NewExecutor(
		runtime.NewStubModelClient(),
		runtime.NewRegistry(),
		runtime.NewInMemoryBackend(),
		runtime.ExecutorConfig{DefaultTimeout: 30 * time.Second},
	)

	traceID := runtime.DeriveTraceID(irProg.ProgramID, time.Now().Format(time.RFC3339Nano))
	trace := runtime.NewTrace(traceID, irProg.ProgramID, irProg.Entrypoint.Persona, time.Now().UTC().Format(time.RFC3339))

	out, runErr := exec.Run(context.Background(), irProg, rc, trace)
	trace.Close(time.Now().UTC().Format(time.RFC3339))

	if err := writeTrace(cmd, trace); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: failed to write trace:", err)
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%v\n", out)
	return nil
}

func writeTrace(cmd *cobra.Command, trace *runtime.Trace) error {
	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return err
	}
	if runTraceOut == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), string(data))
		return nil
	}
	return writeFile(runTraceOut, data)
}

// bindRuntimeContext binds the persona/context/anchors named by the IR's
// entrypoint from the AST's own declarations: the IR only needs generic
// declaration records for output-type resolution, but persona/context/
// anchor binding reads the original typed AST nodes.
func bindRuntimeContext(astProg *ast.Program, irProg *ir.Program) *runtime.RuntimeContext {
	var persona *runtime.Persona
	var rctx *runtime.Context
	var anchors []*runtime.Anchor

	for _, decl := range astProg.Declarations {
		switch d := decl.(type) {
		case *ast.PersonaDefinition:
			if d.Name == irProg.Entrypoint.Persona {
				persona = runtime.BindPersona(d)
			}
		case *ast.ContextDefinition:
			if d.Name == irProg.Entrypoint.Context {
				rctx = runtime.BindContext(d)
			}
		case *ast.AnchorDefinition:
			for _, name := range irProg.Entrypoint.Anchors {
				if d.Name == name {
					anchors = append(anchors, runtime.BindAnchor(d))
				}
			}
		}
	}

	return runtime.NewRuntimeContext(persona, rctx, runtime.NewAnchorSet(anchors))
}
