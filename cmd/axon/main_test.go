package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.axon")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestRunCheckPassesOnValidProgram(t *testing.T) {
	path := writeSource(t, `
persona P { domain: "support" }
flow F() {
  reason Draft { prompt: "hi", output: String }
}
run F() as P
`)
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := runCheck(cmd, []string{path})
	require.NoError(t, err)
	require.Contains(t, out.String(), "ok: no diagnostics")
}

func TestRunCheckReportsDiagnostics(t *testing.T) {
	path := writeSource(t, `
flow F() {
  reason Draft { prompt: "hi", output: NoSuchType }
}
run F()
`)
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := runCheck(cmd, []string{path})
	require.Error(t, err)
	require.Contains(t, out.String(), "UnknownType")
}

func TestRunCompileEmitsIRJSON(t *testing.T) {
	path := writeSource(t, `
flow F() {
  reason Draft { prompt: "hi", output: String }
}
run F()
`)
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := runCompile(cmd, []string{path})
	require.NoError(t, err)
	require.Contains(t, out.String(), `"axon_ir_version"`)
	require.Contains(t, out.String(), `"Draft"`)
}

func TestRunRunExecutesAgainstStubClient(t *testing.T) {
	path := writeSource(t, `
flow F() {
  reason Draft { prompt: "hi", output: String }
}
run F()
`)
	cmd := &cobra.Command{}
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := runRun(cmd, []string{path})
	require.NoError(t, err)
	require.Contains(t, out.String(), "stub-response-for(hi)")
	require.Contains(t, errOut.String(), `"trace_id"`)
}

func TestRunTraceSchemaEmitsSchema(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := runTraceSchema(cmd, nil)
	require.NoError(t, err)
	require.Contains(t, out.String(), "AXON execution trace")
}
