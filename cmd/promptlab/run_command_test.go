package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	content := `
sections: ["Be concise.", "Cite sources."]
queries: ["What is Go?"]
dimensions:
  - {name: helpfulness, question: "How helpful?", kind: scale}
policy:
  type: powerset
store_path: ` + filepath.Join(dir, "results.db") + `
`
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCommand_DryRunReportsPlanWithoutCredentials(t *testing.T) {
	// Given a valid run file and no API key in the environment
	dir := t.TempDir()
	configPath := writeConfig(t, dir)
	t.Setenv("PROMPTLAB_API_KEY", "")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"run", "--config", configPath, "--dry-run"})

	// When executing a dry run
	err := cmd.Execute()

	// Then the plan is printed without needing a credential
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"combinations": 4`)
	assert.Contains(t, out.String(), `"total_units": 4`)
	assert.Contains(t, out.String(), `"remote_calls": 8`)
}

func TestRunCommand_RequiresConfigFlag(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run"})

	err := cmd.Execute()
	require.Error(t, err)
}

func TestStatusCommand_ReportsEmptyStore(t *testing.T) {
	// Given a fresh store location
	dir := t.TempDir()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"status", "--store", filepath.Join(dir, "results.db")})

	// When querying status
	err := cmd.Execute()

	// Then an empty summary is printed
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"records": 0`)
}

func TestExportCommand_WritesHeaderForEmptyStore(t *testing.T) {
	dir := t.TempDir()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"export", "--store", filepath.Join(dir, "results.db")})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, out.String(), "combination,query,dimension,score_or_bool,response_excerpt,status,timestamp")
}
