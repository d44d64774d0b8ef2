package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/antimet/internal/domain/screening"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// runCommand executes the full command tree and captures stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFormatTable(t *testing.T) {
	out := FormatTable([]string{"ID", "Name"}, [][]string{
		{"1", "ethanol"},
		{"2", "x"},
	})
	assert.Equal(t, ""+
		"ID  Name   \n"+
		"--  -------\n"+
		"1   ethanol\n"+
		"2   x      \n", out)

	assert.Empty(t, FormatTable(nil, nil))
}

func TestIndexSearchCommand(t *testing.T) {
	dir := t.TempDir()
	compounds := writeFile(t, dir, "compounds.json", `[
	  {"inchi_key": "ETH", "names": ["ethanol"], "smiles": "CCO", "solubility": -0.2},
	  {"inchi_key": "ETA", "names": ["ethane"], "smiles": "CC", "solubility": -1.0}
	]`)
	cfg := writeFile(t, dir, "antimet.yaml", `
log:
  level: error
index:
  snapshot_dir: `+filepath.Join(dir, "snapshots")+`
screening:
  fp_cut: 1.0
  similarity_cut: 0.1
`)

	out, err := runCommand(t,
		"index", "search",
		"--config", cfg,
		"--input", compounds,
		"--query", "CCO",
		"--output", "json")
	require.NoError(t, err)

	var candidates []screening.Candidate
	require.NoError(t, json.Unmarshal([]byte(out), &candidates))
	require.NotEmpty(t, candidates)
	assert.Equal(t, "ETH", candidates[0].InChIKey)
	assert.Equal(t, 1.0, candidates[0].TanimotoSimilarity)

	// The search snapshotted the index for the next invocation.
	entries, err := os.ReadDir(filepath.Join(dir, "snapshots"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestIndexBuildCommand(t *testing.T) {
	dir := t.TempDir()
	compounds := writeFile(t, dir, "compounds.json", `[
	  {"inchi_key": "ETH", "smiles": "CCO", "solubility": -0.2}
	]`)
	cfg := writeFile(t, dir, "antimet.yaml", `
log:
  level: error
index:
  snapshot_dir: `+filepath.Join(dir, "snapshots")+`
`)

	out, err := runCommand(t,
		"index", "build", "--config", cfg, "--input", compounds)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 1 of 1 compounds")
}

func TestDesignRunCommand(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "model.json", `{
	  "id": "toy",
	  "objective": "BIOMASS",
	  "metabolites": [
	    {"id": "glc_c", "compartment": "c", "elements": {"C": 6}},
	    {"id": "pyr_c", "compartment": "c", "elements": {"C": 3}}
	  ],
	  "reactions": [
	    {"id": "EX_glc_e", "lower_bound": -10, "upper_bound": 0,
	     "metabolites": {"glc_c": 1}},
	    {"id": "PYK", "lower_bound": 0, "upper_bound": 10,
	     "metabolites": {"glc_c": -1, "pyr_c": 2}},
	    {"id": "BIOMASS", "lower_bound": 0, "upper_bound": 20,
	     "metabolites": {"pyr_c": -1}}
	  ],
	  "reference": {"EX_glc_e": -5, "PYK": 5, "BIOMASS": 10}
	}`)
	cfg := writeFile(t, dir, "antimet.yaml", `
log:
  level: error
design:
  max_evaluations: 50
  population_size: 5
  seed: 7
`)

	out, err := runCommand(t,
		"design", "run",
		"--config", cfg,
		"--model", model,
		"--target", "PYK",
		"--substrate", "EX_glc_e")
	require.NoError(t, err)
	assert.Contains(t, out, "baseline fitness")
}

func TestDesignRunCommand_MissingReference(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "model.json", `{
	  "id": "toy", "metabolites": [], "reactions": []
	}`)

	_, err := runCommand(t,
		"design", "run",
		"--model", model, "--target", "X", "--substrate", "Y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference flux distribution")
}
