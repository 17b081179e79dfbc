package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	cfg "github.com/maastricht-university/session-insights/config"
	"github.com/maastricht-university/session-insights/orchestrator"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func testConfig(t *testing.T, storage string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	body := "paths:\n  storage: " + storage + "\npipeline:\n  log_level: error\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestConfigCommand_MasksKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-secret")
	storage := t.TempDir()

	out, err := runCLI(t, "config", "--config", testConfig(t, storage))
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-secret")

	var c cfg.Root
	require.NoError(t, yaml.Unmarshal([]byte(out), &c))
	assert.Equal(t, "********", c.LLM.APIKey)
	assert.Equal(t, storage, c.Paths.Storage)
	assert.Equal(t, 30, c.Video.FrameStride)
}

func TestStorageFlag(t *testing.T) {
	other := t.TempDir()
	out, err := runCLI(t, "config", "--config", testConfig(t, t.TempDir()), "--storage", other)
	require.NoError(t, err)
	assert.Contains(t, out, "storage: "+other)
}

func TestStatusAndReportCommands(t *testing.T) {
	storage := t.TempDir()
	conf := testConfig(t, storage)

	dir := filepath.Join(storage, "s1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"),
		[]byte(`{"session_id":"s1","status":"processing","created_at":1714550000}`), 0o644))

	out, err := runCLI(t, "status", "s1", "--config", conf)
	require.NoError(t, err)
	var rec orchestrator.StatusRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, orchestrator.StatusProcessing, rec.Status)

	_, err = runCLI(t, "report", "s1", "--config", conf)
	assert.ErrorIs(t, err, orchestrator.ErrStillProcessing)

	_, err = runCLI(t, "report", "unknown", "--config", conf)
	assert.ErrorIs(t, err, orchestrator.ErrNotFound)

	// a scenario session with the same ID is only reached with --scenario
	scn := filepath.Join(storage, "scenario_sessions", "s1")
	require.NoError(t, os.MkdirAll(filepath.Join(scn, "report"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scn, "report", "report.json"), []byte(`{"confidence_score": 71}`), 0o644))
	out, err = runCLI(t, "report", "s1", "--scenario", "--config", conf)
	require.NoError(t, err)
	assert.Contains(t, out, "71")
}

func TestAnalyzeCommand_MissingSession(t *testing.T) {
	_, err := runCLI(t, "analyze", "ghost", "--config", testConfig(t, t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestAnalyzeCommand_RequiresArgs(t *testing.T) {
	_, err := runCLI(t, "analyze", "--config", testConfig(t, t.TempDir()))
	assert.Error(t, err)
}
