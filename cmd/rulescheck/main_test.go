package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/opsdesk/ticket-rules/internal/rules"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeRules(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidatePrintsResolvedYAML(t *testing.T) {
	path := writeRules(t, "rules.yaml", `
statuses: [Open, On Hold, Closed]
priorities: [Low, High]
palette:
  stage0: "#000000"
`)
	out, err := execute(t, "validate", path)
	require.NoError(t, err)

	var resolved map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &resolved))
	assert.Equal(t, []any{"Open", "On Hold", "Closed"}, resolved["statuses"])
	palette := resolved["palette"].(map[string]any)
	assert.Equal(t, "#000000", palette["stage0"])
	assert.Equal(t, "#7f1d1d", palette["overdue"])
}

func TestValidateJSONOutput(t *testing.T) {
	path := writeRules(t, "rules.json", `{
  // comments are allowed
  "statuses": ["Open", "Closed"],
  "priorities": ["Low"],
}`)
	out, err := execute(t, "validate", "-o", "json", path)
	require.NoError(t, err)

	var resolved map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resolved))
	assert.Equal(t, []any{"Low"}, resolved["priorities"])
}

func TestValidateReportsConfigError(t *testing.T) {
	path := writeRules(t, "rules.yaml", "statuses: [Closed]\npriorities: [Low]\n")
	_, err := execute(t, "validate", path)
	require.Error(t, err)

	var cfgErr *rules.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "statuses", cfgErr.Field)
}

func TestValidateRequiresPath(t *testing.T) {
	_, err := execute(t, "validate")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	out, err := execute(t, "classify",
		"--priority", "High",
		"--created", "2024-01-01T00:00:00Z",
		"--now", "2024-01-20T00:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "stage=overdue")
	assert.Contains(t, out, "color=#7f1d1d")
	assert.Contains(t, out, "basis=age")
}

func TestClassifyDueDate(t *testing.T) {
	out, err := execute(t, "classify",
		"--due", "2024-01-11T00:00:00Z",
		"--now", "2024-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "stage=stage3")
	assert.Contains(t, out, "basis=due_date")
	assert.Contains(t, out, `countdown="10 days left"`)
}

func TestClassifyOnHoldOverride(t *testing.T) {
	out, err := execute(t, "classify", "--status", "On Hold")
	require.NoError(t, err)
	assert.Contains(t, out, "color=#9c88ff")
	assert.Contains(t, out, "basis=status")
}
