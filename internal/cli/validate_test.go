package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fieldProfile = `
schedule: sweep_interval: "250ms"
rules: {
	motor_estop: severity: "hard"
	return_climb: enabled: false
}
follow: enabled: false
`

func TestValidate_Valid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "field.cue", fieldProfile)

	out, err := executeCommand(t, "validate", path)

	require.NoError(t, err)
	assert.Contains(t, out, "✓ Profile valid")
	assert.Contains(t, out, "sweep:  250ms disarmed, 5s armed")
	assert.Contains(t, out, "follow: false")
	assert.Contains(t, out, "motor_estop      hard")
	assert.Contains(t, out, "rtl_climb        off")
}

func TestValidate_UsesProfileFlag(t *testing.T) {
	path := writeFile(t, t.TempDir(), "field.cue", fieldProfile)

	out, err := executeCommand(t, "--format", "json", "--profile", path, "validate")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, path, resp.Data.Profile)
	assert.Equal(t, 120.0, resp.Data.ReturnLimit)
	require.Len(t, resp.Data.Rules, 5)
	assert.Equal(t, RuleSummary{ID: "fence_present", Enabled: true, Severity: "hard"}, resp.Data.Rules[0])
}

func TestValidate_SchemaViolation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", "rules: fence_present: severity: \"fatal\"\n")

	out, err := executeCommand(t, "--format", "json", "validate", path)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E202", resp.Error.Code)
}

func TestValidate_SyntaxErrorText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.cue", "schedule: {\n")

	out, err := executeCommand(t, "validate", path)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E201]")
}

func TestValidate_NotFound(t *testing.T) {
	out, err := executeCommand(t, "validate", filepath.Join(t.TempDir(), "missing.cue"))

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidate_NoProfile(t *testing.T) {
	_, err := executeCommand(t, "validate")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no profile")
}
