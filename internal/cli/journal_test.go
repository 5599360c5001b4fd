package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_Empty(t *testing.T) {
	out, err := executeCommand(t, "journal", "--db", filepath.Join(t.TempDir(), "armguard.db"))
	require.NoError(t, err)
	assert.Equal(t, "No journaled sessions.\n", out)
}

func TestJournal_SessionsAndKindFilter(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "armguard.db")
	fence := writeFile(t, dir, "fence.yaml", fenceBlocks)
	clean := writeFile(t, dir, "clean.yaml", cleanGrant)

	_, err := executeCommand(t, "run", "--db", db, "--session", "first", fence)
	require.NoError(t, err)
	_, err = executeCommand(t, "run", "--db", db, "--session", "second", clean)
	require.NoError(t, err)

	out, err := executeCommand(t, "journal", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "first  30000ms..30000ms  5 entries\nsecond  30000ms..30000ms  6 entries\n", out)

	out, err = executeCommand(t, "--format", "json", "journal", "--db", db, "--session", "second", "--kind", "deny")
	require.NoError(t, err)
	var resp struct {
		Data JournalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.Data.Timeline)
	assert.Equal(t, JournalStats{Total: 6, Notifications: 5, Grants: 1}, resp.Data.Stats)
}

func TestJournal_UnknownSession(t *testing.T) {
	out, err := executeCommand(t, "journal", "--db", filepath.Join(t.TempDir(), "armguard.db"), "--session", "ghost")
	require.NoError(t, err)
	assert.Equal(t, "No entries for session: ghost\n", out)
}

func TestJournal_InvalidKind(t *testing.T) {
	_, err := executeCommand(t, "journal", "--db", filepath.Join(t.TempDir(), "armguard.db"), "--kind", "arm")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
