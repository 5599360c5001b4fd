package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const fenceBlocks = `
name: fence_blocks
description: "Polygon fence enabled with no points loaded"
params:
  FENCE_ENABLE: 1
  FENCE_TYPE: 4
steps:
  - advance: 30s
assertions:
  - type: denied
    text: "Fence enabled but no fence present"
    count: 1
`

const cleanGrant = `
name: clean_grant
description: "Nothing fails, authorization is granted at the first sweep"
steps:
  - advance: 31s
assertions:
  - type: granted
    at_ms: 30000
`

const expectsGrant = `
name: expects_grant
description: "Wrong expectation: the fence blocks arming"
params:
  FENCE_ENABLE: 1
  FENCE_TYPE: 4
steps:
  - advance: 30s
assertions:
  - type: granted
`

// executeCommand runs the root command with args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ARMGUARD_PROFILE", "")
	t.Setenv("ARMGUARD_SESSION", "")

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
