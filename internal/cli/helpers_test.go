package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns stdout,
// stderr and the command error.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decodeResponse decodes a JSON envelope, with Data decoded into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Data: data, Error: raw.Error}
}

const snapshotBatch = `{
  "id": "b1",
  "added": {
    "workflow": {
      "id": "~u/w",
      "name": "w",
      "status": "running",
      "cyclePoints": [{"id": "~u/w//1", "cyclePoint": "1"}],
      "taskProxies": [
        {"id": "~u/w//1/foo", "name": "foo", "state": "running", "firstParent": {"id": "~u/w//1"}}
      ]
    }
  }
}`

const patchBatch = `{
  "id": "b2",
  "updated": {
    "taskProxies": [{"id": "~u/w//1/foo", "state": "succeeded"}]
  }
}`

// writeBatches writes each batch to dir/<name> and returns the paths in
// argument order. Arguments alternate name, content.
func writeBatches(t *testing.T, dir string, pairs ...string) []string {
	t.Helper()
	var paths []string
	for i := 0; i+1 < len(pairs); i += 2 {
		p := filepath.Join(dir, pairs[i])
		require.NoError(t, os.WriteFile(p, []byte(pairs[i+1]), 0o644))
		paths = append(paths, p)
	}
	return paths
}
