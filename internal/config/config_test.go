package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, "http://localhost:8080/graphql", c.Endpoint())
	assert.Equal(t, FormatText, c.Output.Format)
	assert.Equal(t, ":memory:", c.Journal.DSN)
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cylcview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  url: https://cylc.example.org
  ping_interval: 5s
workflow:
  id: "~alice/five"
output:
  format: json
  color: false
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://cylc.example.org/graphql", c.Endpoint())
	assert.Equal(t, 5*time.Second, c.Server.PingInterval)
	assert.Equal(t, "~alice/five", c.Workflow.ID)
	assert.Equal(t, FormatJSON, c.Output.Format)
	assert.False(t, c.Output.Color)
	assert.Equal(t, ":memory:", c.Journal.DSN, "unset keys keep defaults")
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFromYAML_EmptyDocument(t *testing.T) {
	c, err := FromYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestFromYAML_RejectsUnknownKeys(t *testing.T) {
	_, err := FromYAML([]byte("server:\n  ulr: http://x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ulr")
}

func TestFromYAML_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad scheme", "server:\n  url: ftp://host\n"},
		{"relative path", "server:\n  path: graphql\n"},
		{"negative ping", "server:\n  ping_interval: -1s\n"},
		{"unknown format", "output:\n  format: xml\n"},
		{"empty dsn", "journal:\n  dsn: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "got %T: %v", err, err)
		})
	}
}

func TestValidationError_ListsEveryProblem(t *testing.T) {
	c := Default()
	c.Output.Format = "xml"
	c.Journal.DSN = ""

	err := c.Validate()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Problems), 2)
	assert.Contains(t, err.Error(), "invalid config")
}
