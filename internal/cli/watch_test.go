package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cylcview/internal/transport"
)

// deltasServer acks the connection, answers the subscribe message with
// one next frame per batch and then waits for the client to leave.
func deltasServer(t *testing.T, batches ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{Subprotocols: []string{transport.Subprotocol}}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg transport.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if err := conn.WriteJSON(transport.Message{Type: transport.MsgConnectionAck}); err != nil {
			return
		}
		if err := conn.ReadJSON(&msg); err != nil || msg.Type != transport.MsgSubscribe {
			return
		}
		for _, b := range batches {
			payload, _ := json.Marshal(map[string]any{"data": map[string]json.RawMessage{"deltas": json.RawMessage(b)}})
			if err := conn.WriteJSON(transport.Message{ID: msg.ID, Type: transport.MsgNext, Payload: payload}); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestWatch_Once(t *testing.T) {
	srv := deltasServer(t, snapshotBatch)
	defer srv.Close()

	dsn := filepath.Join(t.TempDir(), "journal.db")
	stdout, _, err := executeCommand(t, "watch", "~u/w", "--once", "--color=false",
		"--server", srv.URL, "--journal", dsn)
	require.NoError(t, err)
	assert.Contains(t, stdout, "w running")
	assert.Contains(t, stdout, "foo")

	stdout, _, err = executeCommand(t, "sessions", "--journal", dsn, "--format", "json")
	require.NoError(t, err)
	var sessions []SessionSummary
	decodeResponse(t, stdout, &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, "~u/w", sessions[0].Workflow)
	assert.Equal(t, 1, sessions[0].Batches)
}

func TestWatch_JSON(t *testing.T) {
	srv := deltasServer(t, snapshotBatch)
	defer srv.Close()

	stdout, _, err := executeCommand(t, "watch", "~u/w", "--once", "--format", "json", "--server", srv.URL)
	require.NoError(t, err)

	var view map[string]any
	resp := decodeResponse(t, stdout, &view)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, float64(2), view["size"])
}

func TestWatch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, _, err := executeCommand(t, "watch", "~u/w", "--server", url)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to subscribe")
}

func TestWatch_MissingWorkflow(t *testing.T) {
	_, _, err := executeCommand(t, "watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow id required")
}
