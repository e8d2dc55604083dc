package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type mutationResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []GraphQLErrorEntry        `json:"errors,omitempty"`
}

// Mutate runs a workflow command against workflowID and returns the raw
// "result" value of the mutation.
func (c *Client) Mutate(ctx context.Context, cmd Command, workflowID string) (json.RawMessage, error) {
	m, ok := mutations[cmd]
	if !ok {
		return nil, &UnknownCommandError{Name: string(cmd)}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(SubscribePayload{
		Query:     m.document,
		Variables: map[string]any{"workflow": workflowID},
	}); err != nil {
		return nil, fmt.Errorf("encode %s mutation: %w", cmd, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Op: "post", URL: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out mutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", cmd, err)
	}
	if len(out.Errors) > 0 {
		return nil, &GraphQLError{Entries: out.Errors}
	}

	var field struct {
		Result json.RawMessage `json:"result"`
	}
	raw, ok := out.Data[m.field]
	if !ok {
		return nil, fmt.Errorf("%s response: missing data.%s", cmd, m.field)
	}
	if err := json.Unmarshal(raw, &field); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", cmd, err)
	}

	c.logger.Info("workflow command sent", "command", string(cmd), "workflow", workflowID)
	return field.Result, nil
}
