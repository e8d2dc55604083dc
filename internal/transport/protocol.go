package transport

import (
	"encoding/json"

	"github.com/roach88/cylcview/internal/deltas"
)

// Subprotocol is the websocket subprotocol negotiated with the server.
const Subprotocol = "graphql-transport-ws"

// graphql-transport-ws message types.
const (
	MsgConnectionInit = "connection_init"
	MsgConnectionAck  = "connection_ack"
	MsgPing           = "ping"
	MsgPong           = "pong"
	MsgSubscribe      = "subscribe"
	MsgNext           = "next"
	MsgError          = "error"
	MsgComplete       = "complete"
)

// Message is one protocol frame.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload is the payload of a subscribe message and the body of
// an HTTP GraphQL request.
type SubscribePayload struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// GraphQLErrorEntry is one entry of a GraphQL "errors" list.
type GraphQLErrorEntry struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// nextPayload is the payload of a next message of the deltas subscription.
type nextPayload struct {
	Data *struct {
		Deltas *deltas.Batch `json:"deltas"`
	} `json:"data"`
	Errors []GraphQLErrorEntry `json:"errors,omitempty"`
}
