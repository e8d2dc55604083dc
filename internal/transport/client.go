package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/cylcview/internal/deltas"
	"github.com/roach88/cylcview/internal/subscription"
)

// Settings tunes connection timing.
type Settings struct {
	// HandshakeTimeout bounds dialing plus connection_init/ack.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
	// PingInterval sends a client ping this often. Zero disables pings.
	PingInterval time.Duration
	// HTTPTimeout bounds one mutation request.
	HTTPTimeout time.Duration
}

// DefaultSettings returns the settings used when none are given.
func DefaultSettings() Settings {
	return Settings{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
		HTTPTimeout:      10 * time.Second,
	}
}

// Client is a GraphQL client for one server endpoint. It runs at most one
// subscription at a time; Start stops the previous one.
type Client struct {
	endpoint   string
	wsURL      string
	settings   Settings
	dialer     *websocket.Dialer
	httpClient *http.Client
	logger     *slog.Logger

	mu   sync.Mutex
	sess *session
}

var _ subscription.Stream = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(c *Client) {
		c.settings = s
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets the HTTP client used for mutations.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the GraphQL endpoint, e.g.
// "http://localhost:8080/graphql". The websocket URL is derived from it
// (http -> ws, https -> wss).
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}

	c := &Client{
		endpoint: httpURL(endpoint),
		wsURL:    u.String(),
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.settings.HTTPTimeout}
	}
	c.dialer = &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.settings.HandshakeTimeout,
		Subprotocols:     []string{Subprotocol},
	}
	return c, nil
}

func httpURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "ws://"):
		return "http://" + strings.TrimPrefix(endpoint, "ws://")
	case strings.HasPrefix(endpoint, "wss://"):
		return "https://" + strings.TrimPrefix(endpoint, "wss://")
	}
	return endpoint
}

// Endpoint returns the HTTP endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// session is one websocket connection carrying one subscription.
type session struct {
	id     string
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}

	writeMu sync.Mutex
	timeout time.Duration
}

func (s *session) write(msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	return s.conn.WriteJSON(msg)
}

// Start dials the server, completes the connection_init/ack handshake and
// subscribes to the deltas of req.WorkflowID. Batches are delivered on a
// reader goroutine until Stop, a complete message or a connection error.
func (c *Client) Start(ctx context.Context, req subscription.Request, obs subscription.Observer) error {
	c.Stop()

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return &ConnectionError{Op: "dial", URL: c.wsURL, Err: err}
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := &session{
		id:      req.ID,
		conn:    conn,
		cancel:  cancel,
		done:    make(chan struct{}),
		timeout: c.settings.WriteTimeout,
	}

	success := false
	defer func() {
		if !success {
			cancel()
			conn.Close()
		}
	}()

	if err := c.handshake(s); err != nil {
		return err
	}

	payload, err := json.Marshal(SubscribePayload{
		OperationName: DeltasOperation,
		Query:         DeltasSubscription,
		Variables:     map[string]any{"workflowId": req.WorkflowID},
	})
	if err != nil {
		return fmt.Errorf("encode subscribe payload: %w", err)
	}
	if err := s.write(Message{ID: s.id, Type: MsgSubscribe, Payload: payload}); err != nil {
		return &ConnectionError{Op: "subscribe", URL: c.wsURL, Err: err}
	}

	success = true
	c.mu.Lock()
	c.sess = s
	c.mu.Unlock()

	go c.read(sessCtx, s, obs)
	go func() {
		// Cancelling the caller's context tears the connection down; Stop
		// closes it itself after sending complete.
		select {
		case <-ctx.Done():
			conn.Close()
		case <-s.done:
		}
	}()
	if c.settings.PingInterval > 0 {
		go c.ping(sessCtx, s)
	}

	c.logger.Debug("graphql-ws subscribed", "url", c.wsURL, "subscription", s.id, "workflow", req.WorkflowID)
	return nil
}

// handshake sends connection_init and waits for connection_ack. Pings
// before the ack are answered.
func (c *Client) handshake(s *session) error {
	if err := s.write(Message{Type: MsgConnectionInit, Payload: json.RawMessage(`{}`)}); err != nil {
		return &ConnectionError{Op: "connection_init", URL: c.wsURL, Err: err}
	}

	s.conn.SetReadDeadline(time.Now().Add(c.settings.HandshakeTimeout))
	defer s.conn.SetReadDeadline(time.Time{})

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return &ConnectionError{Op: "connection_ack", URL: c.wsURL, Err: err}
		}
		switch msg.Type {
		case MsgConnectionAck:
			return nil
		case MsgPing:
			if err := s.write(Message{Type: MsgPong}); err != nil {
				return &ConnectionError{Op: "pong", URL: c.wsURL, Err: err}
			}
		default:
			return &ProtocolError{Type: msg.Type, Reason: "expected connection_ack"}
		}
	}
}

// read delivers frames to obs until the session ends.
func (c *Client) read(ctx context.Context, s *session, obs subscription.Observer) {
	defer close(s.done)
	defer s.cancel()

	report := func(err error) {
		if ctx.Err() != nil {
			return
		}
		if obs.Error != nil {
			obs.Error(err)
		}
	}

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			report(&ConnectionError{Op: "read", URL: c.wsURL, Err: err})
			return
		}

		switch msg.Type {
		case MsgNext:
			if msg.ID != s.id {
				continue
			}
			batch, err := decodeNext(msg.Payload)
			if err != nil {
				report(err)
				continue
			}
			if batch != nil && obs.Next != nil {
				obs.Next(batch)
			}

		case MsgError:
			if msg.ID != s.id {
				continue
			}
			var entries []GraphQLErrorEntry
			if err := json.Unmarshal(msg.Payload, &entries); err != nil {
				report(&ProtocolError{Type: msg.Type, Reason: err.Error()})
				return
			}
			report(&GraphQLError{Entries: entries})
			return

		case MsgComplete:
			if msg.ID != s.id {
				continue
			}
			if obs.Complete != nil && ctx.Err() == nil {
				obs.Complete()
			}
			return

		case MsgPing:
			if err := s.write(Message{Type: MsgPong}); err != nil {
				report(&ConnectionError{Op: "pong", URL: c.wsURL, Err: err})
				return
			}

		case MsgPong:

		default:
			c.logger.Debug("graphql-ws message ignored", "type", msg.Type)
		}
	}
}

// ping keeps idle connections alive.
func (c *Client) ping(ctx context.Context, s *session) {
	ticker := time.NewTicker(c.settings.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.write(Message{Type: MsgPing}); err != nil {
				return
			}
		}
	}
}

// decodeNext extracts the batch from a next payload. A payload with an
// errors list is an error even when data is present.
func decodeNext(raw json.RawMessage) (*deltas.Batch, error) {
	var p nextPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ProtocolError{Type: MsgNext, Reason: err.Error()}
	}
	if len(p.Errors) > 0 {
		return nil, &GraphQLError{Entries: p.Errors}
	}
	if p.Data == nil || p.Data.Deltas == nil {
		return nil, &ProtocolError{Type: MsgNext, Reason: "missing data.deltas"}
	}
	return p.Data.Deltas, nil
}

// Stop completes the running subscription and closes the connection. It
// waits for the reader goroutine, so no callback fires after Stop returns.
// Safe to call when nothing is running.
func (c *Client) Stop() {
	c.mu.Lock()
	s := c.sess
	c.sess = nil
	c.mu.Unlock()
	if s == nil {
		return
	}

	s.cancel()
	// Best effort: the server may already be gone.
	_ = s.write(Message{ID: s.id, Type: MsgComplete})
	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	s.conn.Close()
	<-s.done

	c.logger.Debug("graphql-ws stopped", "subscription", s.id)
}
