package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrMissingEventType = errors.New("inbound event missing type discriminator")
	ErrTransportClosed  = errors.New("transport closed")
)

const defaultConnectTimeout = 10 * time.Second

// Client dials the relay and exposes the bidirectional message channel to
// the engine. The engine owns the lifecycle; nothing else touches the
// connection.
type Client struct {
	url            string
	header         http.Header
	connectTimeout time.Duration
}

type ClientOption func(*Client)

// WithBearerToken authenticates the relay dial.
func WithBearerToken(token string) ClientOption {
	return func(c *Client) {
		c.header.Set("Authorization", "Bearer "+token)
	}
}

// WithConnectTimeout bounds how long the dial may take.
func WithConnectTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = timeout
	}
}

func NewClient(url string, opts ...ClientOption) *Client {
	client := &Client{
		url:            url,
		header:         http.Header{},
		connectTimeout: defaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Dial opens the websocket and starts the read pump. The returned transport
// delivers parsed events until the connection drops, then closes its event
// channel.
func (c *Client) Dial(ctx context.Context) (*Transport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, c.header)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to relay: %w", err)
	}

	transport := &Transport{
		conn:   conn,
		events: make(chan ServerEvent, 64),
		done:   make(chan struct{}),
	}
	go transport.readAndProcessMessages()

	return transport, nil
}

// Transport is one live connection to the relay.
type Transport struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  bool
	done    chan struct{}

	events  chan ServerEvent
	readErr error
	errMu   sync.Mutex
}

// Send writes one JSON message. Writes are serialized; gorilla connections
// do not allow concurrent writers.
func (t *Transport) Send(msg any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}
	if err := t.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to relay websocket: %w", err)
	}
	return nil
}

// Events returns the inbound event stream. The channel closes when the
// connection is lost or Close is called; Err reports why.
func (t *Transport) Events() <-chan ServerEvent {
	return t.events
}

// Err returns the read-loop failure, if any, once Events has closed.
func (t *Transport) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.readErr
}

// Close tears the connection down. Safe to call more than once.
func (t *Transport) Close() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)

	deadline := time.Now().Add(time.Second)
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	if err := t.conn.Close(); err != nil {
		return fmt.Errorf("failed to close relay websocket: %w", err)
	}
	return nil
}

func (t *Transport) readAndProcessMessages() {
	defer close(t.events)

	for {
		msgType, msg, err := t.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !t.isClosed() {
				t.setReadErr(err)
				logger.Warn("relay websocket read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		event, err := ParseServerEvent(msg)
		if err != nil {
			logger.Warn("skipping malformed relay event", "error", err)
			continue
		}

		// Deliver without holding the pump hostage: a receiver that stopped
		// draining must not keep this goroutine alive past Close.
		select {
		case t.events <- event:
		case <-t.done:
			return
		}
	}
}

func (t *Transport) isClosed() bool {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.closed
}

func (t *Transport) setReadErr(err error) {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.readErr == nil {
		t.readErr = err
	}
}
