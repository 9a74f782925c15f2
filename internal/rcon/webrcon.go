package rcon

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// webMessage is the WebRCON request/response envelope.
type webMessage struct {
	Identifier int    `json:"Identifier"`
	Message    string `json:"Message"`
	Name       string `json:"Name,omitempty"`
	Type       string `json:"Type,omitempty"`
}

// WebClient speaks WebRCON: JSON messages over a websocket whose path carries the password.
type WebClient struct {
	address  string
	password string
	timeout  time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID int
}

// NewWebClient creates a WebRCON client; no connection is made until the first Execute.
func NewWebClient(address, password string, timeout time.Duration, logger *zap.Logger) *WebClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebClient{
		address:  address,
		password: password,
		timeout:  timeout,
		logger:   logger.Named("webrcon"),
	}
}

// Execute sends command and waits for the reply carrying the same identifier.
func (c *WebClient) Execute(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		fresh, err := c.connectLocked(ctx)
		if err != nil {
			return "", err
		}

		body, err := c.execLocked(ctx, command)
		if err == nil {
			return body, nil
		}

		c.dropLocked()
		if fresh || ctx.Err() != nil {
			return "", fmt.Errorf("webrcon %q: %w", command, err)
		}
		c.logger.Debug("retrying command on fresh connection", zap.Error(err))
	}
}

// Close drops the connection, if any.
func (c *WebClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *WebClient) endpoint() string {
	u := url.URL{Scheme: "ws", Host: c.address, Path: "/" + c.password}
	return u.String()
}

func (c *WebClient) connectLocked(ctx context.Context) (bool, error) {
	if c.conn != nil {
		return false, nil
	}
	dialer := websocket.Dialer{HandshakeTimeout: c.timeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint(), nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.address, err)
	}
	c.conn = conn
	c.logger.Info("connected to game server", zap.String("address", c.address))
	return true, nil
}

func (c *WebClient) execLocked(ctx context.Context, command string) (string, error) {
	c.nextID++
	id := c.nextID

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return "", err
	}
	if err := c.conn.WriteJSON(webMessage{Identifier: id, Message: command, Name: "WebRcon"}); err != nil {
		return "", fmt.Errorf("write message: %w", err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return "", err
	}
	for {
		var reply webMessage
		if err := c.conn.ReadJSON(&reply); err != nil {
			return "", fmt.Errorf("read message: %w", err)
		}
		// Chat and console broadcasts arrive with other identifiers.
		if reply.Identifier == id {
			return reply.Message, nil
		}
	}
}

func (c *WebClient) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
