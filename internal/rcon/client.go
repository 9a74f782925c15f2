// Package rcon talks to a game server's remote console.
package rcon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gorcon "github.com/gorcon/rcon"
	"go.uber.org/zap"
)

// ErrAuthFailed is returned when the server rejects the RCON password.
var ErrAuthFailed = gorcon.ErrAuthFailed

// Executor runs console commands on a game server.
type Executor interface {
	Execute(ctx context.Context, command string) (string, error)
	Close() error
}

// Client is a Source RCON client over TCP. It connects and authenticates on
// first use and serializes commands over a single connection.
type Client struct {
	address  string
	password string
	timeout  time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	conn *gorcon.Conn
}

// NewClient creates a client; no connection is made until the first Execute.
func NewClient(address, password string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		address:  address,
		password: password,
		timeout:  timeout,
		logger:   logger.Named("rcon"),
	}
}

// Execute sends command and returns the response body. A command that fails
// on a reused connection is retried once on a fresh one.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fresh, err := c.connectLocked()
		if err != nil {
			return "", err
		}

		body, err := c.execLocked(ctx, command)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, gorcon.ErrCommandEmpty) || errors.Is(err, gorcon.ErrCommandTooLong) {
			return "", fmt.Errorf("rcon %q: %w", command, err)
		}

		c.dropLocked()
		if fresh || ctx.Err() != nil {
			return "", fmt.Errorf("rcon %q: %w", command, err)
		}
		c.logger.Debug("retrying command on fresh connection", zap.Error(err))
	}
}

// Close drops the connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) connectLocked() (fresh bool, err error) {
	if c.conn != nil {
		return false, nil
	}

	conn, err := gorcon.Dial(c.address, c.password,
		gorcon.SetDialTimeout(c.timeout),
		gorcon.SetDeadline(c.timeout),
	)
	if err != nil {
		return false, fmt.Errorf("connect %s: %w", c.address, err)
	}
	c.conn = conn

	c.logger.Info("connected to game server", zap.String("address", c.address))
	return true, nil
}

// execLocked runs command, abandoning the connection if ctx ends first.
func (c *Client) execLocked(ctx context.Context, command string) (string, error) {
	if ctx.Done() == nil {
		return c.conn.Execute(command)
	}

	type result struct {
		body string
		err  error
	}
	conn := c.conn
	done := make(chan result, 1)
	go func() {
		body, err := conn.Execute(command)
		done <- result{body: body, err: err}
	}()

	select {
	case r := <-done:
		return r.body, r.err
	case <-ctx.Done():
		_ = conn.Close()
		<-done
		return "", ctx.Err()
	}
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
