package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kozaktomas/photobooth/internal/constants"
)

// Handler receives every well-formed status message.
type Handler func(*Status)

// Client keeps a websocket connection to the gesture feed open,
// reconnecting after the backend drops it.
type Client struct {
	url            string
	handler        Handler
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	readLimit      int64

	connected atomic.Bool
	malformed atomic.Int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithReconnectDelay sets the pause between a dropped connection and the next dial.
func WithReconnectDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.reconnectDelay = d }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *Client) { c.dialer = d }
}

// NewClient creates a feed client for the given ws:// or wss:// URL.
func NewClient(url string, handler Handler, opts ...ClientOption) *Client {
	c := &Client{
		url:            url,
		handler:        handler,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: constants.FeedReconnectDelay,
		readLimit:      constants.FeedReadLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Malformed returns how many messages were dropped as malformed.
func (c *Client) Malformed() int64 {
	return c.malformed.Load()
}

// Run reads the feed until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("gesture feed disconnected", "url", c.url, "error", err, "retry_in", c.reconnectDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dialing gesture feed: %w", err)
	}
	defer conn.Close()
	conn.SetReadLimit(c.readLimit)

	c.connected.Store(true)
	defer c.connected.Store(false)
	slog.Info("gesture feed connected", "url", c.url)

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("closed by backend")
			}
			return fmt.Errorf("reading gesture feed: %w", err)
		}

		status, err := Parse(messageType, data)
		if err != nil {
			c.malformed.Add(1)
			slog.Warn("ignoring gesture feed message", "error", err)
			continue
		}
		c.handler(status)
	}
}
