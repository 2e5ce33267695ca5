package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/orb-momentum-bot/internal/telemetry"
	"github.com/orb-momentum-bot/pkg/xerrors"
)

// FeedType identifies one of the real-time feeds, per-symbol or
// account-global.
type FeedType string

const (
	FeedTrade     FeedType = typeTrade
	FeedOrderBook FeedType = typeOrderBook
	FeedHalt      FeedType = typeHalt

	// Account-global feeds, registered once at startup.
	FeedOrderUpdate FeedType = typeOrderUpdate
	FeedBalance     FeedType = typeBalance
)

// TokenSource supplies the access token for the LOGIN handshake; satisfied
// by (*brokerclient.Client).AccessToken.
type TokenSource func(ctx context.Context) (string, error)

// Client owns the long-lived brokerage websocket: dial, LOGIN, feed
// registration, and the read loop that turns raw frames into Events. The
// read loop does no CPU-heavy work beyond frame decoding; all
// strategy work happens downstream of the Events channel.
type Client struct {
	wsURL string
	token TokenSource
	log   *telemetry.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	events  chan Event
	loginOK chan error
}

// NewClient creates a Client for wsURL. Events are delivered on a buffered
// channel; the dispatcher must drain it promptly.
func NewClient(wsURL string, token TokenSource, log *telemetry.Logger) *Client {
	return &Client{
		wsURL:   wsURL,
		token:   token,
		log:     log,
		events:  make(chan Event, 1024),
		loginOK: make(chan error, 1),
	}
}

// Events is the stream of parsed inbound events. Closed when the read loop
// exits.
func (c *Client) Events() <-chan Event { return c.events }

// Connect dials the websocket and sends the LOGIN frame. It spawns nothing
// and does not wait for the LOGIN ack, which only the read loop (Run) can
// receive; callers invoke Connect, then Run in its own goroutine, then
// WaitLogin.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w: %v", c.wsURL, xerrors.TransportError, err)
	}
	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	token, err := c.token(ctx)
	if err != nil {
		conn.Close()
		return fmt.Errorf("login token: %w", err)
	}
	if err := c.writeJSON(map[string]string{"trnm": "LOGIN", "token": token}); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// WaitLogin blocks until the LOGIN ack arrives on the read loop or ctx ends.
func (c *Client) WaitLogin(ctx context.Context) error {
	select {
	case err := <-c.loginOK:
		return err
	case <-ctx.Done():
		return fmt.Errorf("login ack: %w: %v", xerrors.TransportError, ctx.Err())
	}
}

// Run is the transport reader loop. It exits on ctx cancellation or a read
// error, closing the Events channel either way.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	c.writeMu.Lock()
	conn := c.conn
	c.writeMu.Unlock()
	if conn == nil {
		return fmt.Errorf("run before connect: %w", xerrors.TransportError)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w: %v", xerrors.TransportError, err)
		}

		var f rawFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.logf("WS", "WARN dropping undecodable frame: %v", err)
			continue
		}

		switch f.TrName {
		case "PING":
			// The broker expects the ping frame echoed back verbatim.
			if err := c.writeRaw(raw); err != nil {
				c.logf("WS", "WARN ping echo failed: %v", err)
			}
			continue
		case "LOGIN":
			var loginErr error
			if !isAcceptedCode(f.ReturnCode) {
				loginErr = fmt.Errorf("login rejected (%s): %w", f.ReturnMsg, xerrors.AuthError)
			}
			select {
			case c.loginOK <- loginErr:
			default:
			}
			continue
		}

		ev, err := parseFrame(f)
		if err != nil {
			// Drop the offending record, log, continue.
			c.logf("WS", "WARN dropping bad frame: %v", err)
			continue
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// Register subscribes the given symbols to one feed type. Account-global
// feeds take no symbols; pass nil.
func (c *Client) Register(feed FeedType, symbols []string) error {
	return c.writeSubscription("REG", feed, symbols)
}

// Unregister removes the given symbols from one feed type.
func (c *Client) Unregister(feed FeedType, symbols []string) error {
	return c.writeSubscription("REMOVE", feed, symbols)
}

func (c *Client) writeSubscription(trnm string, feed FeedType, symbols []string) error {
	if symbols == nil {
		symbols = []string{""}
	}
	frame := map[string]any{
		"trnm":    trnm,
		"grp_no":  "1",
		"refresh": "1",
		"data": []map[string]any{{
			"item": symbols,
			"type": []string{string(feed)},
		}},
	}
	return c.writeJSON(frame)
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) writeJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return c.writeRaw(raw)
}

func (c *Client) writeRaw(raw []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("write on closed transport: %w", xerrors.TransportError)
	}
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("write frame: %w: %v", xerrors.TransportError, err)
	}
	return nil
}

func (c *Client) logf(tag, format string, args ...any) {
	if c.log != nil {
		c.log.Infof(tag, format, args...)
	}
}
