package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Dialer opens websocket connections to a single endpoint, optionally
// carrying a bearer token as a query parameter.
type Dialer struct {
	endpoint     string
	tokenParam   string
	writeTimeout time.Duration
	dialer       *websocket.Dialer
	logger       zerolog.Logger
}

// NewDialer creates a Dialer for endpoint (ws:// or wss://).
func NewDialer(endpoint, tokenParam string, handshakeTimeout, writeTimeout time.Duration, logger zerolog.Logger) *Dialer {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Dialer{
		endpoint:     endpoint,
		tokenParam:   tokenParam,
		writeTimeout: writeTimeout,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		logger: logger,
	}
}

// URL returns the address dialed for token.
func (d *Dialer) URL(token string) (string, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", d.endpoint, err)
	}
	if token != "" {
		q := u.Query()
		q.Set(d.tokenParam, token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Dial opens a connection. An empty token dials without authentication.
func (d *Dialer) Dial(ctx context.Context, token string) (*Conn, error) {
	target, err := d.URL(token)
	if err != nil {
		return nil, err
	}

	conn, resp, err := d.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	d.logger.Debug().Str("endpoint", d.endpoint).Msg("Websocket connected")
	return &Conn{conn: conn, writeTimeout: d.writeTimeout}, nil
}

// Conn is a text-frame websocket connection.
type Conn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
	closeErr     error
}

// Send writes payload as one text frame.
func (c *Conn) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Receive returns the next data frame. Once the peer closes, the returned
// error is a *websocket.CloseError carrying its code and reason.
func (c *Conn) Receive() ([]byte, error) {
	_, payload, err := c.conn.ReadMessage()
	return payload, err
}

// CloseGracefully sends a close frame. The connection stays readable until
// the peer answers, which ends Receive.
func (c *Conn) CloseGracefully(code int, reason string) error {
	deadline := time.Now().Add(c.writeTimeout)
	err := c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return nil
}

// Close drops the underlying network connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
