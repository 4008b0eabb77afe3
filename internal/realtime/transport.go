package realtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"

	"github.com/Guliveer/feedsync-go/internal/constants"
)

// Transport is one live bidirectional connection carrying text frames.
type Transport interface {
	// Read blocks until the next text frame arrives or the connection fails.
	Read(ctx context.Context) ([]byte, error)
	// Write sends one text frame.
	Write(ctx context.Context, frame []byte) error
	// Close tears the connection down.
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Transport, error)
}

// WebSocketDialer dials WebSocket transports.
type WebSocketDialer struct {
	// HTTPClient is used for the opening handshake; nil means http.DefaultClient.
	HTTPClient *http.Client
	// Header is sent with the opening handshake.
	Header http.Header
	// ReadLimit caps inbound frame size; zero means constants.DefaultReadLimit.
	ReadLimit int64
	// HandshakeTimeout bounds the opening handshake; zero means no limit
	// beyond the caller's context.
	HandshakeTimeout time.Duration
}

// Dial performs the WebSocket handshake against rawURL.
func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string) (Transport, error) {
	if d.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.HandshakeTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(ctx, rawURL, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: d.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", redactToken(rawURL), err)
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = constants.DefaultReadLimit
	}
	conn.SetReadLimit(limit)

	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := t.conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ == websocket.MessageText {
			return data, nil
		}
	}
}

func (t *wsTransport) Write(ctx context.Context, frame []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, frame)
}

func (t *wsTransport) Close() error {
	err := t.conn.Close(websocket.StatusNormalClosure, "closing")
	if err != nil && errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// redactToken hides the token query parameter in log and error output.
func redactToken(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
