package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketDialer_RoundTrip(t *testing.T) {
	tokens := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		if err := conn.Write(ctx, websocket.MessageBinary, []byte{0x01}); err != nil {
			return
		}
		if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"pong"}`)); err != nil {
			return
		}
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		conn.Write(ctx, typ, data) //nolint:errcheck
		conn.Read(ctx)             //nolint:errcheck
	}))
	defer srv.Close()

	base, err := socketBase(srv.URL)
	require.NoError(t, err)
	rawURL := (&Client{baseURL: base}).socketURL("secret")
	require.True(t, strings.HasPrefix(rawURL, "ws://"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := (&WebSocketDialer{}).Dial(ctx, rawURL)
	require.NoError(t, err)
	defer tr.Close()

	assert.Equal(t, "secret", <-tokens)

	// The binary frame is skipped.
	frame, err := tr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"pong"}`, string(frame))

	require.NoError(t, tr.Write(ctx, []byte(`{"type":"ping"}`)))
	frame, err = tr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ping"}`, string(frame))

	assert.NoError(t, tr.Close())
}

func TestWebSocketDialer_RedactsTokenOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	base, err := socketBase(srv.URL)
	require.NoError(t, err)
	rawURL := (&Client{baseURL: base}).socketURL("secret")

	_, err = (&WebSocketDialer{}).Dial(context.Background(), rawURL)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
	assert.Contains(t, err.Error(), "REDACTED")
}
