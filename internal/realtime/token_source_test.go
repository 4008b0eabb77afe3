package realtime

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/feedsync-go/internal/api"
	"github.com/Guliveer/feedsync-go/internal/auth"
	"github.com/Guliveer/feedsync-go/internal/logger"
)

func TestClient_APITokenFetchOncePerAttempt(t *testing.T) {
	var tokenHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws/token" {
			tokenHits.Add(1)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	tokens, err := api.NewClient(srv.URL, auth.NewTokenStore(""), logger.Discard())
	require.NoError(t, err)

	clock := &fakeClock{}
	dialer := &fakeDialer{}
	newTestClient(t, tokens, dialer, clock)

	clock.fire(clock.waitPending(t, time.Second))
	clock.waitPending(t, 2*time.Second)

	assert.Equal(t, int32(2), tokenHits.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.delays())
	assert.Zero(t, dialer.dials())
}
