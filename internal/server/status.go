// Package server provides a lightweight HTTP status server that exposes the
// realtime connection health and the cached feed as JSON.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Guliveer/feedsync-go/internal/constants"
	"github.com/Guliveer/feedsync-go/internal/logger"
	"github.com/Guliveer/feedsync-go/internal/model"
	"github.com/Guliveer/feedsync-go/internal/realtime"
)

// FeedView is the read side of the feed cache. *feed.Watcher satisfies it.
type FeedView interface {
	Posts() []model.Post
	Page() int
	Watched() []model.ID
	Comments(postID model.ID) ([]model.Comment, bool)
}

// ConnectionStatus reports the realtime connection. *realtime.Client
// satisfies it.
type ConnectionStatus interface {
	Status() realtime.Status
}

// StatusServer serves the health and feed JSON endpoints.
type StatusServer struct {
	addr    string
	log     *logger.Logger
	srv     *http.Server
	handler http.Handler

	feed    FeedView
	conn    ConnectionStatus
	started time.Time
}

// NewStatusServer creates a StatusServer bound to the given address.
func NewStatusServer(addr string, feed FeedView, conn ConnectionStatus, log *logger.Logger) *StatusServer {
	s := &StatusServer{
		addr:    addr,
		log:     log.Named("status"),
		feed:    feed,
		conn:    conn,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/posts", s.handlePosts)
	mux.HandleFunc("GET /api/posts/{id}/comments", s.handleComments)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	s.handler = withLogging(s.log, mux)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}

	return s
}

// Handler returns the routed handler, including request logging.
func (s *StatusServer) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs graceful shutdown when the context is done.
func (s *StatusServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until the context is cancelled.
func (s *StatusServer) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("Status server starting", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("status server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Status server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func withLogging(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start).String(),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
