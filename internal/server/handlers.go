package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Guliveer/feedsync-go/internal/model"
	"github.com/Guliveer/feedsync-go/internal/realtime"
)

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.conn.Status()

	status := "ok"
	code := http.StatusOK
	switch {
	case st.Closed:
		status = "stopped"
		code = http.StatusServiceUnavailable
	case st.Exhausted:
		status = "disconnected"
		code = http.StatusServiceUnavailable
	case st.State != realtime.StateOpen:
		status = "degraded"
	}

	writeJSON(w, code, healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Realtime: realtimeStatus{
			State:     st.State.String(),
			Attempts:  st.Attempts,
			Exhausted: st.Exhausted,
		},
	})
}

func (s *StatusServer) handlePosts(w http.ResponseWriter, _ *http.Request) {
	posts := s.feed.Posts()
	if posts == nil {
		posts = []model.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *StatusServer) handleComments(w http.ResponseWriter, r *http.Request) {
	id := model.ID(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing post id"})
		return
	}

	comments, ok := s.feed.Comments(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "post is not watched"})
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *StatusServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	posts := s.feed.Posts()

	stats := feedStats{
		Posts:   len(posts),
		Page:    s.feed.Page(),
		Watched: s.feed.Watched(),
	}
	for _, p := range posts {
		stats.Likes += p.LikeCount
		stats.Comments += p.CommentCount
	}
	if stats.Watched == nil {
		stats.Watched = []model.ID{}
	}

	writeJSON(w, http.StatusOK, stats)
}

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Uptime    string         `json:"uptime"`
	Realtime  realtimeStatus `json:"realtime"`
}

type realtimeStatus struct {
	State     string `json:"state"`
	Attempts  int    `json:"attempts"`
	Exhausted bool   `json:"exhausted"`
}

type feedStats struct {
	Posts    int        `json:"posts"`
	Page     int        `json:"page"`
	Likes    int        `json:"likes"`
	Comments int        `json:"comments"`
	Watched  []model.ID `json:"watched"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}
