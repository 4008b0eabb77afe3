package feed

import (
	"context"
	"fmt"
	"slices"

	"github.com/Guliveer/feedsync-go/internal/model"
	"github.com/Guliveer/feedsync-go/internal/realtime"
	"github.com/Guliveer/feedsync-go/internal/utils"
)

// handleEvent runs on the realtime reader goroutine. It only touches the
// cache briefly and queues refreshes for the run loop.
func (w *Watcher) handleEvent(ev realtime.Event) {
	ctx := context.Background()

	switch e := ev.(type) {
	case realtime.PostUpdate:
		w.handlePostUpdate(ctx, e)
	case realtime.CommentUpdate:
		w.handleCommentUpdate(ctx, e)
	case realtime.LikeUpdate:
		w.handleLikeUpdate(ctx, e)
	case realtime.Pong:
		w.log.Debug("Realtime pong received")
	default:
		w.log.Debug("Unhandled realtime event", "type", ev.Type())
	}
}

func (w *Watcher) handlePostUpdate(ctx context.Context, e realtime.PostUpdate) {
	var event model.Event
	var msg string
	switch e.Action {
	case realtime.ActionCreate:
		event, msg = model.EventPostCreated, "New post"
	case realtime.ActionUpdate:
		event, msg = model.EventPostUpdated, "Post edited"
	case realtime.ActionDelete:
		event, msg = model.EventPostDeleted, "Post deleted"
		w.removePost(e.PostID)
		w.Unwatch(e.PostID)
	}

	w.log.Event(ctx, event, msg, "post_id", e.PostID.String())
	w.requestFeed()
}

func (w *Watcher) handleCommentUpdate(ctx context.Context, e realtime.CommentUpdate) {
	var event model.Event
	var msg string
	switch e.Action {
	case realtime.ActionCreate:
		event, msg = model.EventCommentCreated, "New comment"
		w.adjustPost(e.PostID, func(p *model.Post) { p.CommentCount++ })
	case realtime.ActionUpdate:
		event, msg = model.EventCommentUpdated, "Comment edited"
	case realtime.ActionDelete:
		event, msg = model.EventCommentDeleted, "Comment deleted"
		w.adjustPost(e.PostID, func(p *model.Post) { p.CommentCount = max(p.CommentCount-1, 0) })
	}

	w.log.Event(ctx, event, msg,
		"post_id", e.PostID.String(),
		"comment_id", e.CommentID.String())
	w.requestThread(e.PostID)
}

func (w *Watcher) handleLikeUpdate(ctx context.Context, e realtime.LikeUpdate) {
	event, msg, delta := model.EventPostLiked, "Post liked", 1
	if e.Action == realtime.ActionUnlike {
		event, msg, delta = model.EventPostUnliked, "Post unliked", -1
	}

	likes, known := w.adjustPost(e.PostID, func(p *model.Post) {
		p.LikeCount = max(p.LikeCount+delta, 0)
	})

	args := []any{"post_id", e.PostID.String(), "user_id", e.UserID.String()}
	if known {
		args = append(args, "likes", utils.Millify(likes, 1))
	}
	w.log.Event(ctx, event, msg, args...)
	w.requestFeed()
}

// adjustPost applies fn to the cached post and returns its like count.
// Cached counts are provisional until the next refresh replaces them.
func (w *Watcher) adjustPost(postID model.ID, fn func(*model.Post)) (likes int, found bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.posts {
		if w.posts[i].PostID == postID {
			fn(&w.posts[i])
			return w.posts[i].LikeCount, true
		}
	}
	return 0, false
}

func (w *Watcher) removePost(postID model.ID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.posts = slices.DeleteFunc(w.posts, func(p model.Post) bool { return p.PostID == postID })
}

// String summarises the cache for logs.
func (w *Watcher) String() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return fmt.Sprintf("Feed(page=%d, posts=%d, threads=%d)", w.page, len(w.posts), len(w.threads))
}
