// Package feed keeps a local copy of the post feed and of selected comment
// threads, and keeps both fresh from realtime updates.
package feed

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Guliveer/feedsync-go/internal/constants"
	"github.com/Guliveer/feedsync-go/internal/logger"
	"github.com/Guliveer/feedsync-go/internal/model"
	"github.com/Guliveer/feedsync-go/internal/realtime"
	"github.com/Guliveer/feedsync-go/internal/workerpool"
)

// Source is the subset of the API the watcher reads from.
type Source interface {
	Posts(ctx context.Context, page int) ([]model.Post, error)
	Comments(ctx context.Context, postID model.ID, page int) ([]model.Comment, error)
}

// Subscriber delivers realtime events. *realtime.Client satisfies it.
type Subscriber interface {
	Subscribe(h realtime.Handler) (unsubscribe func())
}

// Config controls a Watcher.
type Config struct {
	// Workers bounds concurrent comment thread refreshes.
	Workers int
	// Watch lists the posts whose comment threads are tracked from the start.
	Watch []model.ID
}

type thread struct {
	comments []model.Comment
	page     int
	hasMore  bool
	loaded   bool
}

// Watcher holds the loaded feed pages and the watched comment threads.
type Watcher struct {
	src     Source
	rt      Subscriber
	log     *logger.Logger
	workers int

	mu      sync.RWMutex
	posts   []model.Post
	page    int
	threads map[model.ID]*thread

	// Refresh requests coalesce here until the run loop picks them up.
	pendingFeed    bool
	pendingThreads map[model.ID]struct{}
	kick           chan struct{}
}

// NewWatcher creates a Watcher. Nothing is fetched until Run or Load.
func NewWatcher(src Source, rt Subscriber, log *logger.Logger, cfg Config) *Watcher {
	if cfg.Workers <= 0 {
		cfg.Workers = constants.DefaultRefreshWorkers
	}

	w := &Watcher{
		src:            src,
		rt:             rt,
		log:            log.Named("feed"),
		workers:        cfg.Workers,
		threads:        make(map[model.ID]*thread),
		pendingThreads: make(map[model.ID]struct{}),
		kick:           make(chan struct{}, 1),
	}
	for _, id := range cfg.Watch {
		if id != "" {
			w.threads[id] = &thread{}
		}
	}
	return w
}

// Run subscribes to realtime events, loads the feed and every watched
// thread, then serves refresh requests until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	unsubscribe := w.rt.Subscribe(w.handleEvent)
	defer unsubscribe()

	if err := w.RefreshAll(ctx); err != nil && ctx.Err() == nil {
		w.log.Warn("Initial feed load incomplete", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.kick:
			w.flush(ctx)
		}
	}
}

// Load fetches one page of the feed. Page 1 replaces the cached list and
// later pages are appended to it.
func (w *Watcher) Load(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}

	posts, err := w.src.Posts(ctx, page)
	if err != nil {
		return fmt.Errorf("loading feed page %d: %w", page, err)
	}

	w.mu.Lock()
	if page == 1 {
		w.posts = slices.Clone(posts)
	} else {
		w.posts = append(w.posts, posts...)
	}
	w.page = page
	total := len(w.posts)
	w.mu.Unlock()

	w.log.Debug("Feed page loaded", "page", page, "posts", len(posts), "total", total)
	return nil
}

// LoadMore fetches the page after the last one loaded and returns how many
// posts it held. Zero means the end of the feed was reached.
func (w *Watcher) LoadMore(ctx context.Context) (int, error) {
	w.mu.RLock()
	next := w.page + 1
	before := len(w.posts)
	w.mu.RUnlock()

	if err := w.Load(ctx, next); err != nil {
		return 0, err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.posts) - before, nil
}

// Posts returns a snapshot of the cached feed.
func (w *Watcher) Posts() []model.Post {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.posts)
}

// Page returns the last feed page loaded.
func (w *Watcher) Page() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.page
}

// Watch starts tracking the comment thread of postID and schedules its load.
func (w *Watcher) Watch(postID model.ID) {
	if postID == "" {
		return
	}

	w.mu.Lock()
	if _, ok := w.threads[postID]; !ok {
		w.threads[postID] = &thread{}
	}
	w.mu.Unlock()

	w.requestThread(postID)
}

// Unwatch stops tracking the comment thread of postID and drops its cache.
func (w *Watcher) Unwatch(postID model.ID) {
	w.mu.Lock()
	delete(w.threads, postID)
	delete(w.pendingThreads, postID)
	w.mu.Unlock()
}

// Watched returns the ids of the tracked threads.
func (w *Watcher) Watched() []model.ID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := make([]model.ID, 0, len(w.threads))
	for id := range w.threads {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Comments returns the cached thread of a watched post. The second result
// is false when the post is not watched or its thread has not loaded yet.
func (w *Watcher) Comments(postID model.ID) ([]model.Comment, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.threads[postID]
	if !ok || !t.loaded {
		return nil, false
	}
	return slices.Clone(t.comments), true
}

// LoadComments fetches one page of a watched thread. Page 1 replaces the
// cached comments and later pages are appended.
func (w *Watcher) LoadComments(ctx context.Context, postID model.ID, page int) error {
	if page < 1 {
		page = 1
	}

	comments, err := w.src.Comments(ctx, postID, page)
	if err != nil {
		return fmt.Errorf("loading comments of post %s page %d: %w", postID, page, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	t, ok := w.threads[postID]
	if !ok {
		// Unwatched while the request was in flight.
		return nil
	}
	if page == 1 {
		t.comments = slices.Clone(comments)
	} else {
		t.comments = append(t.comments, comments...)
	}
	t.page = page
	t.hasMore = len(comments) == constants.CommentPageSize
	t.loaded = true
	return nil
}

// LoadMoreComments fetches the next page of a watched thread if the last
// page was full. It reports whether a page was requested.
func (w *Watcher) LoadMoreComments(ctx context.Context, postID model.ID) (bool, error) {
	w.mu.RLock()
	t, ok := w.threads[postID]
	if !ok || !t.loaded || !t.hasMore {
		w.mu.RUnlock()
		return false, nil
	}
	next := t.page + 1
	w.mu.RUnlock()

	return true, w.LoadComments(ctx, postID, next)
}

// RefreshAll reloads feed page 1 and every watched thread concurrently.
func (w *Watcher) RefreshAll(ctx context.Context) error {
	ids := w.Watched()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Load(gctx, 1)
	})
	g.Go(func() error {
		return workerpool.Run(gctx, ids, w.workers, func(ctx context.Context, id model.ID) error {
			return w.LoadComments(ctx, id, 1)
		})
	})
	return g.Wait()
}

func (w *Watcher) requestFeed() {
	w.mu.Lock()
	w.pendingFeed = true
	w.mu.Unlock()
	w.signal()
}

func (w *Watcher) requestThread(postID model.ID) {
	w.mu.Lock()
	if _, ok := w.threads[postID]; !ok {
		w.mu.Unlock()
		return
	}
	w.pendingThreads[postID] = struct{}{}
	w.mu.Unlock()
	w.signal()
}

func (w *Watcher) signal() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// flush runs every refresh requested since the previous flush.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	feed := w.pendingFeed
	w.pendingFeed = false
	ids := make([]model.ID, 0, len(w.pendingThreads))
	for id := range w.pendingThreads {
		ids = append(ids, id)
	}
	clear(w.pendingThreads)
	w.mu.Unlock()

	if feed {
		if err := w.Load(ctx, 1); err != nil && ctx.Err() == nil {
			w.log.Warn("Feed refresh failed", "error", err)
		}
	}

	err := workerpool.Run(ctx, ids, w.workers, func(ctx context.Context, id model.ID) error {
		return w.LoadComments(ctx, id, 1)
	})
	if err != nil && ctx.Err() == nil {
		w.log.Warn("Comment refresh failed", "error", err)
	}
}
