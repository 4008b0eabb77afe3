// Package constants defines the feed API routes, cookie attributes,
// real-time defaults and timeout values used throughout feedsync.
package constants

import "time"

const (
	// DefaultBaseURL is the feed backend the original web client talked to.
	DefaultBaseURL = "http://localhost:7878"
	// UserAgent identifies feedsync on every HTTP request.
	UserAgent = "feedsync-go/1.0"
)

// HTTP API routes relative to the base URL.
const (
	RouteLogin          = "/login"
	RouteRegister       = "/register"
	RouteUserAuth       = "/user/auth"
	RouteUpdateAvatar   = "/user/updata_head"
	RouteGetUser        = "/user/get_user"
	RouteProfile        = "/user/profile"
	RouteUserProfileFmt = "/user/%s/profile"
	RoutePosts          = "/posts"
	RouteUserPosts      = "/get_user_posts"
	RouteAddPost        = "/posts/add_post"
	RouteCommentsFmt    = "/posts/%s/comment"
	RouteAddCommentFmt  = "/posts/%s/comment/add_comment"
	RouteLikeFmt        = "/posts/%s/like/%s"
	RouteWSToken        = "/ws/token"
	// RouteWS is the real-time endpoint; the token goes in the query string.
	RouteWS = "/ws"
)

const (
	// TokenCookieName is the cookie that carries the bearer token.
	TokenCookieName = "token"
	// TokenCookieMaxAge is the cookie lifetime (7 days).
	TokenCookieMaxAge = 604800
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 15 * time.Second
	// DefaultMaxRetries is the default number of retries for API requests.
	DefaultMaxRetries = 3
	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes = 4 << 20

	// DefaultMaxReconnectAttempts bounds consecutive real-time reconnects.
	DefaultMaxReconnectAttempts = 5
	// DefaultReconnectInterval is the linear backoff base (1s, 2s, 3s, ...).
	DefaultReconnectInterval = time.Second
	// DefaultHeartbeatInterval is the interval between real-time pings.
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 10 * time.Second
	// DefaultReadLimit is the largest inbound frame accepted.
	DefaultReadLimit = 128 << 10
	// ExhaustedRetryDelay is how long the daemon waits before starting a new
	// connection cycle once reconnect attempts ran out.
	ExhaustedRetryDelay = 5 * time.Minute

	// CommentPageSize is the page size the backend uses for comments.
	CommentPageSize = 10
	// DefaultRefreshWorkers bounds concurrent comment thread refreshes.
	DefaultRefreshWorkers = 4

	// DefaultGracefulShutdownTimeout is the timeout for graceful HTTP server shutdown.
	DefaultGracefulShutdownTimeout = 5 * time.Second
)
