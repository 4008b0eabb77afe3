// Package model contains the records exchanged with the feed backend:
// users, profiles, posts, comments and the feed events derived from
// real-time updates.
package model

import (
	"fmt"
	"io"
	"time"
)

// Post is a single feed entry.
type Post struct {
	PostID       ID        `json:"post_id"`
	UserID       ID        `json:"user_id"`
	Content      string    `json:"content"`
	MediaFiles   []string  `json:"media_files,omitempty"`
	LikeCount    int       `json:"like_count"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// String returns a short representation of the post for logging.
func (p *Post) String() string {
	return fmt.Sprintf("Post(id=%s, user=%s, likes=%d, comments=%d)",
		p.PostID, p.UserID, p.LikeCount, p.CommentCount)
}

// Comment is a reply attached to a post.
type Comment struct {
	ID        ID        `json:"id"`
	PostID    ID        `json:"post_id"`
	UserID    ID        `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaFile is an attachment uploaded with a new post.
type MediaFile struct {
	Filename string
	Reader   io.Reader
}

// NewPost is the input for creating a post.
type NewPost struct {
	Content    string
	MediaFiles []MediaFile
}
