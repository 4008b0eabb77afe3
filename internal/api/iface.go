package api

import (
	"context"
	"io"

	"github.com/Guliveer/feedsync-go/internal/model"
)

// Operations is the interface for every backend call.
// *Client satisfies this interface.
type Operations interface {
	BaseURL() string

	Login(ctx context.Context, creds model.LoginCredentials) (string, error)
	Logout() error
	Register(ctx context.Context, creds model.RegisterCredentials) error
	CurrentUser(ctx context.Context) (*model.User, error)
	UpdateAvatar(ctx context.Context, filename string, image io.Reader) error
	GetUserInfo(ctx context.Context, userID model.ID) (*model.User, error)

	Profile(ctx context.Context) (*model.UserProfile, error)
	UpdateProfile(ctx context.Context, upd model.ProfileUpdate) error
	UserProfile(ctx context.Context, userID model.ID) (*model.UserProfile, error)

	Posts(ctx context.Context, page int) ([]model.Post, error)
	UserPosts(ctx context.Context, page int, userID model.ID) ([]model.Post, error)
	AddPost(ctx context.Context, p model.NewPost) error
	Comments(ctx context.Context, postID model.ID, page int) ([]model.Comment, error)
	AddComment(ctx context.Context, postID model.ID, content string) error
	LikePost(ctx context.Context, postID, userID model.ID) error

	WSToken(ctx context.Context) (string, error)
}

var _ Operations = (*Client)(nil)
