package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Guliveer/feedsync-go/internal/constants"
	"github.com/Guliveer/feedsync-go/internal/model"
)

// ErrEmptyToken is returned when the backend answers a token request
// without a token.
var ErrEmptyToken = errors.New("empty token in response")

func jsonRequest(op, method, path string, v any) (request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return request{}, fmt.Errorf("marshaling %s request: %w", op, err)
	}
	return request{
		op:          op,
		method:      method,
		path:        path,
		body:        body,
		contentType: "application/json",
	}, nil
}

func decode[T any](op string, body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("parsing %s response: %w", op, err)
	}
	return v, nil
}

// form accumulates a multipart body.
type form struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newForm() *form {
	f := &form{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *form) field(name, value string) {
	if f.err != nil || value == "" {
		return
	}
	f.err = f.w.WriteField(name, value)
}

func (f *form) file(name, filename string, r io.Reader) {
	if f.err != nil || r == nil {
		return
	}
	if filename == "" {
		filename = name
	}
	part, err := f.w.CreateFormFile(name, filename)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = io.Copy(part, r)
}

func (f *form) request(op, method, path string) (request, error) {
	if f.err != nil {
		return request{}, fmt.Errorf("building %s form: %w", op, f.err)
	}
	if err := f.w.Close(); err != nil {
		return request{}, fmt.Errorf("building %s form: %w", op, err)
	}
	return request{
		op:          op,
		method:      method,
		path:        path,
		body:        f.buf.Bytes(),
		contentType: f.w.FormDataContentType(),
	}, nil
}

func pageQuery(page int) url.Values {
	if page < 1 {
		page = 1
	}
	return url.Values{"page": {strconv.Itoa(page)}}
}

// parseLoginToken accepts either a JSON string or a bare text token.
func parseLoginToken(body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", ErrEmptyToken
	}

	var token string
	if err := json.Unmarshal([]byte(trimmed), &token); err == nil {
		if token == "" {
			return "", ErrEmptyToken
		}
		return token, nil
	}

	if strings.ContainsAny(trimmed[:1], "{[\"") {
		return "", fmt.Errorf("unexpected login response format: %s", trimBody(body))
	}
	return trimmed, nil
}

// Login authenticates and stores the returned token in the session.
func (c *Client) Login(ctx context.Context, creds model.LoginCredentials) (string, error) {
	req, err := jsonRequest("Login", http.MethodPost, constants.RouteLogin, creds)
	if err != nil {
		return "", err
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}

	token, err := parseLoginToken(body)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if err := c.session.Set(token); err != nil {
		return "", fmt.Errorf("storing session token: %w", err)
	}

	c.log.Info("Logged in", "username", creds.Username)
	return token, nil
}

// Logout forgets the stored token.
func (c *Client) Logout() error {
	if err := c.session.Clear(); err != nil {
		return fmt.Errorf("clearing session token: %w", err)
	}
	c.log.Info("Logged out")
	return nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, creds model.RegisterCredentials) error {
	req, err := jsonRequest("Register", http.MethodPost, constants.RouteRegister, creds)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}

// CurrentUser returns the account the stored token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	body, err := c.do(ctx, request{op: "CurrentUser", method: http.MethodGet, path: constants.RouteUserAuth})
	if err != nil {
		return nil, err
	}
	user, err := decode[model.User]("CurrentUser", body)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateAvatar uploads a new avatar image.
func (c *Client) UpdateAvatar(ctx context.Context, filename string, image io.Reader) error {
	f := newForm()
	f.file("avatar", filename, image)
	req, err := f.request("UpdateAvatar", http.MethodPost, constants.RouteUpdateAvatar)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}

// GetUserInfo looks up a user by id.
func (c *Client) GetUserInfo(ctx context.Context, userID model.ID) (*model.User, error) {
	req, err := jsonRequest("GetUserInfo", http.MethodPost, constants.RouteGetUser,
		map[string]string{"userId": userID.String()})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	user, err := decode[model.User]("GetUserInfo", body)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Profile returns the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (*model.UserProfile, error) {
	body, err := c.do(ctx, request{op: "Profile", method: http.MethodGet, path: constants.RouteProfile})
	if err != nil {
		return nil, err
	}
	p, err := decode[model.UserProfile]("Profile", body)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile edits the signed-in user's profile. Empty fields are not sent.
func (c *Client) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) error {
	f := newForm()
	f.field("username", upd.Username)
	f.field("bio", upd.Bio)
	f.file("avatar", upd.AvatarFilename, upd.Avatar)
	req, err := f.request("UpdateProfile", http.MethodPut, constants.RouteProfile)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}

// UserProfile returns another user's public profile.
func (c *Client) UserProfile(ctx context.Context, userID model.ID) (*model.UserProfile, error) {
	path := fmt.Sprintf(constants.RouteUserProfileFmt, url.PathEscape(userID.String()))
	body, err := c.do(ctx, request{op: "UserProfile", method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}
	p, err := decode[model.UserProfile]("UserProfile", body)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Posts returns one page of the global feed.
func (c *Client) Posts(ctx context.Context, page int) ([]model.Post, error) {
	body, err := c.do(ctx, request{op: "Posts", method: http.MethodGet, path: constants.RoutePosts, query: pageQuery(page)})
	if err != nil {
		return nil, err
	}
	return decode[[]model.Post]("Posts", body)
}

// UserPosts returns one page of a single user's posts.
func (c *Client) UserPosts(ctx context.Context, page int, userID model.ID) ([]model.Post, error) {
	q := pageQuery(page)
	q.Set("user_id", userID.String())
	body, err := c.do(ctx, request{op: "UserPosts", method: http.MethodGet, path: constants.RouteUserPosts, query: q})
	if err != nil {
		return nil, err
	}
	return decode[[]model.Post]("UserPosts", body)
}

// AddPost publishes a post with optional media attachments.
func (c *Client) AddPost(ctx context.Context, p model.NewPost) error {
	f := newForm()
	if f.err == nil {
		f.err = f.w.WriteField("content", p.Content)
	}
	for _, m := range p.MediaFiles {
		f.file("media_files", m.Filename, m.Reader)
	}
	req, err := f.request("AddPost", http.MethodPost, constants.RouteAddPost)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}

// Comments returns one page of a post's comments. A page shorter than
// constants.CommentPageSize is the last one.
func (c *Client) Comments(ctx context.Context, postID model.ID, page int) ([]model.Comment, error) {
	path := fmt.Sprintf(constants.RouteCommentsFmt, url.PathEscape(postID.String()))
	body, err := c.do(ctx, request{op: "Comments", method: http.MethodGet, path: path, query: pageQuery(page)})
	if err != nil {
		return nil, err
	}
	return decode[[]model.Comment]("Comments", body)
}

// AddComment posts a comment on a post.
func (c *Client) AddComment(ctx context.Context, postID model.ID, content string) error {
	path := fmt.Sprintf(constants.RouteAddCommentFmt, url.PathEscape(postID.String()))
	req, err := jsonRequest("AddComment", http.MethodPost, path, map[string]string{"content": content})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, req)
	return err
}

// LikePost records userID liking postID.
func (c *Client) LikePost(ctx context.Context, postID, userID model.ID) error {
	path := fmt.Sprintf(constants.RouteLikeFmt, url.PathEscape(postID.String()), url.PathEscape(userID.String()))
	_, err := c.do(ctx, request{op: "LikePost", method: http.MethodPost, path: path})
	return err
}

// WSToken fetches a short-lived token for the realtime connection. It is
// sent once with no retries; the realtime client schedules its own.
func (c *Client) WSToken(ctx context.Context) (string, error) {
	body, err := c.do(ctx, request{op: "WSToken", method: http.MethodGet, path: constants.RouteWSToken, oneShot: true})
	if err != nil {
		return "", err
	}
	resp, err := decode[struct {
		Token string `json:"token"`
	}]("WSToken", body)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", ErrEmptyToken
	}
	return resp.Token, nil
}
