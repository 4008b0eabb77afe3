package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Guliveer/feedsync-go/internal/model"
)

// EventType is the "type" discriminator carried by every frame.
type EventType string

// Frame types exchanged with the feed server.
const (
	// TypePing is sent by the client to keep the connection alive.
	TypePing EventType = "ping"
	// TypePong is the server's answer to a ping.
	TypePong EventType = "pong"
	// TypePostUpdate announces a created, edited or deleted post.
	TypePostUpdate EventType = "post_update"
	// TypeCommentUpdate announces a created, edited or deleted comment.
	TypeCommentUpdate EventType = "comment_update"
	// TypeLikeUpdate announces a like or unlike on a post.
	TypeLikeUpdate EventType = "like_update"
)

// Action describes what happened to the entity named by an update.
type Action string

// Update actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionLike   Action = "like"
	ActionUnlike Action = "unlike"
)

var (
	// ErrUnknownType is returned for frames whose type is not recognised.
	ErrUnknownType = errors.New("unknown event type")
	// ErrInvalidAction is returned when an action does not fit the event type.
	ErrInvalidAction = errors.New("invalid event action")
	// ErrMissingField is returned when a required id is absent.
	ErrMissingField = errors.New("missing required field")
)

// Event is one decoded frame. The concrete type is one of Ping, Pong,
// PostUpdate, CommentUpdate or LikeUpdate.
type Event interface {
	Type() EventType
	isEvent()
}

// Ping is the client heartbeat.
type Ping struct{}

// Pong answers a Ping.
type Pong struct{}

// PostUpdate reports a change to a post.
type PostUpdate struct {
	PostID model.ID `json:"post_id"`
	Action Action   `json:"action"`
}

// CommentUpdate reports a change to a comment on a post.
type CommentUpdate struct {
	PostID    model.ID `json:"post_id"`
	CommentID model.ID `json:"comment_id"`
	Action    Action   `json:"action"`
}

// LikeUpdate reports a user liking or unliking a post.
type LikeUpdate struct {
	PostID model.ID `json:"post_id"`
	UserID model.ID `json:"user_id"`
	Action Action   `json:"action"`
}

func (Ping) Type() EventType          { return TypePing }
func (Pong) Type() EventType          { return TypePong }
func (PostUpdate) Type() EventType    { return TypePostUpdate }
func (CommentUpdate) Type() EventType { return TypeCommentUpdate }
func (LikeUpdate) Type() EventType    { return TypeLikeUpdate }

func (Ping) isEvent()          {}
func (Pong) isEvent()          {}
func (PostUpdate) isEvent()    {}
func (CommentUpdate) isEvent() {}
func (LikeUpdate) isEvent()    {}

// envelope is the wire form of every frame.
type envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Decode parses one text frame into its Event variant.
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("parsing frame: %w", err)
	}

	switch env.Type {
	case TypePing:
		return Ping{}, nil
	case TypePong:
		return Pong{}, nil
	case TypePostUpdate:
		var ev PostUpdate
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		if ev.PostID == "" {
			return nil, fmt.Errorf("%s: post_id: %w", env.Type, ErrMissingField)
		}
		if !isCrudAction(ev.Action) {
			return nil, fmt.Errorf("%s: %q: %w", env.Type, ev.Action, ErrInvalidAction)
		}
		return ev, nil
	case TypeCommentUpdate:
		var ev CommentUpdate
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		if ev.PostID == "" || ev.CommentID == "" {
			return nil, fmt.Errorf("%s: post_id/comment_id: %w", env.Type, ErrMissingField)
		}
		if !isCrudAction(ev.Action) {
			return nil, fmt.Errorf("%s: %q: %w", env.Type, ev.Action, ErrInvalidAction)
		}
		return ev, nil
	case TypeLikeUpdate:
		var ev LikeUpdate
		if err := decodeData(env, &ev); err != nil {
			return nil, err
		}
		if ev.PostID == "" || ev.UserID == "" {
			return nil, fmt.Errorf("%s: post_id/user_id: %w", env.Type, ErrMissingField)
		}
		if ev.Action != ActionLike && ev.Action != ActionUnlike {
			return nil, fmt.Errorf("%s: %q: %w", env.Type, ev.Action, ErrInvalidAction)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%q: %w", env.Type, ErrUnknownType)
	}
}

// Encode renders an Event as a text frame.
func Encode(ev Event) ([]byte, error) {
	env := envelope{Type: ev.Type()}

	switch ev.(type) {
	case Ping, Pong:
	default:
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s data: %w", ev.Type(), err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}

func decodeData(env envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: data: %w", env.Type, ErrMissingField)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("parsing %s data: %w", env.Type, err)
	}
	return nil
}

func isCrudAction(a Action) bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}
