package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Event
	}{
		{"ping", `{"type":"ping"}`, Ping{}},
		{"pong", `{"type":"pong"}`, Pong{}},
		{"post update", `{"type":"post_update","data":{"post_id":"42","action":"create"}}`,
			PostUpdate{PostID: "42", Action: ActionCreate}},
		{"numeric ids", `{"type":"comment_update","data":{"post_id":5,"comment_id":11,"action":"delete"}}`,
			CommentUpdate{PostID: "5", CommentID: "11", Action: ActionDelete}},
		{"unlike", `{"type":"like_update","data":{"post_id":"5","user_id":"u1","action":"unlike"}}`,
			LikeUpdate{PostID: "5", UserID: "u1", Action: ActionUnlike}},
		{"extra fields ignored", `{"type":"post_update","data":{"post_id":"1","action":"update","by":"x"},"ts":1}`,
			PostUpdate{PostID: "1", Action: ActionUpdate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		err   error
	}{
		{"unknown type", `{"type":"story_update","data":{}}`, ErrUnknownType},
		{"missing type", `{"data":{"post_id":"1"}}`, ErrUnknownType},
		{"like action on post", `{"type":"post_update","data":{"post_id":"1","action":"like"}}`, ErrInvalidAction},
		{"crud action on like", `{"type":"like_update","data":{"post_id":"1","user_id":"2","action":"create"}}`, ErrInvalidAction},
		{"missing post id", `{"type":"post_update","data":{"action":"create"}}`, ErrMissingField},
		{"missing comment id", `{"type":"comment_update","data":{"post_id":"1","action":"create"}}`, ErrMissingField},
		{"missing data", `{"type":"like_update"}`, ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err := Decode([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	frame, err := Encode(Ping{})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"ping"}`, string(frame))

	frame, err = Encode(LikeUpdate{PostID: "9", UserID: "3", Action: ActionLike})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"like_update","data":{"post_id":"9","user_id":"3","action":"like"}}`, string(frame))

	back, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, LikeUpdate{PostID: "9", UserID: "3", Action: ActionLike}, back)
}
