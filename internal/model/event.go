package model

import "strings"

// Event is a feed-level occurrence that is logged and may trigger notifications.
type Event string

// All supported feed events.
const (
	EventPostCreated       Event = "POST_CREATED"
	EventPostUpdated       Event = "POST_UPDATED"
	EventPostDeleted       Event = "POST_DELETED"
	EventCommentCreated    Event = "COMMENT_CREATED"
	EventCommentUpdated    Event = "COMMENT_UPDATED"
	EventCommentDeleted    Event = "COMMENT_DELETED"
	EventPostLiked         Event = "POST_LIKED"
	EventPostUnliked       Event = "POST_UNLIKED"
	EventRealtimeConnected Event = "REALTIME_CONNECTED"
	EventRealtimeLost      Event = "REALTIME_LOST"
	EventTest              Event = "TEST"
)

// AllEvents returns a slice of all defined events.
func AllEvents() []Event {
	return []Event{
		EventPostCreated,
		EventPostUpdated,
		EventPostDeleted,
		EventCommentCreated,
		EventCommentUpdated,
		EventCommentDeleted,
		EventPostLiked,
		EventPostUnliked,
		EventRealtimeConnected,
		EventRealtimeLost,
		EventTest,
	}
}

// String returns the string representation of an Event.
func (e Event) String() string {
	return string(e)
}

// ParseEvent converts a string to an Event. Matching ignores case.
// Returns empty string if invalid.
func ParseEvent(s string) Event {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, e := range AllEvents() {
		if string(e) == s {
			return e
		}
	}
	return ""
}
