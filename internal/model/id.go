package model

import (
	"encoding/json"

	"github.com/Guliveer/feedsync-go/internal/jsonutil"
)

// ID is a record identifier. The backend sends ids either as JSON strings
// or as numbers; both decode to the same string form.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := jsonutil.StringFromRaw(data)
	if err != nil {
		return err
	}
	*id = ID(s)
	return nil
}

// String returns the id as a plain string.
func (id ID) String() string {
	return string(id)
}

var _ json.Unmarshaler = (*ID)(nil)
