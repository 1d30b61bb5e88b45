package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	appErr "github.com/skaldhq/skald/internal/pkg/errors"
)

// pageCursor encodes the sort key of the last returned row. Paging uses a
// strict tuple inequality on (created_at, id), never an offset, so pages
// stay stable under concurrent inserts.
type pageCursor struct {
	Ctime int64  `json:"ctime"`
	ID    string `json:"id"`
}

func encodeCursor(ctime int64, id string) string {
	data, err := json.Marshal(pageCursor{Ctime: ctime, ID: id})
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

func decodeCursor(s string) (*pageCursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", appErr.ErrInvalid)
	}
	var c pageCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", appErr.ErrInvalid)
	}
	if c.ID == "" {
		return nil, fmt.Errorf("%w: malformed cursor", appErr.ErrInvalid)
	}
	return &c, nil
}
