package social

import "time"

// Event is an immutable post read from the social platform. IDs are
// platform-unique and increase monotonically, so the highest id seen is a
// valid since-id watermark.
type Event struct {
	ID            string    `json:"id"`
	AuthorHandle  string    `json:"author_handle"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
	QuotedEventID string    `json:"quoted_event_id,omitempty"`
	IsRepost      bool      `json:"is_repost"`
	InReplyToID   string    `json:"in_reply_to_id,omitempty"`
}

// IsQuote reports whether the event quotes another post.
func (e *Event) IsQuote() bool {
	return e.QuotedEventID != ""
}
