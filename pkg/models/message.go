package models

// TombstoneBody is substituted for the body of soft-deleted messages on
// every read path. The stored body is retained physically.
const TombstoneBody = "[Message deleted]"

// Message belongs to exactly one thread. Body holds ciphertext at rest and
// plaintext only in transit to an authorized reader. OriginalBody is set
// once, at first edit, to the pre-edit ciphertext and never overwritten
// again.
type Message struct {
	ID         string `json:"id"`
	Thread     string `json:"thread"`
	SenderRole Role   `json:"sender_role"`
	Body       string `json:"body"`
	// Preserved first pre-edit value (ciphertext at rest).
	OriginalBody string `json:"original_body,omitempty"`
	// Timestamps (ns). EditedTS/DeletedTS stay zero until first edit /
	// soft-delete. ReadByClientTS is meaningful only for admin-authored
	// messages (the admin-facing read receipt).
	CreatedTS      int64 `json:"created_ts"`
	EditedTS       int64 `json:"edited_ts,omitempty"`
	DeletedTS      int64 `json:"deleted_ts,omitempty"`
	DeliveredTS    int64 `json:"delivered_ts,omitempty"`
	ReadByClientTS int64 `json:"read_by_client_ts,omitempty"`

	ReplyTo       string   `json:"reply_to,omitempty"`
	AttachmentIDs []string `json:"attachment_ids,omitempty"`
}

// Deleted reports whether the message carries a soft-delete tombstone.
func (m *Message) Deleted() bool { return m.DeletedTS != 0 }
