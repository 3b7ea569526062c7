package models

// Attachment is blob metadata belonging to a thread, optionally linked to
// a message. A row with an empty MessageID is an orphan pending linkage;
// linkage is set exactly once and only within the owning thread. Read
// authority flows through thread ownership, not message ownership, because
// linkage can race with read.
type Attachment struct {
	ID         string `json:"id"`
	Thread     string `json:"thread"`
	MessageID  string `json:"message_id,omitempty"`
	UploaderID string `json:"uploader_id"`
	Role       Role   `json:"uploader_role"`
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
	CreatedTS  int64  `json:"created_ts"`
}

// Linked reports whether the attachment has been claimed by a message.
func (a *Attachment) Linked() bool { return a.MessageID != "" }
