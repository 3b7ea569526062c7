package models

// Role identifies one of the two fixed sides of a conversation.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleClient }

// Counterparty returns the opposite side.
func (r Role) Counterparty() Role {
	if r == RoleAdmin {
		return RoleClient
	}
	return RoleAdmin
}

// Thread is the per-client conversation summary. Exactly one thread exists
// per client identity; the admin side has no thread of its own.
type Thread struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	ClientEmail string `json:"client_email,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts"`

	// Last-message summary fields. Advisory UI hints; last-writer-wins
	// under concurrent sends, but LastMessageTS never decreases.
	LastMessageTS      int64  `json:"last_message_ts,omitempty"`
	LastMessagePreview string `json:"last_message_preview,omitempty"`
	LastSenderRole     Role   `json:"last_sender_role,omitempty"`

	UnreadForAdmin  bool `json:"unread_for_admin"`
	UnreadForClient bool `json:"unread_for_client"`

	LastClientMessageTS int64 `json:"last_client_message_ts,omitempty"`
	LastAdminMessageTS  int64 `json:"last_admin_message_ts,omitempty"`

	// Presence
	Online     bool  `json:"online"`
	LastSeenTS int64 `json:"last_seen_ts,omitempty"`

	// Notification throttle state
	NotificationsMuted bool  `json:"notifications_muted,omitempty"`
	LastNotifiedTS     int64 `json:"last_notified_ts,omitempty"`
}
