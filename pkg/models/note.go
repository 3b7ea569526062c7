package models

// ClientNote is an admin-only free-form note attached to a client.
type ClientNote struct {
	ID        string `json:"id"`
	ClientID  string `json:"client_id"`
	Body      string `json:"body"`
	CreatedTS int64  `json:"created_ts"`
	UpdatedTS int64  `json:"updated_ts,omitempty"`
}
