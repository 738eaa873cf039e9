package models

import "time"

type ConnectionState string

const (
	ConnectionConnecting ConnectionState = "connecting"
	ConnectionOpen       ConnectionState = "open"
	ConnectionClosed     ConnectionState = "close"
)

// ConnectionUpdate reports a transport session change.
type ConnectionUpdate struct {
	State     ConnectionState `json:"connection"`
	SelfID    string          `json:"user_id,omitempty"`
	LoggedOut bool            `json:"logged_out,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	QR        string          `json:"qr,omitempty"`
	Pairing   string          `json:"pairing_code,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
