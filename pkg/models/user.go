package models

import "chatcache/pkg/clock"

// User is a contact or account holder. User records are never deleted,
// only superseded by a higher-clock write; contact removal is modeled as
// membership-set mutation on the viewer's contact list.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Bio    string `json:"bio,omitempty"`

	// Linked-credential markers. Presence means the credential is linked;
	// clients manage the meaning of the values.
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
	AppleID     string `json:"apple_id,omitempty"`
	GoogleID    string `json:"google_id,omitempty"`

	Clock clock.Clock `json:"clock"`
}

func (u User) EntityClock() clock.Clock { return u.Clock }

// ContactRequest is a pending inbound contact request.
type ContactRequest struct {
	ID     string `json:"id"`
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	TS     int64  `json:"ts,omitempty"`
}
