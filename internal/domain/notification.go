package domain

import "time"

// Notification types.
const (
	NotificationClaim   = "claim"
	NotificationPolicy  = "policy"
	NotificationRenewal = "renewal"
)

// Notification is an in-portal message for a user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
