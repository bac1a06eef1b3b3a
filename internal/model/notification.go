package model

import "time"

// NotificationKind classifies stored notifications.
type NotificationKind string

const (
	NotificationKindInfo  NotificationKind = "INFO"
	NotificationKindAlert NotificationKind = "ALERT"
)

// Notification is a stored message for a user. Delivery to an external
// channel (push, email) is out of scope; this table is the boundary.
type Notification struct {
	ID        int              `json:"id"`
	UserID    int              `json:"user_id"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Kind      NotificationKind `json:"kind"`
	CreatedAt time.Time        `json:"created_at"`
}
