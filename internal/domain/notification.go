package domain

import "time"

type NotificationType string

const (
	NotificationVisitorApproval NotificationType = "visitor_approval"
	NotificationSlotRepair      NotificationType = "slot_repair"
	NotificationRequestUpdate   NotificationType = "request_update"
	NotificationSlotAssignment  NotificationType = "slot_assignment"
)

type Notification struct {
	ID        int              `json:"id"`
	UserID    int              `json:"user_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

type NotificationQueryDTO struct {
	UnreadOnly bool `form:"unread_only"`
}
