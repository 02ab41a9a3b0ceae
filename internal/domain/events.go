package domain

// Push event kinds sent over the real-time channel.
const (
	EventNotification           = "notification"
	EventVisitorApprovalRequest = "visitor_approval_request"
)

// NotificationEvent mirrors a stored Notification on the push channel.
type NotificationEvent struct {
	Type             string           `json:"type"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	NotificationType NotificationType `json:"notification_type"`
}

func NewNotificationEvent(n Notification) NotificationEvent {
	return NotificationEvent{
		Type:             EventNotification,
		Title:            n.Title,
		Message:          n.Message,
		NotificationType: n.Type,
	}
}

// VisitorApprovalRequestEvent asks a resident to approve or reject an unplanned visitor.
type VisitorApprovalRequestEvent struct {
	Type        string  `json:"type"`
	VisitorData Visitor `json:"visitor_data"`
}

func NewVisitorApprovalRequestEvent(v Visitor) VisitorApprovalRequestEvent {
	return VisitorApprovalRequestEvent{Type: EventVisitorApprovalRequest, VisitorData: v}
}

// SlotStatusMessage is published to the slot indicator topic after a status change.
type SlotStatusMessage struct {
	SlotID     int         `json:"slot_id"`
	SlotNumber string      `json:"slot_number"`
	SlotType   VehicleType `json:"slot_type"`
	Status     SlotStatus  `json:"status"`
	ChangedAt  string      `json:"changed_at"`
}
