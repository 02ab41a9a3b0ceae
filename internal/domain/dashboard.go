package domain

type AdminSummary struct {
	TotalSlots      int `json:"total_slots"`
	AvailableSlots  int `json:"available_slots"`
	OccupiedSlots   int `json:"occupied_slots"`
	DamagedSlots    int `json:"damaged_slots"`
	TotalResidents  int `json:"total_residents"`
	PendingVisitors int `json:"pending_visitors"`
	PendingRequests int `json:"pending_requests"`
}

type ResidentDashboard struct {
	AssignedSlot       *Slot           `json:"assigned_slot"`
	ActiveVisitors     []VisitorDetail `json:"active_visitors"`
	PendingRequests    []RequestDetail `json:"pending_requests"`
	NotificationsCount int             `json:"notifications_count"`
}
