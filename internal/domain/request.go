package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type RequestType string

const (
	RequestSlotChange   RequestType = "slot_change"
	RequestDamageReport RequestType = "damage_report"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestCompleted RequestStatus = "completed"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected, RequestCompleted:
		return true
	}
	return false
}

type Request struct {
	ID          int           `json:"id"`
	RequestType RequestType   `json:"request_type"`
	Description string        `json:"description"`
	Status      RequestStatus `json:"status"`
	ResidentID  int           `json:"resident_id"`
	SlotID      int           `json:"slot_id"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type RequestDetail struct {
	Request
	ResidentName null.String `json:"resident_name"`
	SlotNumber   null.String `json:"slot_number"`
}

type RequestFilter struct {
	ResidentID  int
	Status      RequestStatus
	RequestType RequestType
	Offset      uint
	Limit       uint
}

type SlotChangeRequestDTO struct {
	Reason            string      `json:"reason" binding:"required"`
	PreferredSlotType VehicleType `json:"preferred_slot_type" binding:"omitempty,oneof=two_wheeler four_wheeler"`
}

type DamageReportDTO struct {
	Description string `json:"description" binding:"required"`
}
