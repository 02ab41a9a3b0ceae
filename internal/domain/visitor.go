package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type VisitorStatus string

const (
	VisitorPending   VisitorStatus = "pending"
	VisitorApproved  VisitorStatus = "approved"
	VisitorRejected  VisitorStatus = "rejected"
	VisitorCompleted VisitorStatus = "completed"
)

func (s VisitorStatus) Valid() bool {
	switch s {
	case VisitorPending, VisitorApproved, VisitorRejected, VisitorCompleted:
		return true
	}
	return false
}

type Visitor struct {
	ID            int           `json:"id"`
	VisitorName   string        `json:"visitor_name"`
	VehicleNumber string        `json:"vehicle_number"`
	VehicleType   VehicleType   `json:"vehicle_type"`
	EntryTime     time.Time     `json:"entry_time"`
	ExitTime      null.Time     `json:"exit_time"`
	Status        VisitorStatus `json:"status"`
	ResidentID    int           `json:"resident_id"`
	SlotID        null.Int      `json:"slot_id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// HoldsSlot reports whether the visitor currently keeps a slot occupied.
func (v *Visitor) HoldsSlot() bool {
	return v.SlotID.Valid && v.Status == VisitorApproved
}

type VisitorDetail struct {
	Visitor
	ResidentName null.String `json:"resident_name"`
	SlotNumber   null.String `json:"slot_number"`
}

type VisitorFilter struct {
	ResidentID int
	Statuses   []VisitorStatus
	Offset     uint
	Limit      uint
}

// VisitorBookingDTO is the resident pre-booking payload.
type VisitorBookingDTO struct {
	VisitorName   string      `json:"visitor_name" binding:"required"`
	VehicleNumber string      `json:"vehicle_number" binding:"required"`
	VehicleType   VehicleType `json:"vehicle_type" binding:"required,oneof=two_wheeler four_wheeler"`
	EntryTime     time.Time   `json:"entry_time" binding:"required"`
	ExitTime      *time.Time  `json:"exit_time"`
}

// UnplannedVisitorDTO registers a visitor that arrived without a booking.
type UnplannedVisitorDTO struct {
	ResidentID    int         `json:"resident_id" binding:"required,min=1"`
	VisitorName   string      `json:"visitor_name" binding:"required"`
	VehicleNumber string      `json:"vehicle_number" binding:"required"`
	VehicleType   VehicleType `json:"vehicle_type" binding:"required,oneof=two_wheeler four_wheeler"`
	EntryTime     *time.Time  `json:"entry_time"`
}

type PlateScanDTO struct {
	ResidentID  int         `json:"resident_id" binding:"required,min=1"`
	VisitorName string      `json:"visitor_name" binding:"required"`
	VehicleType VehicleType `json:"vehicle_type" binding:"required,oneof=two_wheeler four_wheeler"`
	ImageBase64 string      `json:"image_base64" binding:"required"`
}

type ApproveVisitorDTO struct {
	SlotID int `form:"slot_id" binding:"omitempty,min=1"`
}

type ListQueryDTO struct {
	Status string `form:"status"`
	Skip   uint   `form:"skip"`
	Limit  uint   `form:"limit" binding:"omitempty,max=500"`
}
