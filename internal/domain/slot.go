package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotOccupied  SlotStatus = "occupied"
	SlotDamaged   SlotStatus = "damaged"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotAvailable, SlotOccupied, SlotDamaged:
		return true
	}
	return false
}

type VehicleType string

const (
	TwoWheeler  VehicleType = "two_wheeler"
	FourWheeler VehicleType = "four_wheeler"
)

func (v VehicleType) Valid() bool {
	return v == TwoWheeler || v == FourWheeler
}

type Slot struct {
	ID         int         `json:"id"`
	SlotNumber string      `json:"slot_number"`
	SlotType   VehicleType `json:"slot_type"`
	Status     SlotStatus  `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// SlotDetail is a slot joined with the resident holding it long-term, if any.
type SlotDetail struct {
	Slot
	AssignedResidentID   null.Int    `json:"assigned_resident_id"`
	AssignedResidentName null.String `json:"assigned_resident_name"`
}

type SlotDTO struct {
	SlotNumber string      `json:"slot_number" binding:"required"`
	SlotType   VehicleType `json:"slot_type" binding:"required,oneof=two_wheeler four_wheeler"`
	Status     SlotStatus  `json:"status" binding:"omitempty,oneof=available damaged"`
}

// SlotPatch carries the mutable slot attributes. Status is not patchable; it
// only moves through the slot actions (assign, damage, repair, visitors).
type SlotPatch struct {
	SlotNumber *string      `json:"slot_number" binding:"omitempty,min=1"`
	SlotType   *VehicleType `json:"slot_type" binding:"omitempty,oneof=two_wheeler four_wheeler"`
}

func (p SlotPatch) Empty() bool {
	return p.SlotNumber == nil && p.SlotType == nil
}

type AssignSlotDTO struct {
	SlotID int `form:"slot_id" json:"slot_id" binding:"required,min=1"`
}
