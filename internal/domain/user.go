package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleResident Role = "resident"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleResident
}

type User struct {
	ID             int         `json:"id"`
	Email          string      `json:"email"`
	Password       string      `json:"-"` // bcrypt hash, never serialized
	FullName       string      `json:"full_name"`
	Role           Role        `json:"role"`
	FlatNumber     null.String `json:"flat_number"`
	PhoneNumber    null.String `json:"phone_number"`
	VehicleType    null.String `json:"vehicle_type"`
	AssignedSlotID null.Int    `json:"assigned_slot_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type UserFilter struct {
	Role Role
}

type RegisterUserDTO struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6,max=100"`
	FullName    string `json:"full_name" binding:"required"`
	Role        Role   `json:"role" binding:"required,oneof=admin resident"`
	FlatNumber  string `json:"flat_number"`
	PhoneNumber string `json:"phone_number"`
	VehicleType string `json:"vehicle_type" binding:"omitempty,oneof=two_wheeler four_wheeler"`
}

type LoginUserDTO struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponseDTO struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// ProfilePatch lists the profile fields a resident may change. Nil means unchanged.
type ProfilePatch struct {
	FullName    *string `json:"full_name" binding:"omitempty,min=1"`
	PhoneNumber *string `json:"phone_number"`
	VehicleType *string `json:"vehicle_type" binding:"omitempty,oneof=two_wheeler four_wheeler"`
}

func (p ProfilePatch) Empty() bool {
	return p.FullName == nil && p.PhoneNumber == nil && p.VehicleType == nil
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6,max=100"`
}

// CreateResidentDTO is the admin's resident onboarding payload; the role is implied.
type CreateResidentDTO struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6,max=100"`
	FullName    string `json:"full_name" binding:"required"`
	FlatNumber  string `json:"flat_number" binding:"required"`
	PhoneNumber string `json:"phone_number"`
	VehicleType string `json:"vehicle_type" binding:"omitempty,oneof=two_wheeler four_wheeler"`
}

func (d CreateResidentDTO) Registration() RegisterUserDTO {
	return RegisterUserDTO{
		Email:       d.Email,
		Password:    d.Password,
		FullName:    d.FullName,
		Role:        RoleResident,
		FlatNumber:  d.FlatNumber,
		PhoneNumber: d.PhoneNumber,
		VehicleType: d.VehicleType,
	}
}
