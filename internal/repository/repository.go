package repository

import (
	"apartment_parking/internal/domain"
	"context"
	"errors"

	"gopkg.in/guregu/null.v4"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEntry = errors.New("record already exists")
	// ErrSlotUnavailable is returned when a slot cannot be taken: it is not in
	// the expected status, or no slot of the requested type is free.
	ErrSlotUnavailable = errors.New("slot not available")
	// ErrInvalidTransition is returned when a conditional status update finds
	// the row in a status the transition does not start from.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrReferenced is returned when a delete hits a foreign key.
	ErrReferenced = errors.New("record is still referenced")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	FindAll(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)
	// FindByAssignedSlot returns the resident holding the slot long-term.
	FindByAssignedSlot(ctx context.Context, slotID int) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int, patch domain.ProfilePatch) (*domain.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	SetAssignedSlot(ctx context.Context, id int, slotID null.Int) error
	CountByRole(ctx context.Context, role domain.Role) (int, error)
	Delete(ctx context.Context, id int) error
}

// SlotRepository is the only way Slot.Status changes: every mutation is a
// conditional update on the current status.
type SlotRepository interface {
	Create(ctx context.Context, slot *domain.Slot) (*domain.Slot, error)
	FindByID(ctx context.Context, id int) (*domain.Slot, error)
	FindAll(ctx context.Context) ([]domain.SlotDetail, error)
	Update(ctx context.Context, id int, patch domain.SlotPatch) (*domain.Slot, error)
	Delete(ctx context.Context, id int) error
	// CompareAndSetStatus moves the slot to `to` only if its status is one of
	// `from`. ErrNotFound if the slot is missing, ErrSlotUnavailable otherwise.
	CompareAndSetStatus(ctx context.Context, id int, from []domain.SlotStatus, to domain.SlotStatus) (*domain.Slot, error)
	// AllocateAvailable occupies the first available slot of the given type
	// that neither a resident nor an approved visitor holds.
	// ErrSlotUnavailable if there is none.
	AllocateAvailable(ctx context.Context, slotType domain.VehicleType) (*domain.Slot, error)
	CountByStatus(ctx context.Context) (map[domain.SlotStatus]int, error)
}

type VisitorRepository interface {
	Create(ctx context.Context, visitor *domain.Visitor) (*domain.Visitor, error)
	FindByID(ctx context.Context, id int) (*domain.Visitor, error)
	FindAll(ctx context.Context, filter domain.VisitorFilter) ([]domain.VisitorDetail, error)
	// Transition persists status, slot_id and exit_time of v if the stored
	// status still equals `from`. ErrInvalidTransition otherwise.
	Transition(ctx context.Context, v *domain.Visitor, from domain.VisitorStatus) (*domain.Visitor, error)
	// FindHolding returns the approved visitor parked on the slot and locks
	// its row for the rest of the transaction. ErrNotFound if there is none.
	FindHolding(ctx context.Context, slotID int) (*domain.Visitor, error)
	// DeleteInStatus deletes the visitor only if its stored status is one of
	// `statuses` and returns the row as it was deleted. ErrNotFound if the
	// visitor is missing, ErrInvalidTransition otherwise.
	DeleteInStatus(ctx context.Context, id int, statuses []domain.VisitorStatus) (*domain.Visitor, error)
	// DeleteByResident returns the deleted rows so the caller can release
	// exactly the slots they still held.
	DeleteByResident(ctx context.Context, residentID int) ([]domain.Visitor, error)
	CountByStatus(ctx context.Context, status domain.VisitorStatus) (int, error)
}

type RequestRepository interface {
	Create(ctx context.Context, req *domain.Request) (*domain.Request, error)
	FindByID(ctx context.Context, id int) (*domain.Request, error)
	FindAll(ctx context.Context, filter domain.RequestFilter) ([]domain.RequestDetail, error)
	Transition(ctx context.Context, id int, from, to domain.RequestStatus) (*domain.Request, error)
	DeleteByResident(ctx context.Context, residentID int) error
	CountByStatus(ctx context.Context, status domain.RequestStatus) (int, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	FindByUser(ctx context.Context, userID int, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID int) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID int) (int, error)
	CountUnread(ctx context.Context, userID int) (int, error)
	DeleteByUser(ctx context.Context, userID int) error
}

// Repositories groups the entity repositories bound to one connection or transaction.
type Repositories interface {
	Users() UserRepository
	Slots() SlotRepository
	Visitors() VisitorRepository
	Requests() RequestRepository
	Notifications() NotificationRepository
}

// Store is the persistence boundary. WithTx commits when fn returns nil and
// rolls back otherwise.
type Store interface {
	Repositories
	WithTx(ctx context.Context, fn func(tx Repositories) error) error
	Ping(ctx context.Context) error
}
