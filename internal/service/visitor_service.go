package service

import (
	"apartment_parking/internal/domain"
	"apartment_parking/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/guregu/null.v4"
)

// VisitorService drives the visitor lifecycle. Every path that takes a slot
// goes through AllocateAvailable or a compare-and-set from available.
type VisitorService struct {
	store      repository.Store
	dispatcher *Dispatcher
	now        func() time.Time
}

func NewVisitorService(store repository.Store, dispatcher *Dispatcher) *VisitorService {
	return &VisitorService{store: store, dispatcher: dispatcher, now: time.Now}
}

// Book pre-registers a visitor for a resident. The visitor is approved at once
// and takes the first available slot of its vehicle type.
func (s *VisitorService) Book(ctx context.Context, resident *domain.User, dto domain.VisitorBookingDTO) (*domain.Visitor, error) {
	var out *domain.Visitor
	err := s.dispatcher.run(ctx, func(tx repository.Repositories, fx *effects) error {
		slot, err := tx.Slots().AllocateAvailable(ctx, dto.VehicleType)
		if err != nil {
			return err
		}
		fx.slotChanged(slot)

		v := &domain.Visitor{
			VisitorName:   dto.VisitorName,
			VehicleNumber: dto.VehicleNumber,
			VehicleType:   dto.VehicleType,
			EntryTime:     dto.EntryTime.UTC(),
			ExitTime:      null.TimeFromPtr(dto.ExitTime),
			Status:        domain.VisitorApproved,
			ResidentID:    resident.ID,
			SlotID:        null.IntFrom(int64(slot.ID)),
		}
		out, err = tx.Visitors().Create(ctx, v)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("visitor_id", out.ID).Int("resident_id", resident.ID).Int64("slot_id", out.SlotID.Int64).Msg("visitor booked")
	return out, nil
}

// RegisterUnplanned records a visitor that arrived without a booking. It stays
// pending, without a slot, until the resident or an admin approves it.
func (s *VisitorService) RegisterUnplanned(ctx context.Context, dto domain.UnplannedVisitorDTO) (*domain.Visitor, error) {
	entry := s.now().UTC()
	if dto.EntryTime != nil {
		entry = dto.EntryTime.UTC()
	}

	var out *domain.Visitor
	err := s.dispatcher.run(ctx, func(tx repository.Repositories, fx *effects) error {
		resident, err := findResident(ctx, tx, dto.ResidentID)
		if err != nil {
			return err
		}
		v, err := tx.Visitors().Create(ctx, &domain.Visitor{
			VisitorName:   dto.VisitorName,
			VehicleNumber: dto.VehicleNumber,
			VehicleType:   dto.VehicleType,
			EntryTime:     entry,
			Status:        domain.VisitorPending,
			ResidentID:    resident.ID,
		})
		if err != nil {
			return err
		}
		if _, err := createNotification(ctx, tx, resident.ID, domain.NotificationVisitorApproval,
			"Visitor Awaiting Approval",
			fmt.Sprintf("%s (%s) is at the gate and needs your approval.", v.VisitorName, v.VehicleNumber)); err != nil {
			return err
		}
		fx.push(resident.ID, domain.NewVisitorApprovalRequestEvent(*v))
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("visitor_id", out.ID).Int("resident_id", out.ResidentID).Msg("unplanned visitor registered")
	return out, nil
}

func (s *VisitorService) ListForResident(ctx context.Context, residentID int, statuses ...domain.VisitorStatus) ([]domain.VisitorDetail, error) {
	return s.store.Visitors().FindAll(ctx, domain.VisitorFilter{ResidentID: residentID, Statuses: statuses})
}

func (s *VisitorService) List(ctx context.Context, q domain.ListQueryDTO) ([]domain.VisitorDetail, error) {
	filter := domain.VisitorFilter{Offset: q.Skip, Limit: q.Limit}
	if q.Status != "" {
		status := domain.VisitorStatus(q.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown visitor status %q", ErrValidation, q.Status)
		}
		filter.Statuses = []domain.VisitorStatus{status}
	}
	if filter.Limit == 0 {
		filter.Limit = 100
	}
	return s.store.Visitors().FindAll(ctx, filter)
}

// loadVisitor fetches a visitor; residentID > 0 restricts it to that
// resident's visitors and reports any other as not found.
func loadVisitor(ctx context.Context, tx repository.Repositories, id, residentID int) (*domain.Visitor, error) {
	v, err := tx.Visitors().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if residentID > 0 && v.ResidentID != residentID {
		return nil, fmt.Errorf("%w: visitor %d", repository.ErrNotFound, id)
	}
	return v, nil
}

func requirePending(v *domain.Visitor) error {
	if v.Status != domain.VisitorPending {
		return fmt.Errorf("%w: visitor %d is %s", repository.ErrInvalidTransition, v.ID, v.Status)
	}
	return nil
}

// ApproveByResident approves one of the resident's own pending visitors.
func (s *VisitorService) ApproveByResident(ctx context.Context, residentID, visitorID int) (*domain.Visitor, error) {
	return s.approve(ctx, visitorID, residentID, 0)
}

// ApproveByAdmin approves any pending visitor, optionally into a chosen slot.
func (s *VisitorService) ApproveByAdmin(ctx context.Context, visitorID, slotID int) (*domain.Visitor, error) {
	return s.approve(ctx, visitorID, 0, slotID)
}

func (s *VisitorService) approve(ctx context.Context, visitorID, residentID, slotID int) (*domain.Visitor, error) {
	var out *domain.Visitor
	err := s.dispatcher.run(ctx, func(tx repository.Repositories, fx *effects) error {
		v, err := loadVisitor(ctx, tx, visitorID, residentID)
		if err != nil {
			return err
		}
		if err := requirePending(v); err != nil {
			return err
		}

		var slot *domain.Slot
		if slotID > 0 {
			slot, err = s.takeChosenSlot(ctx, tx, slotID, v.VehicleType)
		} else {
			slot, err = tx.Slots().AllocateAvailable(ctx, v.VehicleType)
		}
		if err != nil {
			return err
		}
		fx.slotChanged(slot)

		v.Status = domain.VisitorApproved
		v.SlotID = null.IntFrom(int64(slot.ID))
		out, err = tx.Visitors().Transition(ctx, v, domain.VisitorPending)
		if err != nil {
			return err
		}

		if residentID == 0 {
			n, err := createNotification(ctx, tx, v.ResidentID, domain.NotificationVisitorApproval,
				"Visitor Approved", fmt.Sprintf("Your visitor %s has been approved for slot %s.", v.VisitorName, slot.SlotNumber))
			if err != nil {
				return err
			}
			fx.notify(n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("visitor_id", visitorID).Int64("slot_id", out.SlotID.Int64).Msg("visitor approved")
	return out, nil
}

func (s *VisitorService) takeChosenSlot(ctx context.Context, tx repository.Repositories, slotID int, vehicleType domain.VehicleType) (*domain.Slot, error) {
	slot, err := tx.Slots().FindByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.SlotType != vehicleType {
		return nil, fmt.Errorf("%w: slot %s is for %s", ErrValidation, slot.SlotNumber, slot.SlotType)
	}
	if _, err := tx.Users().FindByAssignedSlot(ctx, slotID); err == nil {
		return nil, fmt.Errorf("%w: slot %s is assigned to a resident", repository.ErrSlotUnavailable, slot.SlotNumber)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := tx.Visitors().FindHolding(ctx, slotID); err == nil {
		return nil, fmt.Errorf("%w: slot %s is taken by another visitor", repository.ErrSlotUnavailable, slot.SlotNumber)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return tx.Slots().CompareAndSetStatus(ctx, slotID, []domain.SlotStatus{domain.SlotAvailable}, domain.SlotOccupied)
}

func (s *VisitorService) RejectByResident(ctx context.Context, residentID, visitorID int) (*domain.Visitor, error) {
	return s.reject(ctx, visitorID, residentID)
}

func (s *VisitorService) RejectByAdmin(ctx context.Context, visitorID int) (*domain.Visitor, error) {
	return s.reject(ctx, visitorID, 0)
}

func (s *VisitorService) reject(ctx context.Context, visitorID, residentID int) (*domain.Visitor, error) {
	var out *domain.Visitor
	err := s.dispatcher.run(ctx, func(tx repository.Repositories, fx *effects) error {
		v, err := loadVisitor(ctx, tx, visitorID, residentID)
		if err != nil {
			return err
		}
		if err := requirePending(v); err != nil {
			return err
		}
		v.Status = domain.VisitorRejected
		out, err = tx.Visitors().Transition(ctx, v, domain.VisitorPending)
		if err != nil {
			return err
		}

		if residentID == 0 {
			n, err := createNotification(ctx, tx, v.ResidentID, domain.NotificationVisitorApproval,
				"Visitor Rejected", fmt.Sprintf("Your visitor %s has been rejected.", v.VisitorName))
			if err != nil {
				return err
			}
			fx.notify(n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("visitor_id", visitorID).Msg("visitor rejected")
	return out, nil
}

// MarkExit completes an approved visit and frees its slot. Exiting a
// completed visitor again returns it unchanged.
func (s *VisitorService) MarkExit(ctx context.Context, visitorID int) (*domain.Visitor, error) {
	var out *domain.Visitor
	err := s.dispatcher.run(ctx, func(tx repository.Repositories, fx *effects) error {
		v, err := tx.Visitors().FindByID(ctx, visitorID)
		if err != nil {
			return err
		}
		switch v.Status {
		case domain.VisitorCompleted:
			out = v
			return nil
		case domain.VisitorApproved:
		default:
			return fmt.Errorf("%w: visitor %d is %s", repository.ErrInvalidTransition, v.ID, v.Status)
		}

		heldSlot := v.SlotID
		v.Status = domain.VisitorCompleted
		v.ExitTime = null.TimeFrom(s.now().UTC())
		out, err = tx.Visitors().Transition(ctx, v, domain.VisitorApproved)
		if err != nil {
			return err
		}
		if heldSlot.Valid {
			if err := freeSlot(ctx, tx, fx, int(heldSlot.Int64)); err != nil {
				return err
			}
		}

		n, err := createNotification(ctx, tx, v.ResidentID, domain.NotificationVisitorApproval,
			"Visitor Exited", fmt.Sprintf("Your visitor %s has left the premises.", v.VisitorName))
		if err != nil {
			return err
		}
		fx.notify(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("visitor_id", visitorID).Msg("visitor exited")
	return out, nil
}

var cancellableStatuses = []domain.VisitorStatus{domain.VisitorPending, domain.VisitorApproved}

// Cancel deletes one of the resident's pending or approved visitors and frees
// the slot it held.
func (s *VisitorService) Cancel(ctx context.Context, residentID, visitorID int) error {
	err := s.dispatcher.run(ctx, func(tx repository.Repositories, fx *effects) error {
		if _, err := loadVisitor(ctx, tx, visitorID, residentID); err != nil {
			return err
		}
		// The slot to free comes from the deleted row, not from the read
		// above: the visitor may have exited in between.
		deleted, err := tx.Visitors().DeleteInStatus(ctx, visitorID, cancellableStatuses)
		if err != nil {
			return err
		}
		if deleted.HoldsSlot() {
			return freeSlot(ctx, tx, fx, int(deleted.SlotID.Int64))
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Int("visitor_id", visitorID).Int("resident_id", residentID).Msg("visitor cancelled")
	return nil
}
