package service

import (
	"apartment_parking/internal/domain"
	"apartment_parking/internal/repository"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gopkg.in/guregu/null.v4"
)

// ParkingService owns slots and the residents holding them.
type ParkingService struct {
	store      repository.Store
	dispatcher *Dispatcher
}

func NewParkingService(store repository.Store, dispatcher *Dispatcher) *ParkingService {
	return &ParkingService{store: store, dispatcher: dispatcher}
}

// --- Slots ---

func (s *ParkingService) CreateSlot(ctx context.Context, dto domain.SlotDTO) (*domain.Slot, error) {
	status := dto.Status
	if status == "" {
		status = domain.SlotAvailable
	}
	if status != domain.SlotAvailable && status != domain.SlotDamaged {
		return nil, fmt.Errorf("%w: a new slot is either available or damaged", ErrValidation)
	}
	slot, err := s.store.Slots().Create(ctx, &domain.Slot{
		SlotNumber: dto.SlotNumber,
		SlotType:   dto.SlotType,
		Status:     status,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("slot_id", slot.ID).Str("slot_number", slot.SlotNumber).Msg("slot created")
	return slot, nil
}

func (s *ParkingService) ListSlots(ctx context.Context) ([]domain.SlotDetail, error) {
	return s.store.Slots().FindAll(ctx)
}

func (s *ParkingService) UpdateSlot(ctx context.Context, id int, patch domain.SlotPatch) (*domain.Slot, error) {
	if patch.Empty() {
		return s.store.Slots().FindByID(ctx, id)
	}
	return s.store.Slots().Update(ctx, id, patch)
}

func (s *ParkingService) DeleteSlot(ctx context.Context, id int) error {
	if err := s.store.Slots().Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Int("slot_id", id).Msg("slot deleted")
	return nil
}

func (s *ParkingService) MarkSlotDamaged(ctx context.Context, id int) (*domain.Slot, error) {
	var out *domain.Slot
	err := s.dispatcher.run(ctx, func(tx repository.Repositories, fx *effects) error {
		slot, err := tx.Slots().CompareAndSetStatus(ctx, id, damageableFrom, domain.SlotDamaged)
		if err != nil {
			return err
		}
		fx.slotChanged(slot)
		out = slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("slot_id", id).Msg("slot marked damaged")
	return out, nil
}

// MarkSlotRepaired puts a damaged slot back in service and tells the
// resident holding it, if any. A slot an approved visitor is still parked on
// goes back to occupied so it cannot be handed out twice.
func (s *ParkingService) MarkSlotRepaired(ctx context.Context, id int) (*domain.Slot, error) {
	var out *domain.Slot
	err := s.dispatcher.run(ctx, func(tx repository.Repositories, fx *effects) error {
		to := domain.SlotAvailable
		if _, err := tx.Visitors().FindHolding(ctx, id); err == nil {
			to = domain.SlotOccupied
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		slot, err := tx.Slots().CompareAndSetStatus(ctx, id, []domain.SlotStatus{domain.SlotDamaged}, to)
		if err != nil {
			return err
		}
		fx.slotChanged(slot)
		out = slot

		holder, err := tx.Users().FindByAssignedSlot(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		n, err := createNotification(ctx, tx, holder.ID, domain.NotificationSlotRepair,
			"Slot Repaired", fmt.Sprintf("Your parking slot %s has been repaired and is available again.", slot.SlotNumber))
		if err != nil {
			return err
		}
		fx.notify(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("slot_id", id).Msg("slot repaired")
	return out, nil
}

// --- Residents ---

func (s *ParkingService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.Users().FindAll(ctx, domain.UserFilter{})
}

func (s *ParkingService) ListResidents(ctx context.Context) ([]domain.User, error) {
	return s.store.Users().FindAll(ctx, domain.UserFilter{Role: domain.RoleResident})
}

func findResident(ctx context.Context, tx repository.Repositories, id int) (*domain.User, error) {
	user, err := tx.Users().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != domain.RoleResident {
		return nil, fmt.Errorf("%w: resident %d", repository.ErrNotFound, id)
	}
	return user, nil
}

// AssignSlot gives a resident long-term use of an available slot. A slot the
// resident held before is released.
func (s *ParkingService) AssignSlot(ctx context.Context, residentID, slotID int) (*domain.User, error) {
	var out *domain.User
	err := s.dispatcher.run(ctx, func(tx repository.Repositories, fx *effects) error {
		resident, err := findResident(ctx, tx, residentID)
		if err != nil {
			return err
		}
		if resident.AssignedSlotID.Valid && int(resident.AssignedSlotID.Int64) == slotID {
			out = resident
			return nil
		}

		holder, err := tx.Users().FindByAssignedSlot(ctx, slotID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: slot already assigned to %s", repository.ErrSlotUnavailable, holder.FullName)
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}
		if _, err := tx.Visitors().FindHolding(ctx, slotID); err == nil {
			return fmt.Errorf("%w: a visitor is parked on slot %d", repository.ErrSlotUnavailable, slotID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		slot, err := tx.Slots().CompareAndSetStatus(ctx, slotID, []domain.SlotStatus{domain.SlotAvailable}, domain.SlotOccupied)
		if err != nil {
			return err
		}
		fx.slotChanged(slot)

		if resident.AssignedSlotID.Valid {
			if err := freeSlot(ctx, tx, fx, int(resident.AssignedSlotID.Int64)); err != nil {
				return err
			}
		}
		if err := tx.Users().SetAssignedSlot(ctx, resident.ID, null.IntFrom(int64(slot.ID))); err != nil {
			return err
		}
		resident.AssignedSlotID = null.IntFrom(int64(slot.ID))

		n, err := createNotification(ctx, tx, resident.ID, domain.NotificationSlotAssignment,
			"Slot Assigned", fmt.Sprintf("Parking slot %s has been assigned to you.", slot.SlotNumber))
		if err != nil {
			return err
		}
		fx.notify(n)
		out = resident
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("resident_id", residentID).Int("slot_id", slotID).Msg("slot assigned")
	return out, nil
}

// DeleteResident removes a resident with everything they own and releases
// every slot they or their visitors held.
func (s *ParkingService) DeleteResident(ctx context.Context, residentID int) error {
	err := s.dispatcher.run(ctx, func(tx repository.Repositories, fx *effects) error {
		resident, err := findResident(ctx, tx, residentID)
		if err != nil {
			return err
		}

		if resident.AssignedSlotID.Valid {
			slotID := int(resident.AssignedSlotID.Int64)
			if err := tx.Users().SetAssignedSlot(ctx, resident.ID, null.Int{}); err != nil {
				return err
			}
			if err := freeSlot(ctx, tx, fx, slotID); err != nil {
				return err
			}
		}

		visitors, err := tx.Visitors().DeleteByResident(ctx, resident.ID)
		if err != nil {
			return err
		}
		for _, v := range visitors {
			if v.HoldsSlot() {
				if err := freeSlot(ctx, tx, fx, int(v.SlotID.Int64)); err != nil {
					return err
				}
			}
		}

		if err := tx.Requests().DeleteByResident(ctx, resident.ID); err != nil {
			return err
		}
		if err := tx.Notifications().DeleteByUser(ctx, resident.ID); err != nil {
			return err
		}
		return tx.Users().Delete(ctx, resident.ID)
	})
	if err != nil {
		return err
	}
	log.Info().Int("resident_id", residentID).Msg("resident deleted")
	return nil
}

func (s *ParkingService) Summary(ctx context.Context) (*domain.AdminSummary, error) {
	counts, err := s.store.Slots().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	residents, err := s.store.Users().CountByRole(ctx, domain.RoleResident)
	if err != nil {
		return nil, err
	}
	pendingVisitors, err := s.store.Visitors().CountByStatus(ctx, domain.VisitorPending)
	if err != nil {
		return nil, err
	}
	pendingRequests, err := s.store.Requests().CountByStatus(ctx, domain.RequestPending)
	if err != nil {
		return nil, err
	}

	summary := &domain.AdminSummary{
		AvailableSlots:  counts[domain.SlotAvailable],
		OccupiedSlots:   counts[domain.SlotOccupied],
		DamagedSlots:    counts[domain.SlotDamaged],
		TotalResidents:  residents,
		PendingVisitors: pendingVisitors,
		PendingRequests: pendingRequests,
	}
	for _, n := range counts {
		summary.TotalSlots += n
	}
	return summary, nil
}

// --- Resident self-service ---

func (s *ParkingService) AssignedSlot(ctx context.Context, user *domain.User) (*domain.Slot, error) {
	if !user.AssignedSlotID.Valid {
		return nil, fmt.Errorf("%w: no slot assigned", repository.ErrNotFound)
	}
	return s.store.Slots().FindByID(ctx, int(user.AssignedSlotID.Int64))
}

func (s *ParkingService) UpdateProfile(ctx context.Context, user *domain.User, patch domain.ProfilePatch) (*domain.User, error) {
	if patch.Empty() {
		return user, nil
	}
	return s.store.Users().UpdateProfile(ctx, user.ID, patch)
}

func (s *ParkingService) Dashboard(ctx context.Context, user *domain.User) (*domain.ResidentDashboard, error) {
	dashboard := &domain.ResidentDashboard{}

	slot, err := s.AssignedSlot(ctx, user)
	switch {
	case err == nil:
		dashboard.AssignedSlot = slot
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	dashboard.ActiveVisitors, err = s.store.Visitors().FindAll(ctx, domain.VisitorFilter{
		ResidentID: user.ID,
		Statuses:   []domain.VisitorStatus{domain.VisitorApproved},
	})
	if err != nil {
		return nil, err
	}
	dashboard.PendingRequests, err = s.store.Requests().FindAll(ctx, domain.RequestFilter{
		ResidentID: user.ID,
		Status:     domain.RequestPending,
	})
	if err != nil {
		return nil, err
	}
	dashboard.NotificationsCount, err = s.store.Notifications().CountUnread(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return dashboard, nil
}
