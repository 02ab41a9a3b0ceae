package service

import (
	"apartment_parking/internal/domain"
	"apartment_parking/internal/repository"
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

var damageableFrom = []domain.SlotStatus{domain.SlotAvailable, domain.SlotOccupied, domain.SlotDamaged}

type RequestService struct {
	store      repository.Store
	dispatcher *Dispatcher
}

func NewRequestService(store repository.Store, dispatcher *Dispatcher) *RequestService {
	return &RequestService{store: store, dispatcher: dispatcher}
}

func assignedSlotID(user *domain.User) (int, error) {
	if !user.AssignedSlotID.Valid {
		return 0, fmt.Errorf("%w: no parking slot is assigned to you", ErrValidation)
	}
	return int(user.AssignedSlotID.Int64), nil
}

func (s *RequestService) CreateSlotChange(ctx context.Context, resident *domain.User, dto domain.SlotChangeRequestDTO) (*domain.Request, error) {
	slotID, err := assignedSlotID(resident)
	if err != nil {
		return nil, err
	}
	description := dto.Reason
	if dto.PreferredSlotType != "" {
		description = fmt.Sprintf("%s (preferred slot type: %s)", dto.Reason, dto.PreferredSlotType)
	}
	req, err := s.store.Requests().Create(ctx, &domain.Request{
		RequestType: domain.RequestSlotChange,
		Description: description,
		Status:      domain.RequestPending,
		ResidentID:  resident.ID,
		SlotID:      slotID,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("request_id", req.ID).Int("resident_id", resident.ID).Msg("slot change requested")
	return req, nil
}

// CreateDamageReport files the report and takes the slot out of service at once.
func (s *RequestService) CreateDamageReport(ctx context.Context, resident *domain.User, dto domain.DamageReportDTO) (*domain.Request, error) {
	slotID, err := assignedSlotID(resident)
	if err != nil {
		return nil, err
	}

	var out *domain.Request
	err = s.dispatcher.run(ctx, func(tx repository.Repositories, fx *effects) error {
		req, err := tx.Requests().Create(ctx, &domain.Request{
			RequestType: domain.RequestDamageReport,
			Description: dto.Description,
			Status:      domain.RequestPending,
			ResidentID:  resident.ID,
			SlotID:      slotID,
		})
		if err != nil {
			return err
		}
		slot, err := tx.Slots().CompareAndSetStatus(ctx, slotID, damageableFrom, domain.SlotDamaged)
		if err != nil {
			return err
		}
		fx.slotChanged(slot)
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("request_id", out.ID).Int("slot_id", slotID).Msg("damage reported")
	return out, nil
}

func (s *RequestService) ListForResident(ctx context.Context, residentID int) ([]domain.RequestDetail, error) {
	return s.store.Requests().FindAll(ctx, domain.RequestFilter{ResidentID: residentID})
}

func (s *RequestService) GetForResident(ctx context.Context, residentID, requestID int) (*domain.Request, error) {
	req, err := s.store.Requests().FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ResidentID != residentID {
		return nil, fmt.Errorf("%w: request %d", repository.ErrNotFound, requestID)
	}
	return req, nil
}

func (s *RequestService) List(ctx context.Context, filter domain.RequestFilter) ([]domain.RequestDetail, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown request status %q", ErrValidation, filter.Status)
	}
	if filter.Limit == 0 {
		filter.Limit = 100
	}
	return s.store.Requests().FindAll(ctx, filter)
}

// Resolve moves a pending request to a terminal status. Approving a damage
// report forces its slot to damaged regardless of the slot's current status.
func (s *RequestService) Resolve(ctx context.Context, requestID int, to domain.RequestStatus) (*domain.Request, error) {
	if to == domain.RequestPending || !to.Valid() {
		return nil, fmt.Errorf("%w: cannot resolve a request to %q", ErrValidation, to)
	}

	var out *domain.Request
	err := s.dispatcher.run(ctx, func(tx repository.Repositories, fx *effects) error {
		req, err := tx.Requests().Transition(ctx, requestID, domain.RequestPending, to)
		if err != nil {
			return err
		}
		if to == domain.RequestApproved && req.RequestType == domain.RequestDamageReport {
			slot, err := tx.Slots().CompareAndSetStatus(ctx, req.SlotID, damageableFrom, domain.SlotDamaged)
			if err != nil {
				return err
			}
			fx.slotChanged(slot)
		}

		n, err := createNotification(ctx, tx, req.ResidentID, domain.NotificationRequestUpdate,
			"Request Updated", fmt.Sprintf("Your %s request has been %s.", humanRequestType(req.RequestType), to))
		if err != nil {
			return err
		}
		fx.notify(n)
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("request_id", requestID).Str("status", string(to)).Msg("request resolved")
	return out, nil
}

func humanRequestType(t domain.RequestType) string {
	switch t {
	case domain.RequestSlotChange:
		return "slot change"
	case domain.RequestDamageReport:
		return "damage report"
	}
	return string(t)
}
