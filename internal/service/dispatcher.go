package service

import (
	"apartment_parking/internal/domain"
	"apartment_parking/internal/repository"
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrValidation marks input that is well-formed but not acceptable in the current state.
var ErrValidation = errors.New("validation failed")

// ErrNotConnected is returned by a Notifier when the user has no live connection anywhere.
var ErrNotConnected = errors.New("user not connected")

// Notifier pushes an event to one user's live connection.
type Notifier interface {
	Send(ctx context.Context, userID int, event any) error
}

// SlotPublisher mirrors slot status changes to the physical indicators.
type SlotPublisher interface {
	PublishSlotStatus(ctx context.Context, msg domain.SlotStatusMessage) error
}

type pendingPush struct {
	userID int
	event  any
}

// effects collects what must happen after the transaction commits.
type effects struct {
	pushes []pendingPush
	slots  []domain.Slot
}

func (fx *effects) push(userID int, event any) {
	fx.pushes = append(fx.pushes, pendingPush{userID: userID, event: event})
}

func (fx *effects) notify(n *domain.Notification) {
	fx.push(n.UserID, domain.NewNotificationEvent(*n))
}

func (fx *effects) slotChanged(slot *domain.Slot) {
	for i := range fx.slots {
		if fx.slots[i].ID == slot.ID {
			fx.slots[i] = *slot
			return
		}
	}
	fx.slots = append(fx.slots, *slot)
}

// Dispatcher runs a unit of work in one transaction and then delivers its
// effects. Delivery is best-effort: failures are logged and never undo the commit.
type Dispatcher struct {
	store          repository.Store
	notifier       Notifier
	publisher      SlotPublisher
	publishTimeout time.Duration
}

func NewDispatcher(store repository.Store, notifier Notifier, publisher SlotPublisher) *Dispatcher {
	return &Dispatcher{
		store:          store,
		notifier:       notifier,
		publisher:      publisher,
		publishTimeout: 5 * time.Second,
	}
}

func (d *Dispatcher) run(ctx context.Context, fn func(tx repository.Repositories, fx *effects) error) error {
	fx := &effects{}
	err := d.store.WithTx(ctx, func(tx repository.Repositories) error {
		return fn(tx, fx)
	})
	if err != nil {
		return err
	}
	d.flush(ctx, fx)
	return nil
}

func (d *Dispatcher) flush(ctx context.Context, fx *effects) {
	// Delivery must outlive a cancelled request.
	ctx = context.WithoutCancel(ctx)

	if d.notifier != nil {
		for _, p := range fx.pushes {
			err := d.notifier.Send(ctx, p.userID, p.event)
			switch {
			case err == nil:
			case errors.Is(err, ErrNotConnected):
				log.Debug().Int("user_id", p.userID).Msg("push dropped, user not connected")
			default:
				log.Warn().Err(err).Int("user_id", p.userID).Msg("push delivery failed")
			}
		}
	}

	if d.publisher != nil {
		for _, slot := range fx.slots {
			pubCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
			err := d.publisher.PublishSlotStatus(pubCtx, domain.SlotStatusMessage{
				SlotID:     slot.ID,
				SlotNumber: slot.SlotNumber,
				SlotType:   slot.SlotType,
				Status:     slot.Status,
				ChangedAt:  slot.UpdatedAt.UTC().Format(time.RFC3339),
			})
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("slot_number", slot.SlotNumber).Msg("slot indicator publish failed")
			}
		}
	}
}

// freeSlot returns an occupied slot to available. A slot in any other status
// (typically damaged) is left as it is.
func freeSlot(ctx context.Context, tx repository.Repositories, fx *effects, slotID int) error {
	slot, err := tx.Slots().CompareAndSetStatus(ctx, slotID, []domain.SlotStatus{domain.SlotOccupied}, domain.SlotAvailable)
	if err != nil {
		if errors.Is(err, repository.ErrSlotUnavailable) || errors.Is(err, repository.ErrNotFound) {
			log.Info().Int("slot_id", slotID).Msg("slot not occupied, leaving status unchanged")
			return nil
		}
		return err
	}
	fx.slotChanged(slot)
	return nil
}

func createNotification(ctx context.Context, tx repository.Repositories, userID int, typ domain.NotificationType, title, message string) (*domain.Notification, error) {
	return tx.Notifications().Create(ctx, &domain.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    typ,
	})
}
