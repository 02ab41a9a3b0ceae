package service

import (
	"apartment_parking/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrUnknownGateMessage is returned for gate messages this service does not handle.
// The queue consumer deletes such messages instead of retrying them.
var ErrUnknownGateMessage = errors.New("unknown gate message type")

// GateService turns barrier-system messages from the gate queue into visitor
// lifecycle operations.
type GateService struct {
	visitors *VisitorService
}

func NewGateService(visitors *VisitorService) *GateService {
	return &GateService{visitors: visitors}
}

func (s *GateService) HandleGateMessage(ctx context.Context, body string) error {
	var generic domain.GenericGateMessage
	if err := json.Unmarshal([]byte(body), &generic); err != nil {
		return fmt.Errorf("%w: unmarshal gate message: %v", ErrValidation, err)
	}
	generic.RawPayload = json.RawMessage(body)

	logger := log.With().Str("message_type", generic.MessageType).Str("gate_id", generic.GateID).Logger()
	logger.Info().Msg("processing gate message")

	switch generic.MessageType {
	case domain.GateMessageUnplannedEntry:
		var msg domain.GateUnplannedEntryMessage
		if err := json.Unmarshal(generic.RawPayload, &msg); err != nil {
			return fmt.Errorf("%w: unmarshal unplanned_entry: %v", ErrValidation, err)
		}
		dto := domain.UnplannedVisitorDTO{
			ResidentID:    msg.ResidentID,
			VisitorName:   msg.VisitorName,
			VehicleNumber: normalizePlate(msg.VehicleNumber),
			VehicleType:   msg.VehicleType,
		}
		if dto.ResidentID <= 0 || dto.VisitorName == "" || dto.VehicleNumber == "" || !dto.VehicleType.Valid() {
			return fmt.Errorf("%w: incomplete unplanned_entry message", ErrValidation)
		}
		if ts, err := time.Parse(time.RFC3339, generic.Timestamp); err == nil {
			dto.EntryTime = &ts
		}
		v, err := s.visitors.RegisterUnplanned(ctx, dto)
		if err != nil {
			return err
		}
		logger.Info().Int("visitor_id", v.ID).Msg("unplanned entry recorded")
		return nil

	case domain.GateMessageVisitorExit:
		var msg domain.GateVisitorExitMessage
		if err := json.Unmarshal(generic.RawPayload, &msg); err != nil {
			return fmt.Errorf("%w: unmarshal visitor_exit: %v", ErrValidation, err)
		}
		if msg.VisitorID <= 0 {
			return fmt.Errorf("%w: visitor_exit without visitor_id", ErrValidation)
		}
		if _, err := s.visitors.MarkExit(ctx, msg.VisitorID); err != nil {
			return err
		}
		logger.Info().Int("visitor_id", msg.VisitorID).Msg("visitor exit recorded")
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnknownGateMessage, generic.MessageType)
}
