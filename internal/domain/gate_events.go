package domain

import "encoding/json"

// Message types emitted by the barrier system onto the gate queue.
const (
	GateMessageUnplannedEntry = "unplanned_entry"
	GateMessageVisitorExit    = "visitor_exit"
)

// GenericGateMessage is parsed first to pick the concrete message type.
type GenericGateMessage struct {
	MessageType string          `json:"message_type"`
	GateID      string          `json:"gate_id"`
	Timestamp   string          `json:"timestamp"` // RFC3339
	RawPayload  json.RawMessage `json:"-"`
}

type GateUnplannedEntryMessage struct {
	GenericGateMessage
	ResidentID    int         `json:"resident_id"`
	VisitorName   string      `json:"visitor_name"`
	VehicleNumber string      `json:"vehicle_number"`
	VehicleType   VehicleType `json:"vehicle_type"`
}

type GateVisitorExitMessage struct {
	GenericGateMessage
	VisitorID int `json:"visitor_id"`
}
