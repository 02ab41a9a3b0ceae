package iot

import (
	"apartment_parking/internal/domain"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/rs/zerolog/log"
)

type IoTDataAPI interface {
	Publish(ctx context.Context, params *iotdataplane.PublishInput, optFns ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error)
}

// SlotPublisher drives the per-slot indicator lights over AWS IoT MQTT.
type SlotPublisher struct {
	client IoTDataAPI
}

func NewSlotPublisher(client IoTDataAPI) *SlotPublisher {
	return &SlotPublisher{client: client}
}

func SlotTopic(slotNumber string) string {
	return fmt.Sprintf("parking/slots/%s/status", slotNumber)
}

func (p *SlotPublisher) PublishSlotStatus(ctx context.Context, msg domain.SlotStatusMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal slot status: %w", err)
	}

	topic := SlotTopic(msg.SlotNumber)
	_, err = p.client.Publish(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(topic),
		Qos:     1,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	log.Debug().Str("topic", topic).Str("status", string(msg.Status)).Msg("slot status published")
	return nil
}
