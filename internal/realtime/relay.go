package realtime

import (
	"apartment_parking/internal/service"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const subjectPrefix = "parking.notifications."

func subjectFor(userID int) string {
	return subjectPrefix + strconv.Itoa(userID)
}

func userIDFromSubject(subject string) (int, error) {
	raw, ok := strings.CutPrefix(subject, subjectPrefix)
	if !ok {
		return 0, fmt.Errorf("unexpected subject %q", subject)
	}
	return strconv.Atoi(raw)
}

// NATSRelay fans pushes out to every API instance over NATS. Each instance
// delivers only to its own connections.
type NATSRelay struct {
	nc  *nats.Conn
	hub *Hub
	sub *nats.Subscription
}

func NewNATSRelay(nc *nats.Conn, hub *Hub) *NATSRelay {
	return &NATSRelay{nc: nc, hub: hub}
}

func (r *NATSRelay) Publish(userID int, data []byte) error {
	return r.nc.Publish(subjectFor(userID), data)
}

// Start subscribes to relayed pushes and registers the relay with the hub.
func (r *NATSRelay) Start() error {
	sub, err := r.nc.Subscribe(subjectPrefix+"*", r.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s*: %w", subjectPrefix, err)
	}
	r.sub = sub
	r.hub.SetRelay(r)
	log.Info().Str("subject", subjectPrefix+"*").Msg("push relay subscribed")
	return nil
}

func (r *NATSRelay) handle(msg *nats.Msg) {
	userID, err := userIDFromSubject(msg.Subject)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring relayed push")
		return
	}
	if err := r.hub.DeliverLocal(userID, msg.Data); err != nil && !errors.Is(err, service.ErrNotConnected) {
		log.Warn().Err(err).Int("user_id", userID).Msg("relayed push delivery failed")
	}
}

func (r *NATSRelay) Stop() {
	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("push relay unsubscribe failed")
		}
	}
}
