package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NatsNotifier publishes events as JSON on core NATS.
type NatsNotifier struct {
	nc *nats.Conn
}

func NewNatsNotifier(nc *nats.Conn) *NatsNotifier {
	return &NatsNotifier{nc: nc}
}

// Connect dials NATS with reconnect handlers that log through logrus.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("garage-club"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
}

func (n *NatsNotifier) Notify(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	msg := &nats.Msg{
		Subject: ev.Subject(),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Event-Type", ev.Type)

	log.WithFields(log.Fields{"subject": msg.Subject, "target_id": ev.TargetID}).Debug("publishing event")
	return n.nc.PublishMsg(msg)
}
