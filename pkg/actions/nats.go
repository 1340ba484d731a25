package actions

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/telemetry"
)

// DefaultSubjectPrefix is the subject prefix used for forwarded actions.
const DefaultSubjectPrefix = "opsdeck.actions"

// NATSForwarder publishes actions to a NATS server, one subject per action
// type: <prefix>.<type>.
type NATSForwarder struct {
	nc     *nats.Conn
	prefix string
	logger *telemetry.Logger
}

// NewNATSForwarder connects to the NATS server at url.
func NewNATSForwarder(url string, logger *telemetry.Logger, extra ...nats.Option) (*NATSForwarder, error) {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	logger = logger.NewComponentLogger("nats")

	opts := []nats.Option{
		nats.Name("opsdeck"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	}
	opts = append(opts, extra...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &NATSForwarder{nc: nc, prefix: DefaultSubjectPrefix, logger: logger}, nil
}

// Subject returns the subject an action type is published on.
func Subject(prefix string, actionType engine.ActionType) string {
	return prefix + "." + string(actionType)
}

// Forward publishes one action as JSON.
func (f *NATSForwarder) Forward(action engine.Action) error {
	if f.nc == nil || f.nc.IsClosed() {
		return fmt.Errorf("nats not connected")
	}

	payload, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal action: %w", err)
	}

	return f.nc.Publish(Subject(f.prefix, action.Type), payload)
}

// Subscriber adapts the forwarder to a Publisher subscriber. Publish
// failures are logged.
func (f *NATSForwarder) Subscriber() Subscriber {
	return func(action engine.Action) {
		if err := f.Forward(action); err != nil {
			f.logger.WithError(err).
				WithField("action_type", string(action.Type)).
				Warn("failed to forward action")
		}
	}
}

// Close drains pending messages and closes the connection.
func (f *NATSForwarder) Close() error {
	if f.nc == nil {
		return nil
	}
	err := f.nc.Drain()
	f.nc.Close()
	return err
}
