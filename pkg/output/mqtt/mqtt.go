package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/heating-panel-bridge/pkg/config"
	"github.com/ericogr/heating-panel-bridge/pkg/output"
	"github.com/ericogr/heating-panel-bridge/pkg/telemetry"
	"github.com/juju/errors"
)

const (
	qos            = 1
	publishTimeout = 10 * time.Second
	quiesceMs      = 250
)

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTOutput struct {
	client publisher
	topic  string
}

// message is the JSON payload of one batch, published to
// <topic>/<measurement>.
type message struct {
	Tags   map[string]string      `json:"tags"`
	Fields map[string]interface{} `json:"fields"`
	Time   *time.Time             `json:"time,omitempty"`
}

func NewMQTT(cfg config.MQTTConfig) (output.Output, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, errors.Annotate(token.Error(), "mqtt connect")
	}
	return newMQTT(client, cfg.Topic), nil
}

func newMQTT(client publisher, topic string) *MQTTOutput {
	return &MQTTOutput{client: client, topic: strings.TrimSuffix(topic, "/")}
}

func (m *MQTTOutput) Publish(batches []telemetry.Batch) error {
	for _, b := range batches {
		msg := message{Tags: b.Tags, Fields: b.Fields}
		if !b.Time.IsZero() {
			ts := b.Time
			msg.Time = &ts
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			return errors.Annotatef(err, "encode %s", b.Measurement)
		}
		topic := fmt.Sprintf("%s/%s", m.topic, b.Measurement)
		token := m.client.Publish(topic, qos, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			return errors.Timeoutf("mqtt publish topic=%s", topic)
		}
		if err := token.Error(); err != nil {
			return errors.Annotatef(err, "mqtt publish topic=%s", topic)
		}
	}
	return nil
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(quiesceMs)
	}
	return nil
}
