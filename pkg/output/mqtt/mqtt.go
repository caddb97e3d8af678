package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/rfid-deck/pkg/config"
	"github.com/ericogr/rfid-deck/pkg/logger"
	"github.com/ericogr/rfid-deck/pkg/output"
	"github.com/ericogr/rfid-deck/pkg/telemetry"
)

const (
	// defaults
	DefaultServer     = "tcp://localhost:1883"
	DefaultClientID   = "rfid-deck"
	DefaultStateTopic = "rfid-deck/state"
	primaryVariable   = "rfid.value"
	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyUnitOfMeasurement   = "unit_of_measurement"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	keyTimestamp           = "timestamp"
	stateClassMeasurement  = "measurement"
)

// ErrNotConnected is returned when publishing without a client.
var ErrNotConnected = errors.New("mqtt: client not connected")

// units for variables that carry one
var units = map[string]string{
	"rfid.delay": "ms",
}

type MQTTOutput struct {
	client         mqtt.Client
	stateTopic     string
	discoveryTopic string
}

func NewMQTT(cfg config.MQTTConfig, names []string) (output.Output, error) {
	cfg = withDefaults(cfg)
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newMQTTOutput(client, cfg, names), nil
}

func withDefaults(cfg config.MQTTConfig) config.MQTTConfig {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.StateTopic == "" {
		cfg.StateTopic = DefaultStateTopic
	}
	return cfg
}

func newMQTTOutput(client mqtt.Client, cfg config.MQTTConfig, names []string) *MQTTOutput {
	m := &MQTTOutput{client: client, stateTopic: cfg.StateTopic, discoveryTopic: cfg.DiscoveryTopic}

	// Publish Home Assistant discovery payload(s) if requested
	if m.discoveryTopic == "" {
		return m
	}
	log := logger.New("mqtt")
	if strings.Contains(m.discoveryTopic, "%s") {
		// one discovery entry per variable
		for _, name := range names {
			dTopic := fmt.Sprintf(m.discoveryTopic, jsonKey(name))
			payload := baseDiscoveryPayload(discoveryName(cfg, name), m.stateTopic, name, discoveryUniqueID(cfg, name))
			if err := m.publishJSON(dTopic, true, payload); err != nil {
				log.Error().Err(err).Str("topic", dTopic).Msg("mqtt discovery publish error")
			}
		}
		return m
	}
	name := primaryVariable
	if !contains(names, name) && len(names) > 0 {
		name = names[0]
	}
	payload := baseDiscoveryPayload(discoveryName(cfg, ""), m.stateTopic, name, discoveryUniqueID(cfg, ""))
	if err := m.publishJSON(m.discoveryTopic, true, payload); err != nil {
		log.Error().Err(err).Str("topic", m.discoveryTopic).Msg("mqtt discovery publish error")
	}
	return m
}

// Publish sends the whole snapshot as one JSON state message.
func (m *MQTTOutput) Publish(s telemetry.Snapshot) error {
	payload := make(map[string]interface{}, len(s.Samples)+1)
	payload[keyTimestamp] = s.Timestamp.Unix()
	for _, smp := range s.Samples {
		payload[jsonKey(smp.Name)] = smp.Value
	}
	return m.publishJSON(m.stateTopic, false, payload)
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

// PublishRaw publishes payload to topic at QoS 0. Discovery messages are
// retained, state messages are not.
func (m *MQTTOutput) PublishRaw(topic string, payload []byte, retained bool) error {
	if m.client == nil {
		return ErrNotConnected
	}
	token := m.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

// jsonKey turns "rfid.value" into "rfid_value" so templates can use dot access.
func jsonKey(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// helper: build a human-friendly discovery name; if variable != "" append it
func discoveryName(cfg config.MQTTConfig, variable string) string {
	name := cfg.DiscoveryName
	if name == "" {
		name = fmt.Sprintf("RFID deck %s", cfg.ClientID)
	}
	if variable != "" {
		name = fmt.Sprintf("%s %s", name, variable)
	}
	return name
}

// helper: build a unique id for discovery; if variable != "" append it
func discoveryUniqueID(cfg config.MQTTConfig, variable string) string {
	uid := cfg.DiscoveryUniqueID
	if uid == "" {
		uid = cfg.ClientID
	}
	if uid != "" && variable != "" {
		uid = fmt.Sprintf("%s_%s", uid, jsonKey(variable))
	}
	return uid
}

// helper: base discovery payload map common to all entries
func baseDiscoveryPayload(name, stateTopic, variable, uniqueID string) map[string]interface{} {
	payload := map[string]interface{}{
		keyName:                name,
		keyStateTopic:          stateTopic,
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       fmt.Sprintf("{{ value_json.%s }}", jsonKey(variable)),
		keyJSONAttributesTopic: stateTopic,
	}
	if unit, ok := units[variable]; ok {
		payload[keyUnitOfMeasurement] = unit
	}
	if uniqueID != "" {
		payload[keyUniqueID] = uniqueID
	}
	return payload
}

func (m *MQTTOutput) publishJSON(topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return m.PublishRaw(topic, b, retained)
}
