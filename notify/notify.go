// Package notify publishes image-state transitions to an MQTT broker for
// fleet observability. It is an optional sink: image.Handler and
// upload.Machine accept a StateNotifier and fall back to a no-op when
// none is configured, so the core has no hard MQTT dependency.
//
// Adapted from the teacher's schedule-fetch-over-MQTT client (mqtt.go):
// the same natiu-mqtt call shape (ClientConfig, VariablesConnect,
// StartConnect/HandleNext, PublishPayload), but dialed over a plain
// net.Conn instead of the teacher's no-OS lneto/xnet stack, since this
// module runs on a portable Go toolchain rather than bare TinyGo.
package notify

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"
)

// Config describes the MQTT broker a Notifier publishes to.
type Config struct {
	BrokerAddr string // host:port
	ClientID   string
	Topic      string
	DialTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = "smpboot/image-state"
	}
	if c.ClientID == "" {
		c.ClientID = "smpboot"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	return c
}

// MQTTNotifier implements image.StateNotifier and upload.StateNotifier.
// Each Notify call connects, publishes one retained-false QoS0 message,
// and disconnects; failures are logged, never returned, since a handler
// must not fail a peer-visible operation because fleet telemetry is
// unreachable.
type MQTTNotifier struct {
	cfg    Config
	logger *slog.Logger
}

// NewMQTTNotifier builds a Notifier. logger may be nil.
func NewMQTTNotifier(cfg Config, logger *slog.Logger) *MQTTNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTNotifier{cfg: cfg.withDefaults(), logger: logger}
}

// Notify publishes event and its attributes as a single-line text
// message. Publishing happens in its own goroutine so the calling
// handler's reply is never delayed by broker round-trip time.
func (n *MQTTNotifier) Notify(event string, attrs map[string]string) {
	go n.publish(event, attrs)
}

func (n *MQTTNotifier) publish(event string, attrs map[string]string) {
	payload := formatPayload(event, attrs)

	conn, err := net.DialTimeout("tcp", n.cfg.BrokerAddr, n.cfg.DialTimeout)
	if err != nil {
		n.logger.Warn("notify:dial-failed", "broker", n.cfg.BrokerAddr, "error", err)
		return
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(n.cfg.DialTimeout))

	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 512)},
	})

	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(n.cfg.ClientID + "-" + randomSuffix()))

	if err := client.StartConnect(conn, &varconn); err != nil {
		n.logger.Warn("notify:connect-failed", "error", err)
		return
	}

	for i := 0; i < 20 && !client.IsConnected(); i++ {
		if err := client.HandleNext(); err != nil {
			n.logger.Warn("notify:handle-next", "error", err)
			return
		}
	}
	if !client.IsConnected() {
		n.logger.Warn("notify:connect-timeout")
		return
	}

	pubFlags, err := mqtt.NewPublishFlags(mqtt.QoS0, false, false)
	if err != nil {
		n.logger.Warn("notify:publish-flags", "error", err)
		return
	}

	pub := mqtt.VariablesPublish{TopicName: []byte(n.cfg.Topic)}
	if err := client.PublishPayload(pubFlags, pub, payload); err != nil {
		n.logger.Warn("notify:publish-failed", "error", err)
		return
	}

	n.logger.Info("notify:published", "event", event, "topic", n.cfg.Topic)
	client.Disconnect(errors.New("notify: publish complete"))
}

func formatPayload(event string, attrs map[string]string) []byte {
	s := event
	for k, v := range attrs {
		s += fmt.Sprintf(" %s=%s", k, v)
	}
	return []byte(s)
}

func randomSuffix() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
