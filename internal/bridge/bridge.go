// Package bridge connects the session to the renderer and immersive
// runtime over MQTT. It consumes the immersive-session flag and selection
// events and publishes the avatar state and placement anchor, retained,
// for the renderer to read every frame.
package bridge

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
	"github.com/hammamikhairi/armate/internal/spatial"
)

// Config holds the broker settings.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Topics under the configured prefix.
const (
	topicSession = "/xr/session"
	topicSelect  = "/xr/select"
	topicAvatar  = "/avatar/state"
	topicAnchor  = "/avatar/anchor"
)

const publishTimeout = 2 * time.Second

// Placement is the part of the spatial model the bridge drives.
type Placement interface {
	SetImmersive(active bool)
	OnSelect(ev spatial.SelectEvent) error
}

// SessionMessage toggles the immersive session flag.
type SessionMessage struct {
	Immersive bool `json:"immersive"`
}

// SelectMessage is one pick. Intersection is absent when nothing was hit
// and only counts as a hit when it has exactly three components.
type SelectMessage struct {
	Intersection []float32 `json:"intersection"`
}

// AvatarMessage is the published avatar state.
type AvatarMessage struct {
	Animation string `json:"animation"`
	Emotion   string `json:"emotion"`
}

// AnchorMessage is the published placement anchor.
type AnchorMessage struct {
	Position [3]float32 `json:"position"`
}

// Bridge is the MQTT transport between the session and the renderer.
type Bridge struct {
	client    mqtt.Client
	placement Placement
	prefix    string
	log       *logger.Logger
	started   atomic.Bool
}

// New connects to the broker. Subscriptions start with Start.
func New(cfg Config, placement Placement, log *logger.Logger) (*Bridge, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("bridge: connection lost: %v", err)
	})

	b := newBridge(nil, placement, cfg.TopicPrefix, log)
	// Subscriptions do not survive a reconnect.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info("bridge: connected to %s", cfg.Broker)
		if !b.started.Load() {
			return
		}
		if err := b.subscribe(c); err != nil {
			log.Error("bridge: %v", err)
		}
	})

	client := mqtt.NewClient(opts)
	b.client = client
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("bridge: connect to %s: %w", cfg.Broker, token.Error())
	}
	return b, nil
}

func newBridge(client mqtt.Client, placement Placement, prefix string, log *logger.Logger) *Bridge {
	if prefix == "" {
		prefix = "armate"
	}
	return &Bridge{client: client, placement: placement, prefix: prefix, log: log}
}

// Topic returns the full topic for suffix.
func (b *Bridge) Topic(suffix string) string { return b.prefix + suffix }

// Start subscribes to the session and selection topics.
func (b *Bridge) Start() error {
	b.started.Store(true)
	return b.subscribe(b.client)
}

func (b *Bridge) subscribe(c mqtt.Client) error {
	for topic, h := range map[string]mqtt.MessageHandler{
		b.Topic(topicSession): b.handleSession,
		b.Topic(topicSelect):  b.handleSelect,
	} {
		if token := c.Subscribe(topic, 1, h); token.Wait() && token.Error() != nil {
			return fmt.Errorf("bridge: subscribe %s: %w", topic, token.Error())
		}
		b.log.Debug("bridge: subscribed to %s", topic)
	}
	return nil
}

func (b *Bridge) handleSession(_ mqtt.Client, msg mqtt.Message) {
	var m SessionMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		b.log.Warn("bridge: bad session message on %s: %v", msg.Topic(), err)
		return
	}
	b.placement.SetImmersive(m.Immersive)
}

func (b *Bridge) handleSelect(_ mqtt.Client, msg mqtt.Message) {
	var m SelectMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		b.log.Warn("bridge: bad select message on %s: %v", msg.Topic(), err)
		return
	}
	ev := spatial.SelectEvent{}
	if len(m.Intersection) == 3 {
		v := mgl32.Vec3{m.Intersection[0], m.Intersection[1], m.Intersection[2]}
		ev.Intersection = &v
	} else if m.Intersection != nil {
		b.log.Warn("bridge: intersection has %d components, want 3", len(m.Intersection))
	}
	if err := b.placement.OnSelect(ev); err != nil {
		b.log.Debug("bridge: select dropped: %v", err)
	}
}

// PublishAvatar publishes the avatar state, retained. It does not block.
func (b *Bridge) PublishAvatar(s domain.AvatarState) {
	b.publish(b.Topic(topicAvatar), AvatarMessage{Animation: s.Animation.String(), Emotion: s.Emotion.String()})
}

// PublishAnchor publishes the placement anchor, retained. It does not block.
func (b *Bridge) PublishAnchor(v mgl32.Vec3) {
	b.publish(b.Topic(topicAnchor), AnchorMessage{Position: [3]float32(v)})
}

func (b *Bridge) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.log.Error("bridge: marshal %s: %v", topic, err)
		return
	}
	token := b.client.Publish(topic, 1, true, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			b.log.Warn("bridge: publish to %s timed out", topic)
			return
		}
		if err := token.Error(); err != nil {
			b.log.Warn("bridge: publish to %s: %v", topic, err)
		}
	}()
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.client.Disconnect(250)
	b.log.Info("bridge: disconnected")
}
