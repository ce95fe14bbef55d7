package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"waste-bot/api/internal/config"
	"waste-bot/api/internal/session"
)

// MQTT публикует события показа подсказки в <prefix>/guidance.
type MQTT struct {
	cfg    config.MQTTConfig
	log    *zap.Logger
	Client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

func NewMQTT(cfg config.MQTTConfig, log *zap.Logger) *MQTT {
	if log == nil {
		log = zap.NewNop()
	}
	return &MQTT{cfg: cfg, log: log}
}

func (e *MQTT) Topic() string { return e.cfg.Prefix + "/guidance" }

func (e *MQTT) Connect(ctx context.Context) error {
	if e.cfg.Broker == "" {
		return errors.New("mqtt broker is empty")
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		e.log.Info("mqtt connected", zap.String("broker", e.cfg.Broker))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		e.log.Warn("mqtt connection lost, reconnecting", zap.Error(err))
	}

	e.Client = mqtt.NewClient(opts)
	token := e.Client.Connect()
	if err := waitToken(ctx, token, 5*time.Second); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	e.setConnected(true)
	return nil
}

func (e *MQTT) Publish(ctx context.Context, ev session.Event) error {
	if !e.isConnected() {
		e.countError()
		return errors.New("mqtt not connected")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		e.countError()
		return fmt.Errorf("marshal event: %w", err)
	}
	topic := e.Topic()
	token := e.Client.Publish(topic, 1, false, payload)
	if err := waitToken(ctx, token, 2*time.Second); err != nil {
		e.countError()
		return fmt.Errorf("mqtt publish: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()
	e.log.Debug("event published", zap.String("topic", topic), zap.Int("size", len(payload)))
	return nil
}

func (e *MQTT) Disconnect() {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250)
	}
	e.setConnected(false)
}

type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

func (e *MQTT) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{Connected: e.connected, Published: e.published, Errors: e.errors}
}

func (e *MQTT) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTT) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTT) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

func waitToken(ctx context.Context, t mqtt.Token, timeout time.Duration) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return errors.New("timeout")
	}
}
