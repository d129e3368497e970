// Package broker publishes rendered map frames to an MQTT topic.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-control/internal/render"
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	qosAtMostOnce  = 0
)

// client is the subset of mqtt.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// FramePublisher sends each frame as JSON, retained so late subscribers get the latest map.
type FramePublisher struct {
	client client
	topic  string
}

// Connect dials the broker and returns a publisher for topic.
func Connect(brokerURL, clientID, topic string) (*FramePublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})
	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", brokerURL, err)
	}
	log.WithFields(log.Fields{"broker": brokerURL, "topic": topic}).Info("Connected to MQTT broker")
	return &FramePublisher{client: c, topic: topic}, nil
}

// PublishFrame implements render.Sink.
func (p *FramePublisher) PublishFrame(ctx context.Context, f render.Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	token := p.client.Publish(p.topic, qosAtMostOnce, true, payload)
	wait := publishTimeout
	if dl, ok := ctx.Deadline(); ok {
		wait = max(min(wait, time.Until(dl)), 0)
	}
	if !token.WaitTimeout(wait) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close disconnects after letting in-flight messages drain.
func (p *FramePublisher) Close() {
	p.client.Disconnect(250)
}
