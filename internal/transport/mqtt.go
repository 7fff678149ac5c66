// Package transport connects the console to the MQTT broker.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"energy_console/internal/console"
	"energy_console/internal/logger"
	"energy_console/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

var (
	ErrNotConnected   = errors.New("mqtt client not connected")
	ErrPublishTimeout = errors.New("mqtt publish timed out")
)

// Sink receives decoded broker traffic, connectivity changes and deliveries
// that failed after the publish call returned.
type Sink interface {
	Handle(in console.Inbound)
	SetConnected(connected bool)
	PublishFailed(topic string, err error)
}

// Options configure the broker connection.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	Topics         Topics
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	disconnectQuiesceMs   = 250
)

// Client is the paho-backed publisher and subscriber.
type Client struct {
	client mqtt.Client
	opts   Options
	sink   Sink
	log    *logger.Logger
	now    func() time.Time
}

// NewClient builds a client with auto-reconnect. Call Connect to dial.
func NewClient(opts Options, sink Sink, log *logger.Logger) *Client {
	opts = withDefaults(opts)
	c := &Client{opts: opts, sink: sink, log: log, now: time.Now}

	mo := mqtt.NewClientOptions()
	mo.AddBroker(opts.Broker)
	mo.SetClientID(opts.ClientID)
	if opts.Username != "" {
		mo.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		mo.SetPassword(opts.Password)
	}
	mo.SetAutoReconnect(true)
	mo.SetConnectRetry(true)
	mo.SetCleanSession(true)
	mo.SetOrderMatters(true)
	mo.SetConnectTimeout(opts.ConnectTimeout)
	// bounds the hand-off to paho's outbound queue so Publish itself never stalls the caller
	mo.SetWriteTimeout(opts.PublishTimeout)
	mo.SetOnConnectHandler(c.onConnect)
	mo.SetConnectionLostHandler(c.onConnectionLost)
	mo.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		if c.log != nil {
			c.log.Infow("mqtt_reconnecting", "broker", opts.Broker)
		}
	})

	c.client = mqtt.NewClient(mo)
	return c
}

func newClientWith(mc mqtt.Client, opts Options, sink Sink, log *logger.Logger) *Client {
	return &Client{client: mc, opts: withDefaults(opts), sink: sink, log: log, now: time.Now}
}

func withDefaults(opts Options) Options {
	if opts.ClientID == "" {
		opts.ClientID = "energy-console-" + uuid.NewString()[:8]
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	opts.Topics = opts.Topics.withDefaults()
	return opts
}

// Connect dials the broker. When the first attempt does not finish within the
// connect timeout the client keeps retrying in the background.
func (c *Client) Connect(ctx context.Context) error {
	tok := c.client.Connect()
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("connect to %s: %w", c.opts.Broker, err)
		}
	case <-time.After(c.opts.ConnectTimeout):
		if c.log != nil {
			c.log.Warnw("mqtt_connect_pending", "broker", c.opts.Broker, "timeout", c.opts.ConnectTimeout)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(disconnectQuiesceMs)
}

// Connected reports whether the broker connection is currently open.
func (c *Client) Connected() bool {
	return c.client.IsConnectionOpen()
}

// PublishCommand sends a device command to the room's command topic.
func (c *Client) PublishCommand(ctx context.Context, room string, cmd models.Command) error {
	return c.publish(ctx, c.opts.Topics.CommandTopic(room), false, cmd)
}

// PublishMode announces the mode retained so late subscribers see it.
func (c *Client) PublishMode(ctx context.Context, msg models.ModeMessage) error {
	return c.publish(ctx, c.opts.Topics.Mode, true, msg)
}

// publish hands the message to paho without waiting for the broker ack. Errors
// known at call time are returned; a later failure or a missing ack within
// PublishTimeout is reported to the sink.
func (c *Client) publish(ctx context.Context, topic string, retained bool, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.Connected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	tok := c.client.Publish(topic, c.opts.QoS, retained, payload)
	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
		c.published(topic, retained)
	default:
		go c.awaitAck(topic, retained, tok)
	}
	return nil
}

func (c *Client) awaitAck(topic string, retained bool, tok mqtt.Token) {
	timer := time.NewTimer(c.opts.PublishTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-tok.Done():
		if err = tok.Error(); err != nil {
			err = fmt.Errorf("publish %s: %w", topic, err)
		}
	case <-timer.C:
		err = fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err == nil {
		c.published(topic, retained)
		return
	}
	if c.log != nil {
		c.log.Warnw("mqtt_publish_failed", "topic", topic, "err", err)
	}
	c.sink.PublishFailed(topic, err)
}

func (c *Client) published(topic string, retained bool) {
	if c.log != nil {
		c.log.Debugw("mqtt_published", "topic", topic, "retained", retained)
	}
}

// onConnect runs on every (re)connect: subscriptions do not survive a clean session.
func (c *Client) onConnect(mc mqtt.Client) {
	filters := c.opts.Topics.Filters(c.opts.QoS)
	tok := mc.SubscribeMultiple(filters, c.onMessage)
	if tok.WaitTimeout(c.opts.ConnectTimeout) && tok.Error() != nil {
		if c.log != nil {
			c.log.Errorw("mqtt_subscribe_failed", "err", tok.Error())
		}
	}
	if c.log != nil {
		c.log.Infow("mqtt_connected", "broker", c.opts.Broker, "filters", len(filters))
	}
	c.sink.SetConnected(true)
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	if c.log != nil {
		c.log.Warnw("mqtt_connection_lost", "broker", c.opts.Broker, "err", err)
	}
	c.sink.SetConnected(false)
}

func (c *Client) onMessage(_ mqtt.Client, m mqtt.Message) {
	ch, room, device, ok := c.opts.Topics.Parse(m.Topic())
	if !ok {
		if c.log != nil {
			c.log.Debugw("mqtt_unrouted_topic", "topic", m.Topic())
		}
		return
	}
	c.sink.Handle(console.Inbound{
		Channel:    ch,
		Room:       room,
		Device:     device,
		Payload:    m.Payload(),
		ReceivedAt: c.now(),
	})
}
