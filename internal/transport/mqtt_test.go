package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"energy_console/internal/console"
	"energy_console/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newToken(err error, finished bool) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	if finished {
		close(t.done)
	}
	return t
}

func (t *doneToken) Wait() bool                     { <-t.done; return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeMQTT implements the parts of mqtt.Client the adapter uses.
type fakeMQTT struct {
	mqtt.Client
	open       bool
	publishErr error
	hang       bool
	published  []published
	filters    map[string]byte
}

func (f *fakeMQTT) IsConnectionOpen() bool { return f.open }

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.published = append(f.published, published{topic, qos, retained, payload.([]byte)})
	return newToken(f.publishErr, !f.hang)
}

func (f *fakeMQTT) SubscribeMultiple(filters map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	f.filters = filters
	return newToken(nil, true)
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

type recordingSink struct {
	mu        sync.Mutex
	inbound   []console.Inbound
	connected []bool
	failed    chan error
}

func (s *recordingSink) PublishFailed(_ string, err error) {
	if s.failed != nil {
		s.failed <- err
	}
}

func (s *recordingSink) Handle(in console.Inbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbound = append(s.inbound, in)
}

func (s *recordingSink) SetConnected(c bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = append(s.connected, c)
}

func TestClient_PublishCommand(t *testing.T) {
	fm := &fakeMQTT{open: true}
	c := newClientWith(fm, Options{QoS: 1}, &recordingSink{}, nil)

	err := c.PublishCommand(context.Background(), "room2", models.Command{
		Device: models.DeviceLamp,
		Action: models.ActionOn,
		Reason: models.ReasonManual,
		Mode:   models.ModeManual,
	})
	require.NoError(t, err)
	require.Len(t, fm.published, 1)

	p := fm.published[0]
	assert.Equal(t, "control/room2/cmd", p.topic)
	assert.Equal(t, byte(1), p.qos)
	assert.False(t, p.retained)
	assert.JSONEq(t, `{"device":"lamp","action":"on","reason":"manual_dashboard","mode":"manual"}`, string(p.payload))
}

func TestClient_PublishModeRetained(t *testing.T) {
	fm := &fakeMQTT{open: true}
	c := newClientWith(fm, Options{}, &recordingSink{}, nil)

	require.NoError(t, c.PublishMode(context.Background(), models.ModeMessage{Mode: models.ModeEco, EcoMode: 1, Timestamp: 42}))
	require.Len(t, fm.published, 1)
	assert.Equal(t, "control/mode", fm.published[0].topic)
	assert.True(t, fm.published[0].retained)

	var got map[string]any
	require.NoError(t, json.Unmarshal(fm.published[0].payload, &got))
	assert.Equal(t, "eco", got["mode"])
	assert.Equal(t, 1.0, got["ecoMode"])
}

func TestClient_PublishFailures(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		fm := &fakeMQTT{open: false}
		c := newClientWith(fm, Options{}, &recordingSink{}, nil)
		err := c.PublishMode(context.Background(), models.ModeMessage{Mode: models.ModeEco})
		require.ErrorIs(t, err, ErrNotConnected)
		assert.Empty(t, fm.published)
	})
	t.Run("broker error", func(t *testing.T) {
		boom := errors.New("boom")
		fm := &fakeMQTT{open: true, publishErr: boom}
		c := newClientWith(fm, Options{}, &recordingSink{}, nil)
		err := c.PublishCommand(context.Background(), "room1", models.Command{})
		require.ErrorIs(t, err, boom)
	})
	t.Run("canceled context", func(t *testing.T) {
		fm := &fakeMQTT{open: true}
		c := newClientWith(fm, Options{}, &recordingSink{}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.ErrorIs(t, c.PublishCommand(ctx, "room1", models.Command{}), context.Canceled)
		assert.Empty(t, fm.published)
	})
}

func TestClient_PublishDoesNotWaitForAck(t *testing.T) {
	fm := &fakeMQTT{open: true, hang: true}
	sink := &recordingSink{failed: make(chan error, 1)}
	c := newClientWith(fm, Options{PublishTimeout: 200 * time.Millisecond}, sink, nil)

	start := time.Now()
	require.NoError(t, c.PublishCommand(context.Background(), "room1", models.Command{}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	select {
	case err := <-sink.failed:
		require.ErrorIs(t, err, ErrPublishTimeout)
	case <-time.After(time.Second):
		t.Fatal("missing ack was not reported")
	}
}

func TestClient_UnackedPublishesDoNotStallConsole(t *testing.T) {
	fm := &fakeMQTT{open: true, hang: true}
	sink := &recordingSink{failed: make(chan error, 8)}
	c := newClientWith(fm, Options{PublishTimeout: 300 * time.Millisecond}, sink, nil)
	con := console.New(console.Config{Rooms: []string{"room1"}}, c, nil, time.Now)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, con.SetMode(ctx, models.ModeManual))
	require.NoError(t, con.RequestCommand(ctx, "room1", models.DeviceLamp, models.ActionOn))
	require.NoError(t, con.Dispatch(console.Inbound{
		Channel:    console.ChannelTelemetry,
		Room:       "room1",
		Payload:    []byte(`{"ts":1700000000,"voltage":120,"amps":2}`),
		ReceivedAt: time.Now(),
	}))
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Len(t, fm.published, 2)

	for i := 0; i < 2; i++ {
		select {
		case err := <-sink.failed:
			require.ErrorIs(t, err, ErrPublishTimeout)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing ack %d was not reported", i+1)
		}
	}
}

func TestClient_OnConnectSubscribesAndReports(t *testing.T) {
	fm := &fakeMQTT{open: true}
	sink := &recordingSink{}
	c := newClientWith(fm, Options{QoS: 1}, sink, nil)

	c.onConnect(fm)
	assert.Len(t, fm.filters, 4)
	assert.Equal(t, []bool{true}, sink.connected)

	c.onConnectionLost(fm, errors.New("eof"))
	assert.Equal(t, []bool{true, false}, sink.connected)
}

func TestClient_OnMessageRoutes(t *testing.T) {
	sink := &recordingSink{}
	c := newClientWith(&fakeMQTT{}, Options{}, sink, nil)
	at := time.UnixMilli(1_700_000_000_000)
	c.now = func() time.Time { return at }

	c.onMessage(nil, fakeMessage{topic: "control/room1/state/lamp", payload: []byte(`{"on":true}`)})
	c.onMessage(nil, fakeMessage{topic: "unrelated/topic", payload: []byte(`{}`)})

	require.Len(t, sink.inbound, 1)
	in := sink.inbound[0]
	assert.Equal(t, console.ChannelDeviceState, in.Channel)
	assert.Equal(t, "room1", in.Room)
	assert.Equal(t, models.DeviceLamp, in.Device)
	assert.Equal(t, at, in.ReceivedAt)
	assert.JSONEq(t, `{"on":true}`, string(in.Payload))
}
