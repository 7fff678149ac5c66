package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"energy_console/internal/console"
	"energy_console/internal/models"
)

type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	commands  []models.Command
	modes     []models.ModeMessage
}

func (f *fakePublisher) PublishCommand(_ context.Context, _ string, cmd models.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return nil
}

func (f *fakePublisher) PublishMode(_ context.Context, msg models.ModeMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, msg)
	return nil
}

func (f *fakePublisher) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePublisher) commandCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

type fakeMetrics struct {
	mu         sync.Mutex
	rejections map[string]int
	fetchOK    int
	fetchFail  int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{rejections: map[string]int{}} }

func (m *fakeMetrics) CommandRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections[reason]++
}

func (m *fakeMetrics) PriceFetch(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.fetchOK++
	} else {
		m.fetchFail++
	}
}

type testRig struct {
	loop    *Loop
	pub     *fakePublisher
	journal *fakeEventRepo
	metrics *fakeMetrics
}

// newTestRig starts a loop over a two-room console; it stops with the test.
func newTestRig(t *testing.T) *testRig {
	t.Helper()
	pub := &fakePublisher{connected: true}
	c := console.New(console.Config{
		Rooms:       []string{"room1", "room2"},
		PriceMaxAge: time.Hour,
	}, pub, nil, nil)
	journal := &fakeEventRepo{}
	loop := NewLoop(c, journal, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &testRig{loop: loop, pub: pub, journal: journal, metrics: newFakeMetrics()}
}

// sync waits until everything submitted so far has run.
func (r *testRig) sync(t *testing.T) {
	t.Helper()
	if err := r.loop.Do(context.Background(), func(context.Context, *console.Console) {}); err != nil {
		t.Fatalf("loop sync: %v", err)
	}
}

var errBoom = errors.New("boom")
