package service

import (
	"context"
	"errors"

	"energy_console/internal/console"
	"energy_console/internal/control"
	"energy_console/internal/logger"
)

// IngestService feeds transport callbacks into the console loop in receipt order.
type IngestService struct {
	loop *Loop
	log  *logger.Logger
}

func NewIngestService(loop *Loop, log *logger.Logger) *IngestService {
	return &IngestService{loop: loop, log: log}
}

// Handle queues one inbound message. Dropped messages are logged at debug only.
func (s *IngestService) Handle(in console.Inbound) {
	s.loop.Submit(func(_ context.Context, c *console.Console) {
		err := c.Dispatch(in)
		if err == nil || s.log == nil {
			return
		}
		if errors.Is(err, control.ErrUnknownDevice) || errors.Is(err, console.ErrUnknownRoom) {
			s.log.Debugw("inbound_unknown_target", "channel", in.Channel, "room", in.Room, "err", err)
			return
		}
		s.log.Debugw("inbound_dropped", "channel", in.Channel, "room", in.Room, "err", err)
	})
}

// PublishFailed queues an alert for a message the broker did not acknowledge.
func (s *IngestService) PublishFailed(topic string, err error) {
	s.loop.Submit(func(_ context.Context, c *console.Console) {
		c.NotePublishFailed(topic, err)
	})
}

// SetConnected queues a connectivity change.
func (s *IngestService) SetConnected(connected bool) {
	s.loop.Submit(func(ctx context.Context, c *console.Console) {
		c.SetConnected(ctx, connected)
	})
}
