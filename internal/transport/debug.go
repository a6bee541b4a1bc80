package transport

import (
	"context"

	"hiive-relay/internal/event"
	"hiive-relay/pkg/logger"

	"github.com/google/uuid"
)

// DebugSink logs batches instead of sending them. Used in development mode
// alongside or instead of the real connection.
type DebugSink struct {
	log *logger.Logger
}

func NewDebugSink(log *logger.Logger) *DebugSink {
	return &DebugSink{log: log}
}

func (s *DebugSink) Deliver(ctx context.Context, events []event.Event) (Result, error) {
	succeeded := make([]uuid.UUID, len(events))
	for i, e := range events {
		succeeded[i] = e.ID
		s.log.Infof("event %s/%s label=%q user=%s", e.Category, e.Key, e.Label(), e.User.Login)
	}
	return Result{Succeeded: succeeded}, nil
}
