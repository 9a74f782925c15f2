package audit

import (
	"context"
	"time"

	"github.com/sissm-go/pioverride/internal/lifecycle"
	"github.com/sissm-go/pioverride/internal/pioverride"
	"go.uber.org/zap"
)

// Setter records every push made through the wrapped PropertySetter.
type Setter struct {
	next     pioverride.PropertySetter
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewSetter wraps next so each push is recorded.
func NewSetter(next pioverride.PropertySetter, recorder Recorder, logger *zap.Logger) *Setter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Setter{
		next:     next,
		recorder: recorder,
		logger:   logger.Named("audit"),
		now:      time.Now,
	}
}

// SetGameModeProperty forwards the push and records its outcome. The push
// result is returned unchanged; recording failures are only logged.
func (s *Setter) SetGameModeProperty(ctx context.Context, name, value string) error {
	pushErr := s.next.SetGameModeProperty(ctx, name, value)

	entry := Entry{
		Property: name,
		Value:    value,
		At:       s.now(),
	}
	if event, ok := lifecycle.EventFromContext(ctx); ok {
		entry.EventID = event.ID
		entry.EventType = string(event.Type)
	}
	if pushErr != nil {
		entry.Error = pushErr.Error()
	}

	if err := s.recorder.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry",
			zap.String("property", name),
			zap.Error(err),
		)
	}
	return pushErr
}
