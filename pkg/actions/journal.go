package actions

import (
	"context"
	"time"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/telemetry"
)

// ActionAppender persists actions. stores.SQLiteStore implements it.
type ActionAppender interface {
	AppendAction(ctx context.Context, action engine.Action) error
}

// JournalSubscriber returns a subscriber that appends every delivered action
// to the journal. Failures are logged and never reach the emitter.
func JournalSubscriber(journal ActionAppender, logger *telemetry.Logger) Subscriber {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	logger = logger.NewComponentLogger("action-journal")

	return func(action engine.Action) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := journal.AppendAction(ctx, action); err != nil {
			logger.WithError(err).
				WithField("action_id", action.ID).
				Warn("failed to journal action")
		}
	}
}
