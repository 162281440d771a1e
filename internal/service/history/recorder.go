package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirethread/internal/metrics"
	"github.com/vovakirdan/wirethread/internal/store"
)

// Recorder decides whether an update produces a history entry.
// It runs inside the store's update transaction and never touches the store itself.
type Recorder struct {
	log *zerolog.Logger
	now func() time.Time
}

// NewRecorder creates a new edit history recorder.
func NewRecorder(logger *zerolog.Logger) *Recorder {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Recorder{
		log: logger,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// OnMessageUpdating returns the entry to store for an update of old into updated.
// Nothing is recorded when the body did not change or when old is unknown.
func (r *Recorder) OnMessageUpdating(_ context.Context, old, updated *store.Message) (*store.MessageHistory, bool) {
	if old == nil {
		id := int64(0)
		if updated != nil {
			id = updated.ID
		}
		r.log.Warn().Int64("message_id", id).Msg("update of unknown message, history not recorded")
		return nil, false
	}
	if updated == nil || old.Body == updated.Body {
		metrics.MessageEdits.WithLabelValues("unchanged").Inc()
		return nil, false
	}

	metrics.MessageEdits.WithLabelValues("recorded").Inc()
	return &store.MessageHistory{
		MessageID: old.ID,
		EditorID:  old.SenderID,
		OldBody:   old.Body,
		CreatedAt: r.now(),
	}, true
}
