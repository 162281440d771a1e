package threads

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirethread/internal/core"
	"github.com/vovakirdan/wirethread/internal/metrics"
	"github.com/vovakirdan/wirethread/internal/store"
)

// Store is the part of the message store a thread read needs.
type Store interface {
	GetMessage(ctx context.Context, id int64) (*store.Message, error)
	ListThreadMessages(ctx context.Context, rootID int64) ([]*store.Message, error)
}

// Service builds nested thread views.
type Service struct {
	store Store
	log   *zerolog.Logger
}

// New creates a new thread service.
func New(st Store, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{store: st, log: logger}
}

// BuildThread returns the tree of replies under rootID. The root must satisfy vis;
// everything beneath a visible root belongs to the same conversation and is included.
func (s *Service) BuildThread(ctx context.Context, rootID int64, vis core.Visibility) (*core.Node, error) {
	start := time.Now()

	root, err := s.store.GetMessage(ctx, rootID)
	if err != nil {
		return nil, core.StoreFailure("get thread root", err)
	}
	if vis != nil && !vis(root) {
		return nil, core.NotFound("message not found")
	}

	rows, err := s.store.ListThreadMessages(ctx, rootID)
	if err != nil {
		return nil, core.StoreFailure("list thread", err)
	}

	tree := core.BuildTree(rootID, rows)
	if tree == nil {
		// Root was deleted between the two reads.
		return nil, core.NotFound("message not found")
	}

	size := tree.Size()
	metrics.ThreadSize.Observe(float64(size))
	metrics.ThreadBuildDuration.Observe(time.Since(start).Seconds())

	if size != len(rows) {
		s.log.Warn().
			Int64("root_id", rootID).
			Int("rows", len(rows)).
			Int("nodes", size).
			Msg("thread rows not reachable from root")
	}

	return tree, nil
}
