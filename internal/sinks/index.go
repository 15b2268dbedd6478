package sinks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"driveindex/internal/index"
	"driveindex/pkg/interfaces"
	"driveindex/pkg/models"
)

// IndexSink upserts entities into the SQL metadata index and records the
// run's counts as the source's sync state on Close.
type IndexSink struct {
	store      *index.Store
	sourceName string
	containers int
	resources  int
	now        func() time.Time
}

// NewIndexSink takes ownership of store; Close closes it.
func NewIndexSink(store *index.Store, sourceName string) *IndexSink {
	return &IndexSink{store: store, sourceName: sourceName, now: time.Now}
}

func (s *IndexSink) Name() string {
	return "index"
}

func (s *IndexSink) Write(ctx context.Context, entity models.Entity) error {
	switch e := entity.(type) {
	case *models.Container:
		if err := s.store.PutContainer(ctx, s.sourceName, e); err != nil {
			return err
		}

		s.containers++
	case *models.Resource:
		if err := s.store.PutResource(ctx, s.sourceName, e); err != nil {
			return err
		}

		s.resources++
	default:
		return fmt.Errorf("index sink: unsupported entity type %T", entity)
	}

	return nil
}

func (s *IndexSink) Close() error {
	err := s.store.UpdateSyncState(context.Background(), index.SyncState{
		SourceName:     s.sourceName,
		LastSyncTime:   s.now(),
		ContainerCount: s.containers,
		ResourceCount:  s.resources,
	})

	return multierr.Append(err, s.store.Close())
}

var _ interfaces.Sink = (*IndexSink)(nil)
