package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"driveindex/pkg/interfaces"
	"driveindex/pkg/models"
)

const defaultBuffer = 64

// Options controls the behavior of Syncer.Run.
type Options struct {
	// DryRun enumerates without writing to sinks.
	DryRun bool
	// Buffer is the number of entities that may be in flight between the
	// source and the sinks; 0 uses a default.
	Buffer int
}

// Result records the outcome of a run. It is returned even when the run
// fails, describing everything delivered before the failure.
type Result struct {
	Source     string
	Containers int
	Resources  int
	Duration   time.Duration
}

// Total returns the number of entities delivered.
func (r *Result) Total() int {
	return r.Containers + r.Resources
}

// Syncer streams one Source into a set of Sinks.
type Syncer struct {
	logger *zap.Logger
}

func NewSyncer(logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Syncer{logger: logger}
}

// Run pulls entities from src and writes each one to every sink, in the
// order the source produced them. Enumeration runs ahead of the sinks by at
// most opts.Buffer entities.
//
// A source error ends the run after the entities already produced were
// written. A sink error is fatal: it stops the enumeration. Sinks are closed
// before Run returns, and close errors are combined with the run error.
func (s *Syncer) Run(ctx context.Context, src interfaces.Source, sinks []interfaces.Sink, opts Options) (*Result, error) {
	start := time.Now()
	result := &Result{Source: src.Name()}

	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	entities := make(chan models.Entity, buffer)

	// Only a sink failure stops the producer early; a source failure must
	// not cancel the writes of entities it already produced.
	producerCtx, stopProducer := context.WithCancel(ctx)
	defer stopProducer()

	var g errgroup.Group

	// Producer: ranging the source drives the paginated enumeration.
	g.Go(func() error {
		defer close(entities)

		for entity, err := range src.Entities(producerCtx) {
			if err != nil {
				if producerCtx.Err() != nil {
					return ctx.Err()
				}

				return fmt.Errorf("source '%s' enumeration failed: %w", src.Name(), err)
			}

			select {
			case entities <- entity:
			case <-producerCtx.Done():
				return ctx.Err()
			}
		}

		return nil
	})

	// Consumer: single goroutine keeps sink writes ordered.
	g.Go(func() error {
		for entity := range entities {
			if !opts.DryRun {
				for _, sink := range sinks {
					if err := sink.Write(ctx, entity); err != nil {
						stopProducer()

						return fmt.Errorf("sink '%s' write failed: %w", sink.Name(), err)
					}
				}
			}

			s.count(result, entity)
		}

		return nil
	})

	err := g.Wait()
	err = multierr.Append(err, CloseSinks(sinks))
	result.Duration = time.Since(start)

	fields := []zap.Field{
		zap.String("source", result.Source),
		zap.Int("containers", result.Containers),
		zap.Int("resources", result.Resources),
		zap.Duration("duration", result.Duration),
		zap.Bool("dry_run", opts.DryRun),
	}

	if err != nil {
		s.logger.Error("Sync failed", append(fields, zap.Error(err))...)

		return result, err
	}

	s.logger.Info("Sync completed", fields...)

	return result, nil
}

func (s *Syncer) count(result *Result, entity models.Entity) {
	switch entity.GetEntityType() {
	case models.EntityTypeContainer:
		result.Containers++
	case models.EntityTypeResource:
		result.Resources++
	}

	s.logger.Debug("Entity delivered",
		zap.String("type", string(entity.GetEntityType())),
		zap.String("id", entity.GetEntityID()))
}

// CloseSinks closes every sink and combines their errors.
func CloseSinks(sinks []interfaces.Sink) error {
	var err error

	for _, sink := range sinks {
		if closeErr := sink.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("sink '%s' close failed: %w", sink.Name(), closeErr))
		}
	}

	return err
}
