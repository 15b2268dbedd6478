package drive

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"

	"driveindex/pkg/models"
)

// Endpoints are the listing URLs used by the enumerator.
type Endpoints struct {
	Drives string
	Files  string
}

// NewEndpoints derives endpoints from a Drive v3 base URL; empty means DefaultBaseURL.
func NewEndpoints(baseURL string) Endpoints {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	return Endpoints{
		Drives: base + "/drives",
		Files:  base + "/files",
	}
}

// Options configures an Enumerator.
type Options struct {
	ExcludePatterns []string
	// StopAfter ends the enumeration once this many files were emitted; 0 disables it.
	StopAfter int
	// MaxDepth bounds parent lookups per file; 0 uses DefaultMaxDepth.
	MaxDepth  int
	Endpoints Endpoints
	Logger    *zap.Logger
}

// Enumerator streams shared drives, the files in each shared drive, and then
// the files of the user's own corpus, in that order.
type Enumerator struct {
	fetcher   Fetcher
	endpoints Endpoints
	resolver  *PathResolver
	filter    *ExclusionFilter
	stopAfter int
	logger    *zap.Logger
}

// NewEnumerator creates an Enumerator over f.
func NewEnumerator(f Fetcher, opts Options) (*Enumerator, error) {
	if opts.StopAfter < 0 {
		return nil, fmt.Errorf("stop-after must not be negative, got %d", opts.StopAfter)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoints := opts.Endpoints
	if endpoints.Drives == "" || endpoints.Files == "" {
		endpoints = NewEndpoints("")
	}

	filter, err := NewExclusionFilter(opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	return &Enumerator{
		fetcher:   f,
		endpoints: endpoints,
		resolver:  NewPathResolver(f, endpoints.Files, opts.MaxDepth, logger),
		filter:    filter,
		stopAfter: opts.StopAfter,
		logger:    logger,
	}, nil
}

// errHalted ends a run without an error: the consumer stopped pulling or the
// stop threshold was reached.
var errHalted = errors.New("enumeration halted")

// Entities returns the ordered entity stream. On failure, entities already
// yielded stay valid and the error is yielded last.
func (e *Enumerator) Entities(ctx context.Context) iter.Seq2[models.Entity, error] {
	return func(yield func(models.Entity, error) bool) {
		if c, ok := e.fetcher.(interface{ CloseIdleConnections() }); ok {
			defer c.CloseIdleConnections()
		}

		r := &run{Enumerator: e, yield: yield}
		if err := r.execute(ctx); err != nil && !errors.Is(err, errHalted) {
			yield(nil, err)
		}
	}
}

// run holds the state of a single enumeration.
type run struct {
	*Enumerator
	yield   func(models.Entity, error) bool
	emitted int
}

func (r *run) execute(ctx context.Context) error {
	if err := r.emitContainers(ctx); err != nil {
		return err
	}

	driveIDs, err := r.listDriveIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range driveIDs {
		if err := r.emitFiles(ctx, fileScope{DriveID: id}); err != nil {
			return err
		}
	}

	return r.emitFiles(ctx, fileScope{})
}

func (r *run) listDrives(ctx context.Context) iter.Seq2[DriveRecord, error] {
	return Paginate[DriveRecord](ctx, r.fetcher, r.endpoints.Drives, driveListParams(), "drives")
}

func (r *run) emitContainers(ctx context.Context) error {
	for rec, err := range r.listDrives(ctx) {
		if err != nil {
			return fmt.Errorf("failed to list shared drives: %w", err)
		}

		r.logger.Debug("Shared drive", zap.String("drive_id", rec.ID), zap.String("name", rec.Name))

		container, err := BuildContainer(rec)
		if err != nil {
			return err
		}

		if !r.yield(container, nil) {
			return errHalted
		}
	}

	return nil
}

// listDriveIDs lists shared drives a second time rather than reusing the
// containers phase, so each phase depends only on its own listing.
func (r *run) listDriveIDs(ctx context.Context) ([]string, error) {
	var ids []string

	for rec, err := range r.listDrives(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to list shared drives: %w", err)
		}

		ids = append(ids, rec.ID)
	}

	return ids, nil
}

func (r *run) emitFiles(ctx context.Context, scope fileScope) error {
	files := Paginate[FileRecord](ctx, r.fetcher, r.endpoints.Files, fileListParams(scope), "files")

	for rec, err := range files {
		if err != nil {
			return fmt.Errorf("failed to list files in %s: %w", scope, err)
		}

		r.logger.Debug("File listed", zap.String("scope", scope.String()), zap.String("id", rec.ID))

		resource, err := r.process(ctx, rec)
		if err != nil {
			name := rec.DisplayName("unknown")
			r.logger.Error("Failed to process file",
				zap.String("scope", scope.String()),
				zap.String("name", name),
				zap.String("id", rec.ID),
				zap.Error(err))

			return &RecordError{Scope: scope.String(), ID: rec.ID, Name: name, Err: err}
		}

		if resource == nil {
			continue
		}

		if !r.yield(resource, nil) {
			return errHalted
		}

		r.emitted++
		if r.stopAfter > 0 && r.emitted >= r.stopAfter {
			r.logger.Info("Stop threshold reached, ending enumeration", zap.Int("files", r.emitted))

			return errHalted
		}
	}

	return nil
}

// process resolves, filters and builds one file record. It returns nil when
// the file is excluded or has nothing to fetch.
func (r *run) process(ctx context.Context, rec FileRecord) (*models.Resource, error) {
	name := rec.DisplayName("unknown")
	path := r.resolver.Resolve(ctx, rec)

	if pattern, excluded := r.filter.Match(path); excluded {
		r.logger.Info("Excluded file",
			zap.String("name", name),
			zap.String("path", path),
			zap.String("pattern", pattern))

		return nil, nil
	}

	r.logger.Info("Included file", zap.String("name", name), zap.String("path", path))

	resource, err := BuildResource(rec, r.endpoints.Files)
	if err != nil {
		return nil, err
	}

	if resource == nil {
		r.logger.Info("Skipping file without fetch reference",
			zap.String("name", rec.DisplayName(untitledName)),
			zap.String("id", rec.ID),
			zap.Bool("trashed", rec.Trashed),
			zap.String("mime_type", rec.MimeType))
	}

	return resource, nil
}
