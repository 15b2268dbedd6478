package google

import (
	"context"
	"fmt"
	"iter"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"driveindex/internal/sources/google/drive"
	"driveindex/pkg/interfaces"
	"driveindex/pkg/models"
)

const (
	SourceTypeDrive = "google_drive"
)

// GoogleSource enumerates a Google Drive account: shared drives, their files,
// and the files of the user's own corpus.
type GoogleSource struct {
	client     *drive.Client
	enumerator *drive.Enumerator
	config     models.SourceConfig
	sourceID   string
	logger     *zap.Logger
}

func NewGoogleSourceWithConfig(sourceID string, config models.SourceConfig, logger *zap.Logger) *GoogleSource {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GoogleSource{
		sourceID: sourceID,
		config:   config,
		logger:   logger.With(zap.String("source", sourceID)),
	}
}

func (g *GoogleSource) Name() string {
	if g.sourceID != "" {
		return g.sourceID
	}

	return SourceTypeDrive
}

// Configure builds the authenticated client and the enumerator. Extra client
// options (transport, backoff) are applied after the configured timeout.
func (g *GoogleSource) Configure(ts oauth2.TokenSource, opts ...drive.ClientOption) error {
	if ts == nil {
		return fmt.Errorf("google drive source %q: no token source", g.Name())
	}

	cfg := g.config.Drive

	clientOpts := append([]drive.ClientOption{
		drive.WithLogger(g.logger),
		drive.WithTimeout(cfg.RequestTimeout),
	}, opts...)
	g.client = drive.NewClient(ts, clientOpts...)

	enumerator, err := drive.NewEnumerator(g.client, drive.Options{
		ExcludePatterns: cfg.ExcludePatterns,
		StopAfter:       cfg.StopAfterFiles,
		Endpoints:       drive.NewEndpoints(cfg.APIBaseURL),
		Logger:          g.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Drive enumerator: %w", err)
	}

	g.enumerator = enumerator

	return nil
}

// Entities implements interfaces.Source.
func (g *GoogleSource) Entities(ctx context.Context) iter.Seq2[models.Entity, error] {
	if g.enumerator == nil {
		return func(yield func(models.Entity, error) bool) {
			yield(nil, fmt.Errorf("google drive source %q is not configured", g.Name()))
		}
	}

	return g.enumerator.Entities(ctx)
}

// HTTPClient returns the authenticated client, used to download fetch references.
func (g *GoogleSource) HTTPClient() *http.Client {
	if g.client == nil {
		return nil
	}

	return g.client.HTTPClient()
}

// Ensure GoogleSource implements Source interface.
var _ interfaces.Source = (*GoogleSource)(nil)
