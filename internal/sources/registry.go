package sources

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"driveindex/internal/sources/google"
	"driveindex/pkg/interfaces"
	"driveindex/pkg/models"
)

// AuthType names how a connector obtains credentials.
type AuthType string

const (
	AuthTypeOAuth2WithRefresh AuthType = "oauth2_with_refresh"
)

// ConfigField describes one user-facing configuration field of a connector.
type ConfigField struct {
	Name        string
	Title       string
	Description string
	Required    bool
}

// Factory builds a configured Source for a connector.
type Factory func(sourceID string, cfg models.SourceConfig, ts oauth2.TokenSource, logger *zap.Logger) (interfaces.Source, error)

// Descriptor advertises a connector's identity and capabilities.
type Descriptor struct {
	ShortName    string
	Name         string
	AuthType     AuthType
	ConfigFields []ConfigField
	Labels       []string
	Factory      Factory
}

// Registry maps connector short names to descriptors. It is filled at startup
// and only read afterwards; Register is not safe for concurrent use.
type Registry struct {
	descriptors map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]Descriptor)}
}

// Register adds d. Short names must be unique and a factory is required.
func (r *Registry) Register(d Descriptor) error {
	if d.ShortName == "" {
		return fmt.Errorf("connector short name is required")
	}

	if d.Factory == nil {
		return fmt.Errorf("connector %q has no factory", d.ShortName)
	}

	if _, exists := r.descriptors[d.ShortName]; exists {
		return fmt.Errorf("connector %q is already registered", d.ShortName)
	}

	r.descriptors[d.ShortName] = d

	return nil
}

// Lookup returns the descriptor registered under shortName.
func (r *Registry) Lookup(shortName string) (Descriptor, bool) {
	d, ok := r.descriptors[shortName]

	return d, ok
}

// Names returns the registered short names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Descriptors returns all descriptors sorted by short name.
func (r *Registry) Descriptors() []Descriptor {
	names := r.Names()

	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		out = append(out, r.descriptors[name])
	}

	return out
}

// Create builds the source for cfg.Type.
func (r *Registry) Create(sourceID string, cfg models.SourceConfig, ts oauth2.TokenSource, logger *zap.Logger) (interfaces.Source, error) {
	d, ok := r.Lookup(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}

	src, err := d.Factory(sourceID, cfg, ts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s source %q: %w", d.ShortName, sourceID, err)
	}

	return src, nil
}

// GoogleDriveDescriptor describes the Google Drive connector.
func GoogleDriveDescriptor() Descriptor {
	return Descriptor{
		ShortName: google.SourceTypeDrive,
		Name:      "Google Drive",
		AuthType:  AuthTypeOAuth2WithRefresh,
		ConfigFields: []ConfigField{
			{
				Name:  "exclude_patterns",
				Title: "Exclude Patterns",
				Description: "List of file/folder paths or patterns to exclude from synchronization. " +
					"Examples: '*.tmp', 'Private/*', 'Confidential Reports/'. " +
					"Separate multiple patterns with commas.",
			},
		},
		Labels: []string{"File Storage"},
		Factory: func(sourceID string, cfg models.SourceConfig, ts oauth2.TokenSource, logger *zap.Logger) (interfaces.Source, error) {
			src := google.NewGoogleSourceWithConfig(sourceID, cfg, logger)
			if err := src.Configure(ts); err != nil {
				return nil, err
			}

			return src, nil
		},
	}
}

// DefaultRegistry returns a registry holding every built-in connector.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// Built-in descriptors have distinct names; Register cannot fail here.
	_ = r.Register(GoogleDriveDescriptor())

	return r
}
