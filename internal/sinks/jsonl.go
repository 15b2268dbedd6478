package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"driveindex/pkg/interfaces"
	"driveindex/pkg/models"
)

// StdoutPath selects standard output as the JSONL destination.
const StdoutPath = "-"

// jsonlRecord is one line of the entity stream.
type jsonlRecord struct {
	Type   models.EntityType `json:"type"`
	Entity models.Entity     `json:"entity"`
}

// JSONLSink writes each entity as one JSON object per line, in arrival order.
type JSONLSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	count  int
}

// NewJSONLSink opens path for writing; StdoutPath writes to os.Stdout.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if path == StdoutPath {
		return NewJSONLWriterSink(os.Stdout, nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}

	return NewJSONLWriterSink(f, f), nil
}

// NewJSONLWriterSink writes to w; closer (may be nil) is closed by Close.
func NewJSONLWriterSink(w io.Writer, closer io.Closer) *JSONLSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return &JSONLSink{enc: enc, closer: closer}
}

func (s *JSONLSink) Name() string {
	return "jsonl"
}

func (s *JSONLSink) Write(_ context.Context, entity models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(jsonlRecord{Type: entity.GetEntityType(), Entity: entity}); err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", entity.GetEntityType(), entity.GetEntityID(), err)
	}

	s.count++

	return nil
}

// Count returns the number of lines written.
func (s *JSONLSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.count
}

func (s *JSONLSink) Close() error {
	if s.closer == nil {
		return nil
	}

	return s.closer.Close()
}

var _ interfaces.Sink = (*JSONLSink)(nil)
