package interfaces

import (
	"context"
	"iter"

	"driveindex/pkg/models"
)

// Source represents any enumerable remote storage (Google Drive, ...).
// Entities are produced lazily: nothing is fetched until the caller pulls,
// and breaking out of the range loop stops the enumeration.
type Source interface {
	Name() string
	Entities(ctx context.Context) iter.Seq2[models.Entity, error]
}

// Sink represents any destination that receives entities one at a time
// (JSON Lines stream, SQL index, download directory).
type Sink interface {
	Name() string
	Write(ctx context.Context, entity models.Entity) error
	Close() error
}
