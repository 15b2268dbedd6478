package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"driveindex/pkg/models"
)

// Dialect selects SQL placeholder style and driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Stats contains aggregate statistics about the index.
type Stats struct {
	TotalContainers    int
	TotalResources     int
	TotalBytes         int64
	ResourcesBySource  map[string]int
	ResourcesByMode    map[models.FetchMode]int
	LastModifiedSeen   time.Time
	OldestModifiedSeen time.Time
}

// SyncState tracks the last run per source.
type SyncState struct {
	SourceName     string
	LastSyncTime   time.Time
	ContainerCount int
	ResourceCount  int
}

// Store is a SQL metadata index of enumerated Drive entities.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open opens a store for the given driver name ("sqlite" or "postgres").
func Open(driver, dsn string) (*Store, error) {
	switch Dialect(driver) {
	case DialectSQLite, "":
		return NewSQLiteStore(dsn)
	case DialectPostgres:
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported index driver: %s", driver)
	}
}

// NewSQLiteStore opens or creates the index database at dbPath.
func NewSQLiteStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	// Enable WAL mode for better concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return newStore(db, DialectSQLite)
}

// NewPostgresStore connects to a PostgreSQL index using a lib/pq DSN.
func NewPostgresStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to connect to index database: %w", err)
	}

	return newStore(db, DialectPostgres)
}

func newStore(db *sql.DB, dialect Dialect) (*Store, error) {
	store := &Store{db: db, dialect: dialect}

	if err := store.createSchema(); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}

	return store, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS containers (
		entity_id     TEXT PRIMARY KEY,
		source_name   TEXT NOT NULL DEFAULT '',
		name          TEXT NOT NULL DEFAULT '',
		kind          TEXT NOT NULL DEFAULT '',
		color_rgb     TEXT NOT NULL DEFAULT '',
		created_time  TEXT,
		hidden        BOOLEAN NOT NULL DEFAULT FALSE,
		org_unit_id   TEXT NOT NULL DEFAULT '',
		indexed_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS resources (
		entity_id      TEXT PRIMARY KEY,
		source_name    TEXT NOT NULL DEFAULT '',
		name           TEXT NOT NULL DEFAULT '',
		mime_type      TEXT NOT NULL DEFAULT '',
		description    TEXT NOT NULL DEFAULT '',
		starred        BOOLEAN NOT NULL DEFAULT FALSE,
		trashed        BOOLEAN NOT NULL DEFAULT FALSE,
		shared         BOOLEAN NOT NULL DEFAULT FALSE,
		parents        TEXT NOT NULL DEFAULT '[]',
		owners         TEXT NOT NULL DEFAULT '[]',
		web_view_link  TEXT NOT NULL DEFAULT '',
		created_time   TEXT,
		modified_time  TEXT,
		size_bytes     BIGINT,
		md5_checksum   TEXT NOT NULL DEFAULT '',
		fetch_url      TEXT NOT NULL DEFAULT '',
		fetch_mode     TEXT NOT NULL DEFAULT '',
		indexed_at     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_resources_source_name   ON resources(source_name)`,
	`CREATE INDEX IF NOT EXISTS idx_resources_modified_time ON resources(modified_time)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		source_name      TEXT PRIMARY KEY,
		last_sync_time   TEXT NOT NULL,
		container_count  INTEGER NOT NULL DEFAULT 0,
		resource_count   INTEGER NOT NULL DEFAULT 0
	)`,
}

func (s *Store) createSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// rebind rewrites '?' placeholders to the dialect's style.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var (
		b strings.Builder
		n int
	)

	b.Grow(len(query) + 8)

	for _, r := range query {
		if r == '?' {
			n++

			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// PutContainer upserts a shared drive.
func (s *Store) PutContainer(ctx context.Context, sourceName string, c *models.Container) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO containers (
			entity_id, source_name, name, kind, color_rgb,
			created_time, hidden, org_unit_id, indexed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			source_name  = excluded.source_name,
			name         = excluded.name,
			kind         = excluded.kind,
			color_rgb    = excluded.color_rgb,
			created_time = excluded.created_time,
			hidden       = excluded.hidden,
			org_unit_id  = excluded.org_unit_id,
			indexed_at   = excluded.indexed_at
	`),
		c.EntityID, sourceName, c.Name, c.Kind, c.ColorRGB,
		formatTime(c.CreatedTime), c.Hidden, c.OrgUnitID, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert container %s: %w", c.EntityID, err)
	}

	return nil
}

// PutResource upserts a file.
func (s *Store) PutResource(ctx context.Context, sourceName string, r *models.Resource) error {
	parentsJSON, err := json.Marshal(r.Parents)
	if err != nil {
		return fmt.Errorf("failed to marshal parents: %w", err)
	}

	ownersJSON, err := json.Marshal(r.Owners)
	if err != nil {
		return fmt.Errorf("failed to marshal owners: %w", err)
	}

	var size sql.NullInt64
	if r.Size != nil {
		size = sql.NullInt64{Int64: *r.Size, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO resources (
			entity_id, source_name, name, mime_type, description,
			starred, trashed, shared, parents, owners, web_view_link,
			created_time, modified_time, size_bytes, md5_checksum,
			fetch_url, fetch_mode, indexed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			source_name   = excluded.source_name,
			name          = excluded.name,
			mime_type     = excluded.mime_type,
			description   = excluded.description,
			starred       = excluded.starred,
			trashed       = excluded.trashed,
			shared        = excluded.shared,
			parents       = excluded.parents,
			owners        = excluded.owners,
			web_view_link = excluded.web_view_link,
			created_time  = excluded.created_time,
			modified_time = excluded.modified_time,
			size_bytes    = excluded.size_bytes,
			md5_checksum  = excluded.md5_checksum,
			fetch_url     = excluded.fetch_url,
			fetch_mode    = excluded.fetch_mode,
			indexed_at    = excluded.indexed_at
	`),
		r.EntityID, sourceName, r.Name, r.MimeType, r.Description,
		r.Starred, r.Trashed, r.Shared, string(parentsJSON), string(ownersJSON), r.WebViewLink,
		formatTime(r.CreatedTime), formatTime(r.ModifiedTime), size, r.MD5Checksum,
		r.Fetch.URL, string(r.Fetch.Mode), now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert resource %s: %w", r.EntityID, err)
	}

	return nil
}

// HasResource returns true if a file with the given id is indexed.
func (s *Store) HasResource(ctx context.Context, entityID string) (bool, error) {
	var count int

	err := s.db.QueryRowContext(ctx, s.rebind("SELECT COUNT(*) FROM resources WHERE entity_id = ?"), entityID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check resource %s: %w", entityID, err)
	}

	return count > 0, nil
}

// UpdateSyncState records the latest run for a source.
func (s *Store) UpdateSyncState(ctx context.Context, state SyncState) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO sync_state (source_name, last_sync_time, container_count, resource_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_name) DO UPDATE SET
			last_sync_time  = excluded.last_sync_time,
			container_count = excluded.container_count,
			resource_count  = excluded.resource_count
	`), state.SourceName, state.LastSyncTime.UTC().Format(time.RFC3339), state.ContainerCount, state.ResourceCount)
	if err != nil {
		return fmt.Errorf("failed to update sync state for %s: %w", state.SourceName, err)
	}

	return nil
}

// GetSyncState returns the recorded state for a source, or nil if it never ran.
func (s *Store) GetSyncState(ctx context.Context, sourceName string) (*SyncState, error) {
	var (
		state   = SyncState{SourceName: sourceName}
		syncStr string
	)

	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT last_sync_time, container_count, resource_count
		FROM sync_state WHERE source_name = ?
	`), sourceName).Scan(&syncStr, &state.ContainerCount, &state.ResourceCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read sync state for %s: %w", sourceName, err)
	}

	state.LastSyncTime, _ = time.Parse(time.RFC3339, syncStr)

	return &state, nil
}

// Stats returns aggregate statistics about the index.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ResourcesBySource: make(map[string]int),
		ResourcesByMode:   make(map[models.FetchMode]int),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM containers").Scan(&stats.TotalContainers); err != nil {
		return nil, fmt.Errorf("failed to count containers: %w", err)
	}

	var totalBytes sql.NullInt64

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), SUM(size_bytes) FROM resources").Scan(&stats.TotalResources, &totalBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to count resources: %w", err)
	}

	stats.TotalBytes = totalBytes.Int64

	if err := s.countBy(ctx, "source_name", func(key string, n int) { stats.ResourcesBySource[key] = n }); err != nil {
		return nil, err
	}

	if err := s.countBy(ctx, "fetch_mode", func(key string, n int) { stats.ResourcesByMode[models.FetchMode(key)] = n }); err != nil {
		return nil, err
	}

	var oldestStr, newestStr sql.NullString

	dateRangeQuery := "SELECT MIN(modified_time), MAX(modified_time) FROM resources"
	if err := s.db.QueryRowContext(ctx, dateRangeQuery).Scan(&oldestStr, &newestStr); err != nil {
		return nil, fmt.Errorf("failed to get date range: %w", err)
	}

	if oldestStr.Valid {
		stats.OldestModifiedSeen, _ = time.Parse(time.RFC3339, oldestStr.String)
	}

	if newestStr.Valid {
		stats.LastModifiedSeen, _ = time.Parse(time.RFC3339, newestStr.String)
	}

	return stats, nil
}

func (s *Store) countBy(ctx context.Context, column string, set func(string, int)) error {
	rows, err := s.db.QueryContext(ctx, "SELECT "+column+", COUNT(*) FROM resources GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("failed to query resources by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			count int
		)

		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s stats: %w", column, err)
		}

		set(key, count)
	}

	return rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
