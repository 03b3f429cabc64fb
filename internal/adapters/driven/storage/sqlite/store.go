package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/stackqa/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "index.db"

// Store is a SQLite database holding index snapshots for all partitions.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.stackqa/index.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".stackqa", "index")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// IndexStore returns the snapshot store for one language partition.
func (s *Store) IndexStore(partition string) driven.IndexStore {
	return &indexStore{store: s, partition: partition}
}

// Partitions lists the partitions that have a saved snapshot.
func (s *Store) Partitions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT partition FROM index_meta ORDER BY partition")
	if err != nil {
		return nil, fmt.Errorf("querying partitions: %w", err)
	}
	defer rows.Close()

	var partitions []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning partition: %w", err)
		}
		partitions = append(partitions, p)
	}
	return partitions, rows.Err()
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_index.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Index Store ====================

// indexStore implements driven.IndexStore for one partition.
type indexStore struct {
	store     *Store
	partition string
}

var _ driven.IndexStore = (*indexStore)(nil)

// Save replaces the partition's snapshot in one transaction.
func (s *indexStore) Save(ctx context.Context, snapshot *domain.IndexSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM index_meta WHERE partition = ?", s.partition); err != nil {
		return fmt.Errorf("deleting previous snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO index_meta (partition, dimensions, model, entries, built_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.partition, snapshot.Dimensions, snapshot.Model, snapshot.Len(), snapshot.BuiltAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting snapshot metadata: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_entries (partition, position, id, question, answer, source_link, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing entry insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range snapshot.Records {
		_, err := stmt.ExecContext(ctx, s.partition, i, r.ID, r.Question, r.Answer, r.SourceLink,
			float32SliceToBytes(snapshot.Vectors[i]))
		if err != nil {
			return fmt.Errorf("inserting entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Load reads the partition's snapshot.
func (s *indexStore) Load(ctx context.Context) (*domain.IndexSnapshot, error) {
	snapshot := &domain.IndexSnapshot{}
	var entries int

	row := s.store.db.QueryRowContext(ctx, `
		SELECT dimensions, model, entries, built_at FROM index_meta WHERE partition = ?
	`, s.partition)
	err := row.Scan(&snapshot.Dimensions, &snapshot.Model, &entries, &snapshot.BuiltAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrIndexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot metadata: %w", err)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, question, answer, source_link, vector
		FROM index_entries WHERE partition = ? ORDER BY position
	`, s.partition)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	snapshot.Records = make([]domain.QARecord, 0, entries)
	snapshot.Vectors = make([][]float32, 0, entries)
	for rows.Next() {
		var r domain.QARecord
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.SourceLink, &blob); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		if len(blob)%4 != 0 {
			return nil, fmt.Errorf("%w: entry %q has a truncated vector", domain.ErrIndexCorrupt, r.ID)
		}
		snapshot.Records = append(snapshot.Records, r)
		snapshot.Vectors = append(snapshot.Vectors, bytesToFloat32Slice(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}

	if len(snapshot.Records) != entries {
		return nil, fmt.Errorf("%w: metadata lists %d entries, found %d",
			domain.ErrIndexCorrupt, entries, len(snapshot.Records))
	}
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	snapshot.BuiltAt = snapshot.BuiltAt.UTC()
	return snapshot, nil
}

// Exists reports whether the partition has a saved snapshot.
func (s *indexStore) Exists(ctx context.Context) (bool, error) {
	var n int
	row := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM index_meta WHERE partition = ?", s.partition)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("checking snapshot: %w", err)
	}
	return n > 0, nil
}

// Location returns the database path and partition.
func (s *indexStore) Location() string {
	return s.store.path + "#" + s.partition
}

// Close is a no-op; the database is closed through Store.Close.
func (s *indexStore) Close() error {
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
