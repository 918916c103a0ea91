// Package index implements an append-only vector index with brute-force
// cosine similarity search. A durable collection writes through to a sqlite
// file and is reloaded on restart; an ephemeral collection lives in memory
// for the process lifetime.
package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // SQLite driver

	"recall/internal/index/migrations"
)

var (
	// ErrNotReady signals a search against an index that has never been
	// populated. Callers must distinguish it from zero results.
	ErrNotReady = errors.New("index not ready: no entries added or loaded")

	// ErrDimensionMismatch signals mixed embedding dimensions within one
	// collection, a configuration inconsistency that aborts ingestion.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Entry is one indexed item: a vector, its payload text and metadata used
// for display and filtering (source, page, date, type).
type Entry struct {
	Vector  []float32
	Payload string
	Meta    map[string]string
}

// Result is one search hit, ordered by descending similarity.
type Result struct {
	Payload string
	Meta    map[string]string
	Score   float64
}

// Index is safe for concurrent use: readers may run concurrently with each
// other but not with a write. Entries are never mutated or removed, only
// appended (or dropped wholesale on rebuild).
type Index struct {
	mu      sync.RWMutex
	name    string
	mode    StorageMode
	db      *sql.DB
	dim     int
	entries []Entry
	ready   bool
}

// Open creates a handle to the named collection. In durable mode the
// backing sqlite file is created under dataRoot and its schema migrated;
// entries are not loaded until Load is called.
func Open(name string, mode StorageMode, dataRoot string) (*Index, error) {
	ix := &Index{name: name, mode: mode}
	if mode == ModeEphemeral {
		return ix, nil
	}

	if err := os.MkdirAll(dataRoot, 0o750); err != nil {
		return nil, fmt.Errorf("creating data root: %w", err)
	}

	path := filepath.Join(dataRoot, name+".db")
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", name, err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating collection %s: %w", name, err)
	}

	ix.db = db
	return ix, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (ix *Index) Name() string      { return ix.name }
func (ix *Index) Mode() StorageMode { return ix.mode }

// Ready reports whether at least one Add succeeded or Load found persisted
// entries.
func (ix *Index) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.ready
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Load rehydrates the in-memory entries from the persisted collection and
// returns the number of entries found. Loading an ephemeral collection is a
// no-op. Calling Load twice yields identical state.
func (ix *Index) Load(ctx context.Context) (int, error) {
	if ix.db == nil {
		return 0, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	rows, err := ix.db.QueryContext(ctx, `
		SELECT vector, payload, metadata FROM entries ORDER BY seq
	`)
	if err != nil {
		return 0, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	dim := 0
	for rows.Next() {
		var blob []byte
		var payload, metaJSON string
		if err := rows.Scan(&blob, &payload, &metaJSON); err != nil {
			return 0, fmt.Errorf("scanning entry: %w", err)
		}

		vec := bytesToFloat32Slice(blob)
		if dim == 0 {
			dim = len(vec)
		} else if len(vec) != dim {
			return 0, fmt.Errorf("%w: persisted entry has %d, collection has %d", ErrDimensionMismatch, len(vec), dim)
		}

		meta := make(map[string]string)
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
				return 0, fmt.Errorf("unmarshalling entry metadata: %w", err)
			}
		}

		entries = append(entries, Entry{Vector: vec, Payload: payload, Meta: meta})
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating entries: %w", err)
	}

	ix.entries = entries
	ix.dim = dim
	if len(entries) > 0 {
		ix.ready = true
	}
	return len(entries), nil
}

// Add appends entries. It never deduplicates. All vectors must share one
// dimension with each other and with the existing collection; a mismatch
// rejects the whole batch.
func (ix *Index) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	dim := ix.dim
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(e.Vector), dim)
		}
	}

	if ix.db != nil {
		if err := ix.persist(ctx, entries); err != nil {
			return err
		}
	}

	ix.dim = dim
	ix.entries = append(ix.entries, entries...)
	ix.ready = true
	return nil
}

func (ix *Index) persist(ctx context.Context, entries []Entry) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (vector, payload, metadata) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		metaJSON, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("marshalling entry metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, float32SliceToBytes(e.Vector), e.Payload, string(metaJSON)); err != nil {
			return fmt.Errorf("persisting entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search returns up to k results ordered by descending cosine similarity.
// Ties are broken by insertion order, earlier entries first.
func (ix *Index) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	_ = ctx

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.ready {
		return nil, ErrNotReady
	}
	if len(vector) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", ErrDimensionMismatch, len(vector), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	scores := make([]float64, len(ix.entries))
	for i := range ix.entries {
		scores[i] = cosine(ix.entries[i].Vector, vector)
	}

	order := make([]int, len(ix.entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	results := make([]Result, 0, k)
	for _, i := range order[:k] {
		results = append(results, Result{
			Payload: ix.entries[i].Payload,
			Meta:    ix.entries[i].Meta,
			Score:   scores[i],
		})
	}
	return results, nil
}

// Drop discards all entries, in memory and persisted. Used for a full
// corpus rebuild.
func (ix *Index) Drop(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.db != nil {
		if _, err := ix.db.ExecContext(ctx, "DELETE FROM entries"); err != nil {
			return fmt.Errorf("dropping entries: %w", err)
		}
	}

	ix.entries = nil
	ix.dim = 0
	ix.ready = false
	return nil
}

func (ix *Index) Close() error {
	if ix.db != nil {
		return ix.db.Close()
	}
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
