// Package sqlite stores harvested device counters in SQLite.
//
// Every harvest is written in one transaction: a harvests row holding
// the miss counter and one record_hits row per offloaded record. The
// daemon is the only writer. Readers such as the metrics command open
// the same file; WAL mode lets them read while the daemon writes.
//
// All queries use prepared statements compiled when the store opens.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/reconciler"
)

//go:embed schema.sql
var schemaSQL string

// Store persists counters.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	stmtInsertHarvest *sql.Stmt
	stmtInsertHits    *sql.Stmt
	stmtListHarvests  *sql.Stmt
	stmtListHits      *sql.Stmt
	stmtTotals        *sql.Stmt
	stmtRecordTotals  *sql.Stmt
	stmtPrune         *sql.Stmt
}

// New opens (creating if needed) the store at dbPath.
func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open(sqliteDriver, connString(dbPath, filePragmas))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s, err := open(ctx, db, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("opened database", "path", dbPath)
	return s, nil
}

// NewInMemory creates an in-memory store for testing.
func NewInMemory(ctx context.Context, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", ":memory:")

	db, err := sql.Open(sqliteDriver, connString(":memory:", memoryPragmas))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	s, err := open(ctx, db, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened in-memory database")
	return s, nil
}

func open(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Store, error) {
	s := &Store{db: db, logger: logger}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := s.prepareStatements(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

// Close closes all prepared statements and the database.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{
		s.stmtInsertHarvest,
		s.stmtInsertHits,
		s.stmtListHarvests,
		s.stmtListHits,
		s.stmtTotals,
		s.stmtRecordTotals,
		s.stmtPrune,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

func (s *Store) prepareStatements(ctx context.Context) error {
	var err error

	const sqlInsertHarvest = "INSERT INTO harvests (harvested_at, misses) VALUES (?, ?)"
	if s.stmtInsertHarvest, err = s.db.PrepareContext(ctx, sqlInsertHarvest); err != nil {
		return fmt.Errorf("prepare InsertHarvest: %w", err)
	}

	const sqlInsertHits = `
		INSERT INTO record_hits (harvest_id, interface, device_key, record_key, hits)
		VALUES (?, ?, ?, ?, ?)`
	if s.stmtInsertHits, err = s.db.PrepareContext(ctx, sqlInsertHits); err != nil {
		return fmt.Errorf("prepare InsertHits: %w", err)
	}

	const sqlListHarvests = `
		SELECT id, harvested_at, misses FROM harvests
		ORDER BY harvested_at DESC, id DESC
		LIMIT ?`
	if s.stmtListHarvests, err = s.db.PrepareContext(ctx, sqlListHarvests); err != nil {
		return fmt.Errorf("prepare ListHarvests: %w", err)
	}

	const sqlListHits = `
		SELECT interface, device_key, record_key, hits FROM record_hits
		WHERE harvest_id = ?
		ORDER BY interface, device_key`
	if s.stmtListHits, err = s.db.PrepareContext(ctx, sqlListHits); err != nil {
		return fmt.Errorf("prepare ListHits: %w", err)
	}

	const sqlTotals = `
		SELECT COUNT(*), COALESCE(SUM(misses), 0), COALESCE(MAX(harvested_at), 0)
		FROM harvests`
	if s.stmtTotals, err = s.db.PrepareContext(ctx, sqlTotals); err != nil {
		return fmt.Errorf("prepare Totals: %w", err)
	}

	const sqlRecordTotals = `
		SELECT interface, record_key, SUM(hits) FROM record_hits
		GROUP BY interface, record_key
		ORDER BY interface, record_key`
	if s.stmtRecordTotals, err = s.db.PrepareContext(ctx, sqlRecordTotals); err != nil {
		return fmt.Errorf("prepare RecordTotals: %w", err)
	}

	const sqlPrune = "DELETE FROM harvests WHERE harvested_at < ?"
	if s.stmtPrune, err = s.db.PrepareContext(ctx, sqlPrune); err != nil {
		return fmt.Errorf("prepare Prune: %w", err)
	}

	return nil
}

// RecordCounters stores one harvest atomically.
func (s *Store) RecordCounters(ctx context.Context, at time.Time, c reconciler.Counters) error {
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.StmtContext(ctx, s.stmtInsertHarvest).ExecContext(ctx, at.UnixNano(), c.Misses)
	if err != nil {
		return fmt.Errorf("insert harvest: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("harvest id: %w", err)
	}

	insertHits := tx.StmtContext(ctx, s.stmtInsertHits)
	for _, h := range c.Hits {
		if _, err := insertHits.ExecContext(ctx, id, h.Interface, h.DeviceKey, h.RecordKey, h.Hits); err != nil {
			return fmt.Errorf("insert hits for device key %d: %w", h.DeviceKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("recorded counters",
		"harvest_id", id,
		"misses", c.Misses,
		"records", len(c.Hits),
		"duration_ms", fmt.Sprintf("%.3f", float64(time.Since(start).Microseconds())/1000))
	return nil
}

// Harvest is one stored harvest.
type Harvest struct {
	ID     int64
	At     time.Time
	Misses int
	Hits   []reconciler.HitCount
}

// Harvests returns up to limit harvests, newest first.
func (s *Store) Harvests(ctx context.Context, limit int) ([]Harvest, error) {
	rows, err := s.stmtListHarvests.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list harvests: %w", err)
	}
	var out []Harvest
	for rows.Next() {
		var h Harvest
		var at int64
		if err := rows.Scan(&h.ID, &at, &h.Misses); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan harvest: %w", err)
		}
		h.At = time.Unix(0, at)
		out = append(out, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list harvests: %w", err)
	}

	for i := range out {
		hits, err := s.hitsFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Hits = hits
	}
	return out, nil
}

func (s *Store) hitsFor(ctx context.Context, id int64) ([]reconciler.HitCount, error) {
	rows, err := s.stmtListHits.QueryContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list hits for harvest %d: %w", id, err)
	}
	defer rows.Close()

	var out []reconciler.HitCount
	for rows.Next() {
		var h reconciler.HitCount
		var deviceKey int64
		var recordKey int64
		if err := rows.Scan(&h.Interface, &deviceKey, &recordKey, &h.Hits); err != nil {
			return nil, fmt.Errorf("scan hits: %w", err)
		}
		h.DeviceKey = mdnsoffload.DeviceKey(deviceKey)
		h.RecordKey = mdnsoffload.RecordKey(recordKey)
		out = append(out, h)
	}
	return out, rows.Err()
}

// RecordTotal is the sum of hits for one record across all harvests.
type RecordTotal struct {
	Interface string
	RecordKey mdnsoffload.RecordKey
	Hits      int64
}

// Totals summarises every stored harvest.
type Totals struct {
	Harvests int
	Misses   int64
	// Last is the time of the newest harvest, zero when there is none.
	Last    time.Time
	Records []RecordTotal
}

// Totals returns aggregate counters.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	var last int64
	if err := s.stmtTotals.QueryRowContext(ctx).Scan(&t.Harvests, &t.Misses, &last); err != nil {
		return Totals{}, fmt.Errorf("totals: %w", err)
	}
	if last != 0 {
		t.Last = time.Unix(0, last)
	}

	rows, err := s.stmtRecordTotals.QueryContext(ctx)
	if err != nil {
		return Totals{}, fmt.Errorf("record totals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r RecordTotal
		var recordKey int64
		if err := rows.Scan(&r.Interface, &recordKey, &r.Hits); err != nil {
			return Totals{}, fmt.Errorf("scan record totals: %w", err)
		}
		r.RecordKey = mdnsoffload.RecordKey(recordKey)
		t.Records = append(t.Records, r)
	}
	return t, rows.Err()
}

// Prune deletes harvests taken before cutoff and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.stmtPrune.ExecContext(ctx, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned harvests", "count", n, "before", cutoff)
	}
	return n, nil
}
