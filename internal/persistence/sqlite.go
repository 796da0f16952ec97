// Package persistence stores completed runs in SQLite.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"makerfill/internal/core"
)

// Repository persists one row per run and one row per symbol result.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (or creates) the database at path and runs
// migrations.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repo, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			symbol_count INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS symbol_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			symbol TEXT NOT NULL,
			notional REAL NOT NULL,
			reduce_only INTEGER NOT NULL,
			price_at_start REAL,
			avg_entry REAL,
			matched_qty REAL,
			completed_at INTEGER,
			mids TEXT NOT NULL,
			trades TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbol_results_run ON symbol_results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_symbol_results_symbol ON symbol_results(symbol)`,
	}
	for _, migration := range migrations {
		if _, err := r.db.ExecContext(ctx, migration); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun writes a completed run and its per-symbol results in one
// transaction.
func (r *Repository) SaveRun(ctx context.Context, runID string, startedAt, finishedAt time.Time, summaries []core.SymbolSummary) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, symbol_count) VALUES (?, ?, ?, ?)`,
		runID, startedAt.UTC(), finishedAt.UTC(), len(summaries))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, s := range summaries {
		mids, err := json.Marshal(s.Mids)
		if err != nil {
			return fmt.Errorf("marshal mids for %s: %w", s.Position.Symbol, err)
		}
		trades, err := json.Marshal(s.Trades)
		if err != nil {
			return fmt.Errorf("marshal trades for %s: %w", s.Position.Symbol, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO symbol_results
			 (run_id, symbol, notional, reduce_only, price_at_start, avg_entry, matched_qty, completed_at, mids, trades)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, s.Position.Symbol, s.Position.Notional, boolToInt(s.Position.ReduceOnly),
			s.PriceAtStart, s.AvgEntry, s.MatchedQty, s.CompletedAt, string(mids), string(trades))
		if err != nil {
			return fmt.Errorf("insert result for %s: %w", s.Position.Symbol, err)
		}
	}
	return tx.Commit()
}

// RunResult is one persisted symbol result.
type RunResult struct {
	Symbol       string
	Notional     float64
	ReduceOnly   bool
	PriceAtStart *float64
	AvgEntry     *float64
	MatchedQty   *float64
	CompletedAt  *int64
}

// LoadRun reads the symbol results stored for one run.
func (r *Repository) LoadRun(ctx context.Context, runID string) ([]RunResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT symbol, notional, reduce_only, price_at_start, avg_entry, matched_qty, completed_at
		 FROM symbol_results WHERE run_id = ? ORDER BY symbol`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []RunResult
	for rows.Next() {
		var res RunResult
		var reduceOnly int
		if err := rows.Scan(&res.Symbol, &res.Notional, &reduceOnly,
			&res.PriceAtStart, &res.AvgEntry, &res.MatchedQty, &res.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		res.ReduceOnly = reduceOnly != 0
		results = append(results, res)
	}
	return results, rows.Err()
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
