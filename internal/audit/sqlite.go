package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink implements Sink using SQLite.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink creates a new SQLite-backed audit sink.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	sink := &SQLiteSink{db: db}
	if err := sink.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return sink, nil
}

// initSchema creates the ledger table and indexes.
func (s *SQLiteSink) initSchema() error {
	schema := `
	-- Append-only ledger of model call attempts
	CREATE TABLE IF NOT EXISTS call_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent TEXT NOT NULL,
		model TEXT NOT NULL,
		input TEXT NOT NULL,
		output TEXT,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cost REAL NOT NULL,
		latency_ms INTEGER NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_call_records_timestamp ON call_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_call_records_agent ON call_records(agent);

	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		quantity REAL NOT NULL,
		confidence REAL NOT NULL,
		reasoning TEXT,
		engine TEXT NOT NULL,
		strategy TEXT,
		status TEXT NOT NULL,
		tokens INTEGER NOT NULL,
		cost REAL NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol);
	CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record appends a call record. Records are never updated or deleted.
func (s *SQLiteSink) Record(ctx context.Context, rec CallRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_records
			(agent, model, input, output, input_tokens, output_tokens, cost, latency_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Agent, rec.Model, rec.Input, rec.Output,
		rec.InputTokens, rec.OutputTokens, rec.Cost,
		rec.Latency.Milliseconds(), rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording call: %w", err)
	}
	return nil
}

// DailyUsage sums the ledger over the given UTC day.
func (s *SQLiteSink) DailyUsage(ctx context.Context, day time.Time) (Usage, error) {
	start, end := dayBounds(day)

	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(input_tokens + output_tokens), 0),
		       COALESCE(SUM(cost), 0),
		       COUNT(*)
		FROM call_records
		WHERE timestamp >= ? AND timestamp < ?`,
		start, end,
	)

	var u Usage
	if err := row.Scan(&u.Tokens, &u.Cost, &u.Calls); err != nil {
		return Usage{}, fmt.Errorf("summing daily usage: %w", err)
	}
	return u, nil
}

// SaveDecision appends a decision entry.
func (s *SQLiteSink) SaveDecision(ctx context.Context, entry DecisionEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions
			(run_id, symbol, action, quantity, confidence, reasoning,
			 engine, strategy, status, tokens, cost, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.Symbol, entry.Action, entry.Quantity,
		entry.Confidence, entry.Reasoning, entry.Engine, entry.Strategy,
		entry.Status, entry.Tokens, entry.Cost, entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving decision: %w", err)
	}
	return nil
}

// RecentDecisions returns up to limit decisions, newest first. An empty
// symbol matches all symbols.
func (s *SQLiteSink) RecentDecisions(ctx context.Context, symbol string, limit int) ([]DecisionEntry, error) {
	query := `
		SELECT run_id, symbol, action, quantity, confidence, reasoning,
		       engine, strategy, status, tokens, cost, timestamp
		FROM decisions`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		if err := rows.Scan(&e.RunID, &e.Symbol, &e.Action, &e.Quantity,
			&e.Confidence, &e.Reasoning, &e.Engine, &e.Strategy,
			&e.Status, &e.Tokens, &e.Cost, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
