package results

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoResultsTable is returned by ReadSQLite for a database that holds no
// results table.
var ErrNoResultsTable = errors.New("no results table")

const resultsSchema = `
CREATE TABLE IF NOT EXISTS results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	queue_type  TEXT    NOT NULL,
	threads     INTEGER NOT NULL,
	batch_enque TEXT    NOT NULL,
	batch_deque TEXT    NOT NULL,
	strategy    TEXT    NOT NULL,
	avg_time    REAL    NOT NULL,
	avg_timeout REAL    NOT NULL,
	total_ops   INTEGER NOT NULL,
	succ_enq    INTEGER NOT NULL,
	succ_deq    INTEGER NOT NULL,
	total_enq   INTEGER NOT NULL,
	total_deq   INTEGER NOT NULL
)`

// SQLiteSink mirrors the results table into a SQLite database. Each Append
// is its own autocommit transaction.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. With truncate set any
// rows of a previous run are removed.
func OpenSQLite(path string, truncate bool) (*SQLiteSink, error) {
	db, err := openResultsDB(path)
	if err != nil {
		return nil, err
	}
	if truncate {
		if _, err := db.Exec("DELETE FROM results"); err != nil {
			db.Close()
			return nil, fmt.Errorf("truncate results in %s: %w", path, err)
		}
	}
	slog.Debug("sqlite results opened", "path", path)
	return &SQLiteSink{db: db}, nil
}

func openResultsDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(resultsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create results schema: %w", err)
	}
	return db, nil
}

// Append inserts one record.
func (s *SQLiteSink) Append(r ResultRecord) error {
	_, err := s.db.Exec(`INSERT INTO results
		(queue_type, threads, batch_enque, batch_deque, strategy,
		 avg_time, avg_timeout, total_ops, succ_enq, succ_deq, total_enq, total_deq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.QueueType, r.Threads, FormatInts(r.BatchEnque), FormatInts(r.BatchDeque), r.Strategy,
		r.AvgTime, r.AvgTimeout, r.TotalOps, r.SuccEnq, r.SuccDeq, r.TotalEnq, r.TotalDeq,
	)
	if err != nil {
		return fmt.Errorf("insert result %s/%d/%s: %w", r.QueueType, r.Threads, r.Strategy, err)
	}
	return nil
}

// Close releases the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// ReadSQLite loads every record of the database at path in insertion order.
// The database is opened read-only and must already exist.
func ReadSQLite(path string) ([]ResultRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'results'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read sqlite %s: %w", path, ErrNoResultsTable)
	}
	if err != nil {
		return nil, fmt.Errorf("read sqlite %s: %w", path, err)
	}

	rows, err := db.Query(`SELECT queue_type, threads, batch_enque, batch_deque, strategy,
		avg_time, avg_timeout, total_ops, succ_enq, succ_deq, total_enq, total_deq
		FROM results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		var (
			r        ResultRecord
			enq, deq string
		)
		if err := rows.Scan(&r.QueueType, &r.Threads, &enq, &deq, &r.Strategy,
			&r.AvgTime, &r.AvgTimeout, &r.TotalOps, &r.SuccEnq, &r.SuccDeq, &r.TotalEnq, &r.TotalDeq); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if r.BatchEnque, err = ParseInts(enq); err != nil {
			return nil, err
		}
		if r.BatchDeque, err = ParseInts(deq); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
