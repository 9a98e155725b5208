package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/finsurf/finsurf/internal/usage"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the database at path in WAL mode.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, eris.New("sqlite: empty path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS token_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT    NOT NULL,
	ticker     TEXT    NOT NULL,
	agent      TEXT    NOT NULL,
	provider   TEXT    NOT NULL,
	model      TEXT    NOT NULL,
	input_tok  INTEGER DEFAULT 0,
	output_tok INTEGER DEFAULT 0,
	latency_ms REAL    DEFAULT 0,
	cost_usd   REAL    DEFAULT 0,
	ts         REAL    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_token_events_ts ON token_events(ts);
CREATE INDEX IF NOT EXISTS idx_token_events_run_id ON token_events(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var sqliteInsert = `INSERT INTO token_events (` + strings.Join(eventColumns, ", ") +
	`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) WriteRun(ctx context.Context, runID, ticker string, records []usage.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin write run")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsert)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, eventRow(runID, ticker, r)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert event for run %s", runID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit write run")
}

func (s *SQLiteStore) AgentStats(ctx context.Context, since time.Time) ([]AgentStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent,
		       COUNT(*),
		       COALESCE(AVG(input_tok), 0),
		       COALESCE(AVG(output_tok), 0),
		       COALESCE(SUM(cost_usd), 0),
		       COALESCE(AVG(latency_ms), 0)
		FROM token_events
		WHERE ts >= ?
		GROUP BY agent
		ORDER BY SUM(cost_usd) DESC, agent`, sinceUnix(since))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query agent stats")
	}
	defer rows.Close()

	stats := []AgentStat{}
	for rows.Next() {
		var a AgentStat
		if err := rows.Scan(&a.Agent, &a.Calls, &a.AvgInput, &a.AvgOutput, &a.TotalCost, &a.AvgLatencyMs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan agent stats")
		}
		stats = append(stats, a)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: iterate agent stats")
}

func (s *SQLiteStore) TotalSince(ctx context.Context, window time.Duration) (*Total, error) {
	cutoff := sinceUnix(time.Now().Add(-window))

	var tokens int64
	var cost float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(input_tok + output_tok), 0),
		       COALESCE(SUM(cost_usd), 0)
		FROM token_events WHERE ts >= ?`, cutoff).Scan(&tokens, &cost)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query total")
	}
	return newTotal(window, tokens, cost), nil
}
