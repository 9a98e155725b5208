package telemetry

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/finsurf/finsurf/internal/db"
	"github.com/finsurf/finsurf/internal/usage"
)

// PostgresStore implements Store on a pgx pool. Runs are written with COPY.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to connString and verifies the connection.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	if connString == "" {
		return nil, eris.New("postgres: empty database url")
	}
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS token_events (
	id         BIGSERIAL PRIMARY KEY,
	run_id     TEXT             NOT NULL,
	ticker     TEXT             NOT NULL,
	agent      TEXT             NOT NULL,
	provider   TEXT             NOT NULL,
	model      TEXT             NOT NULL,
	input_tok  BIGINT           DEFAULT 0,
	output_tok BIGINT           DEFAULT 0,
	latency_ms DOUBLE PRECISION DEFAULT 0,
	cost_usd   DOUBLE PRECISION DEFAULT 0,
	ts         DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_token_events_ts ON token_events(ts);
CREATE INDEX IF NOT EXISTS idx_token_events_run_id ON token_events(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) WriteRun(ctx context.Context, runID, ticker string, records []usage.Record) error {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, eventRow(runID, ticker, r))
	}
	_, err := db.CopyFrom(ctx, s.pool, table, eventColumns, rows)
	return eris.Wrapf(err, "postgres: write run %s", runID)
}

func (s *PostgresStore) AgentStats(ctx context.Context, since time.Time) ([]AgentStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT agent,
		       COUNT(*),
		       COALESCE(AVG(input_tok), 0)::float8,
		       COALESCE(AVG(output_tok), 0)::float8,
		       COALESCE(SUM(cost_usd), 0)::float8,
		       COALESCE(AVG(latency_ms), 0)::float8
		FROM token_events
		WHERE ts >= $1
		GROUP BY agent
		ORDER BY SUM(cost_usd) DESC, agent`, sinceUnix(since))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query agent stats")
	}
	defer rows.Close()

	stats := []AgentStat{}
	for rows.Next() {
		var a AgentStat
		if err := rows.Scan(&a.Agent, &a.Calls, &a.AvgInput, &a.AvgOutput, &a.TotalCost, &a.AvgLatencyMs); err != nil {
			return nil, eris.Wrap(err, "postgres: scan agent stats")
		}
		stats = append(stats, a)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: iterate agent stats")
}

func (s *PostgresStore) TotalSince(ctx context.Context, window time.Duration) (*Total, error) {
	cutoff := sinceUnix(time.Now().Add(-window))

	var tokens int64
	var cost float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(input_tok + output_tok), 0)::bigint,
		       COALESCE(SUM(cost_usd), 0)::float8
		FROM token_events WHERE ts >= $1`, cutoff).Scan(&tokens, &cost)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query total")
	}
	return newTotal(window, tokens, cost), nil
}
