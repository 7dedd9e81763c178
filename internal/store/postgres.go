package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/MellowMango/apartment-search-sub005/internal/model"
)

// Pool abstracts the pgx connection pool so tests can substitute pgxmock.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	config     JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	stages     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entities (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	entity_id  TEXT NOT NULL,
	type       TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	data       JSONB NOT NULL,
	PRIMARY KEY (run_id, entity_id)
);

CREATE TABLE IF NOT EXISTS associations (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	from_id TEXT NOT NULL,
	to_id   TEXT NOT NULL,
	type    TEXT NOT NULL,
	data    JSONB NOT NULL,
	PRIMARY KEY (run_id, from_id, to_id, type)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_associations_from ON associations(from_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.PipelineRun) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run config")
	}
	stagesJSON, err := json.Marshal(run.Stages)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run stages")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, config, status, stages, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   status = excluded.status,
		   stages = excluded.stages,
		   error = excluded.error,
		   updated_at = excluded.updated_at`,
		run.ID, configJSON, string(run.Status), stagesJSON,
		run.Error, run.CreatedAt.UTC(), run.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: save run %s", run.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, config, status, stages, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, config, status, stages, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter.UTC())
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) SaveGraph(ctx context.Context, runID string, graph *model.Graph) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin graph tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, e := range graph.Entities {
		data, err := json.Marshal(e)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal entity %s", e.EntityID)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO entities (run_id, entity_id, type, confidence, data)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (run_id, entity_id) DO UPDATE SET
			   confidence = excluded.confidence,
			   data = excluded.data`,
			runID, e.EntityID, string(e.Type), e.Confidence, data,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert entity %s", e.EntityID)
		}
	}

	for _, a := range graph.Associations {
		data, err := json.Marshal(a)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal association")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO associations (run_id, from_id, to_id, type, data)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (run_id, from_id, to_id, type) DO UPDATE SET
			   data = excluded.data`,
			runID, a.FromID, a.ToID, string(a.Type), data,
		); err != nil {
			return eris.Wrap(err, "postgres: insert association")
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit graph")
}

func (s *PostgresStore) GetGraph(ctx context.Context, runID string) (*model.Graph, error) {
	graph := &model.Graph{}

	rows, err := s.pool.Query(ctx,
		`SELECT data FROM entities WHERE run_id = $1 ORDER BY entity_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query entities")
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		var e model.Entity
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal entity")
		}
		graph.Entities = append(graph.Entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate entities")
	}

	assocRows, err := s.pool.Query(ctx,
		`SELECT data FROM associations WHERE run_id = $1 ORDER BY from_id, to_id, type`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query associations")
	}
	defer assocRows.Close()

	for assocRows.Next() {
		var data []byte
		if err := assocRows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan association")
		}
		var a model.Association
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal association")
		}
		graph.Associations = append(graph.Associations, a)
	}
	return graph, eris.Wrap(assocRows.Err(), "postgres: iterate associations")
}

func scanPgRun(row pgx.Row) (*model.PipelineRun, error) {
	var (
		run        model.PipelineRun
		configJSON []byte
		stagesJSON []byte
		errMsg     *string
		status     string
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(&run.ID, &configJSON, &status, &stagesJSON, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if err := json.Unmarshal(configJSON, &run.Config); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run config")
	}
	if len(stagesJSON) > 0 {
		if err := json.Unmarshal(stagesJSON, &run.Stages); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run stages")
		}
	}
	run.Status = model.RunStatus(status)
	if errMsg != nil {
		run.Error = *errMsg
	}
	run.CreatedAt = createdAt
	run.UpdatedAt = updatedAt
	return &run, nil
}
