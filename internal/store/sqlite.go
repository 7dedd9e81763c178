package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/MellowMango/apartment-search-sub005/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
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
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	config     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	stages     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS entities (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	entity_id  TEXT NOT NULL,
	type       TEXT NOT NULL,
	confidence REAL NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (run_id, entity_id)
);

CREATE TABLE IF NOT EXISTS associations (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	from_id TEXT NOT NULL,
	to_id   TEXT NOT NULL,
	type    TEXT NOT NULL,
	data    TEXT NOT NULL,
	PRIMARY KEY (run_id, from_id, to_id, type)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_associations_from ON associations(from_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.PipelineRun) error {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run config")
	}
	stagesJSON, err := json.Marshal(run.Stages)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run stages")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, config, status, stages, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   stages = excluded.stages,
		   error = excluded.error,
		   updated_at = excluded.updated_at`,
		run.ID, string(configJSON), string(run.Status), string(stagesJSON),
		run.Error, run.CreatedAt.UTC(), run.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save run %s", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, config, status, stages, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, config, status, stages, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) SaveGraph(ctx context.Context, runID string, graph *model.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin graph tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, e := range graph.Entities {
		data, err := json.Marshal(e)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal entity %s", e.EntityID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entities (run_id, entity_id, type, confidence, data)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(run_id, entity_id) DO UPDATE SET
			   confidence = excluded.confidence,
			   data = excluded.data`,
			runID, e.EntityID, string(e.Type), e.Confidence, string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert entity %s", e.EntityID)
		}
	}

	for _, a := range graph.Associations {
		data, err := json.Marshal(a)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal association")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO associations (run_id, from_id, to_id, type, data)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(run_id, from_id, to_id, type) DO UPDATE SET
			   data = excluded.data`,
			runID, a.FromID, a.ToID, string(a.Type), string(data),
		); err != nil {
			return eris.Wrap(err, "sqlite: insert association")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit graph")
}

func (s *SQLiteStore) GetGraph(ctx context.Context, runID string) (*model.Graph, error) {
	graph := &model.Graph{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM entities WHERE run_id = ? ORDER BY entity_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query entities")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		var e model.Entity
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal entity")
		}
		graph.Entities = append(graph.Entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate entities")
	}

	assocRows, err := s.db.QueryContext(ctx,
		`SELECT data FROM associations WHERE run_id = ? ORDER BY from_id, to_id, type`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query associations")
	}
	defer assocRows.Close() //nolint:errcheck

	for assocRows.Next() {
		var data string
		if err := assocRows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan association")
		}
		var a model.Association
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal association")
		}
		graph.Associations = append(graph.Associations, a)
	}
	return graph, eris.Wrap(assocRows.Err(), "sqlite: iterate associations")
}

// scanner covers sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.PipelineRun, error) {
	var (
		run        model.PipelineRun
		configJSON string
		stagesJSON sql.NullString
		errMsg     sql.NullString
		status     string
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := row.Scan(&run.ID, &configJSON, &status, &stagesJSON, &errMsg, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrap(err, "sqlite: run not found")
		}
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(configJSON), &run.Config); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run config")
	}
	if stagesJSON.Valid && stagesJSON.String != "" {
		if err := json.Unmarshal([]byte(stagesJSON.String), &run.Stages); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run stages")
		}
	}
	run.Status = model.RunStatus(status)
	run.Error = errMsg.String
	run.CreatedAt = createdAt
	run.UpdatedAt = updatedAt
	return &run, nil
}
