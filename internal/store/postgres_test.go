package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MellowMango/apartment-search-sub005/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresMigrate(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveRun(t *testing.T) {
	st, mock := newMockStore(t)

	run := sampleRun("run-1", model.RunStatusCompleted)
	configJSON, _ := json.Marshal(run.Config)
	stagesJSON, _ := json.Marshal(run.Stages)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(run.ID, configJSON, string(run.Status), stagesJSON,
			run.Error, run.CreatedAt.UTC(), run.UpdatedAt.UTC()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.SaveRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	configJSON := []byte(`{"seed_urls":["https://cs.state.edu/faculty"]}`)
	stagesJSON := []byte(`[{"name":"scraping","status":"completed","duration_ms":10}]`)

	mock.ExpectQuery("SELECT id, config, status, stages, error, created_at, updated_at FROM runs").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "config", "status", "stages", "error", "created_at", "updated_at"}).
			AddRow("run-1", configJSON, "completed", stagesJSON, (*string)(nil), now, now))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, []string{"https://cs.state.edu/faculty"}, run.Config.SeedURLs)
	require.Len(t, run.Stages, 1)
	assert.Equal(t, "scraping", run.Stages[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRuns(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now().UTC()
	configJSON := []byte(`{"seed_urls":["https://x.edu/f"]}`)

	mock.ExpectQuery("SELECT id, config, status, stages, error, created_at, updated_at FROM runs").
		WithArgs("failed", 10).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "config", "status", "stages", "error", "created_at", "updated_at"}).
			AddRow("run-2", configJSON, "failed", []byte(`[]`), strPtr("boom"), now, now))

	runs, err := st.ListRuns(context.Background(), RunFilter{
		Status: model.RunStatusFailed,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "boom", runs[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveGraph(t *testing.T) {
	st, mock := newMockStore(t)

	graph := &model.Graph{
		Entities: []model.Entity{
			{EntityID: "aaa111", Type: model.EntityFaculty, Name: "Jane Smith", Confidence: 0.84},
		},
		Associations: []model.Association{
			{FromID: "aaa111", ToID: "bbb222", Type: model.AssocFacultyDepartment, Confidence: 0.84},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO entities").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO associations").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback() // deferred rollback after commit is a no-op

	require.NoError(t, st.SaveGraph(context.Background(), "run-1", graph))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetGraph(t *testing.T) {
	st, mock := newMockStore(t)

	entityJSON, _ := json.Marshal(model.Entity{
		EntityID: "aaa111", Type: model.EntityFaculty, Name: "Jane Smith", Confidence: 0.84,
	})
	assocJSON, _ := json.Marshal(model.Association{
		FromID: "aaa111", ToID: "bbb222", Type: model.AssocFacultyDepartment, Confidence: 0.84,
	})

	mock.ExpectQuery("SELECT data FROM entities").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(entityJSON))
	mock.ExpectQuery("SELECT data FROM associations").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(assocJSON))

	graph, err := st.GetGraph(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, graph.Entities, 1)
	require.Len(t, graph.Associations, 1)
	assert.Equal(t, "Jane Smith", graph.Entities[0].Name)
	assert.Equal(t, model.AssocFacultyDepartment, graph.Associations[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
