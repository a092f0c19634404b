package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
)

// fakeDB responde a los UPDATE según el resultado configurado por ID de documento.
type fakeDB struct {
	Querier
	outcome      map[string]string // "" = ok, "stale", "dup", "down"
	begins       int
	commits      int
	rollbacks    int
	savepoints   int
	spRollbacks  int
	batchesSent  int
	rowStatement int
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	db.begins++
	return &fakeTx{db: db}, nil
}

func (db *fakeDB) exec(args []any) (pgconn.CommandTag, error) {
	id, _ := args[7].(string)
	switch db.outcome[id] {
	case "stale":
		return pgconn.NewCommandTag("UPDATE 0"), nil
	case "dup":
		return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	case "down":
		return pgconn.CommandTag{}, errors.New("conn closed")
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

type fakeTx struct {
	pgx.Tx
	db     *fakeDB
	nested bool
	done   bool
}

func (tx *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	tx.db.savepoints++
	return &fakeTx{db: tx.db, nested: true}, nil
}

func (tx *fakeTx) Commit(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	if !tx.nested {
		tx.db.commits++
	}
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	if tx.nested {
		tx.db.spRollbacks++
	} else {
		tx.db.rollbacks++
	}
	return nil
}

func (tx *fakeTx) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	tx.db.rowStatement++
	return tx.db.exec(args)
}

func (tx *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	tx.db.batchesSent++
	return &fakeResults{db: tx.db, queue: b.QueuedQueries}
}

type fakeResults struct {
	pgx.BatchResults
	db    *fakeDB
	queue []*pgx.QueuedQuery
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	q := r.queue[0]
	r.queue = r.queue[1:]
	return r.db.exec(q.Arguments)
}

func (r *fakeResults) Close() error { return nil }

func docsAt(ids ...string) []*entity.Document {
	out := make([]*entity.Document, len(ids))
	for i, id := range ids {
		out[i] = &entity.Document{ID: id, Status: entity.DocumentStatusSRIReceived, Version: 1}
	}
	return out
}

func newFakeRepo(outcome map[string]string) (*DocumentRepo, *fakeDB) {
	db := &fakeDB{outcome: outcome}
	repo := NewDocumentRepository(db)
	repo.now = func() time.Time { return time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC) }
	return repo, db
}

func TestSaveSRIState_LoteConVersionObsoleta(t *testing.T) {
	repo, db := newFakeRepo(map[string]string{"b": "stale"})
	docs := docsAt("a", "b", "c")

	stale, err := repo.SaveSRIState(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, stale)
	assert.Equal(t, []int{2, 1, 2}, []int{docs[0].Version, docs[1].Version, docs[2].Version})
	assert.Equal(t, 1, db.batchesSent)
	assert.Equal(t, 1, db.commits)
	assert.Zero(t, db.savepoints, "sin errores de fila no se repite fila por fila")
}

func TestSaveSRIState_FilaRechazadaNoDescartaLasDemas(t *testing.T) {
	repo, db := newFakeRepo(map[string]string{"b": "dup"})
	docs := docsAt("a", "b", "c")

	stale, err := repo.SaveSRIState(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, stale)
	assert.Equal(t, 2, docs[0].Version)
	assert.Equal(t, 1, docs[1].Version)
	assert.Equal(t, 2, docs[2].Version)

	assert.Equal(t, 2, db.begins, "lote revertido y segunda transacción")
	assert.Equal(t, 1, db.rollbacks)
	assert.Equal(t, 1, db.commits)
	assert.Equal(t, 3, db.savepoints)
	assert.Equal(t, 1, db.spRollbacks)
	assert.Equal(t, 3, db.rowStatement)
}

func TestSaveSRIState_ErrorDeConexionAbortaTodo(t *testing.T) {
	repo, db := newFakeRepo(map[string]string{"b": "down"})
	docs := docsAt("a", "b")

	_, err := repo.SaveSRIState(context.Background(), docs)
	require.Error(t, err)
	assert.Equal(t, 1, docs[0].Version, "nada se confirma")
	assert.Zero(t, db.commits)
	assert.Zero(t, db.savepoints)
}

func TestIsInvalidTextRepresentation(t *testing.T) {
	wrapped := errors.Join(errors.New("scany: query one result row"), &pgconn.PgError{Code: "22P02"})
	assert.True(t, isInvalidTextRepresentation(wrapped))
	assert.False(t, isInvalidTextRepresentation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isInvalidTextRepresentation(pgx.ErrNoRows))
}
