package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productUpsert() UpsertConfig {
	return UpsertConfig{
		Table:        "catalog.products",
		Columns:      []string{"id", "name", "price"},
		ConflictKeys: []string{"id"},
	}
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, productUpsert(), nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	cfg := productUpsert()
	cfg.Columns = nil
	_, err := BulkUpsert(context.Background(), nil, cfg, [][]any{{"p1", "Plywood", 52.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	cfg := productUpsert()
	cfg.ConflictKeys = nil
	_, err := BulkUpsert(context.Background(), nil, cfg, [][]any{{"p1", "Plywood", 52.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_catalog_products" \(LIKE "catalog"."products"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_catalog_products"}, []string{"id", "name", "price"}).
		WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT \("id"\) DO UPDATE SET "name" = EXCLUDED."name", "price" = EXCLUDED."price"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"p1", "Plywood", 52.0}, {"p2", "Form Tie", 0.85}}
	n, err := BulkUpsert(context.Background(), mock, productUpsert(), rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_KeysOnlyDoesNothing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_tags"}, []string{"id"}).WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT \("id"\) DO NOTHING`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "tags",
		Columns:      []string{"id"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"t1"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_catalog_products"}, []string{"id", "name", "price"}).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, productUpsert(), [][]any{{"p1", "Plywood", 52.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for catalog.products")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, `"simple"`, identifier("simple").Sanitize())
	assert.Equal(t, `"catalog"."products"`, identifier("catalog.products").Sanitize())
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "name", "price"`, quoteAndJoin([]string{"id", "name", "price"}))
}
