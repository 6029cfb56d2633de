package db

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresProvider, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS credits_kv")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	p, err := NewPostgresProviderFromDB(conn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return p, mock
}

func TestPostgresProvider_GetMissing(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectValueSQL)).
		WithArgs([]byte("k")).
		WillReturnRows(sqlmock.NewRows([]string{"v"}))

	v, err := p.Get([]byte("k"))
	require.NoError(t, err)
	assert.Nil(t, v)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProvider_Put(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).
		WithArgs([]byte("k"), []byte("v")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.Put([]byte("k"), []byte("v")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProvider_WriteIfCommits(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(advisoryLockSQL)).WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(advisoryLockSQL)).WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectValueSQL)).WithArgs([]byte("acct")).
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow([]byte("v1")))
	mock.ExpectQuery(regexp.QuoteMeta(selectValueSQL)).WithArgs([]byte("new")).
		WillReturnRows(sqlmock.NewRows([]string{"v"}))
	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).WithArgs([]byte("acct"), []byte("v2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).WithArgs([]byte("new"), []byte("n")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b := p.Batch()
	b.Put([]byte("acct"), []byte("v2"))
	b.Put([]byte("new"), []byte("n"))
	err := p.WriteIf(context.Background(), []Expectation{
		{Key: []byte("acct"), Value: []byte("v1")},
		{Key: []byte("new")},
	}, b)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProvider_WriteIfRollsBackOnMismatch(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(advisoryLockSQL)).WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectValueSQL)).WithArgs([]byte("acct")).
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow([]byte("changed")))
	mock.ExpectRollback()

	b := p.Batch()
	b.Put([]byte("acct"), []byte("v2"))
	err := p.WriteIf(context.Background(), []Expectation{{Key: []byte("acct"), Value: []byte("v1")}}, b)
	assert.ErrorIs(t, err, ErrConditionFailed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProvider_IterateReverse(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(rangeDescSQL)).
		WithArgs([]byte("p:"), []byte("p:3")).
		WillReturnRows(sqlmock.NewRows([]string{"k", "v"}).
			AddRow([]byte("p:2"), []byte("b")).
			AddRow([]byte("p:1"), []byte("a")))

	var keys []string
	err := p.IterateReverse([]byte("p:"), []byte("p:3"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p:2", "p:1"}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLockIDs_SortedUnique(t *testing.T) {
	ids := advisoryLockIDs([]Expectation{{Key: []byte("b")}, {Key: []byte("a")}, {Key: []byte("b")}})
	require.Len(t, ids, 2)
	assert.Less(t, ids[0], ids[1])
}
