package inspect

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/sqlite-facade/db"
	"github.com/viant/sqlite-facade/storage"
	"github.com/viant/sqlite-facade/value"
)

func TestInspector_Report_Mock(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqldb.Close()

	mock.ExpectQuery(regexp.QuoteMeta(sizeQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"page_size", "page_count", "size", "text"}).AddRow(4096, 3, 12288, "12 KiB"))
	mock.ExpectQuery(regexp.QuoteMeta(integrityQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"quick_check"}).AddRow("ok"))
	mock.ExpectQuery(regexp.QuoteMeta(tablesQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("t").AddRow(`we"ird`))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "t"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "we""ird"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1234567))

	r, err := New(sqldb).Report(context.Background(), "filename")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, &Report{
		Name: "filename", PageSize: 4096, PageCount: 3, Size: 12288, SizeText: "12 KiB", Integrity: "ok",
		Tables: []TableInfo{{Name: "t", Rows: 6}, {Name: `we"ird`, Rows: 1234567}},
	}, r)
	assert.True(t, r.OK())

	var buf bytes.Buffer
	r.Print(&buf)
	assert.Contains(t, buf.String(), "Database filename:")
	assert.Contains(t, buf.String(), "size: 12 KiB (3 pages of 4.0 KiB), integrity: ok")
	assert.Contains(t, buf.String(), "table we\"ird: 1,234,567 rows")
}

func TestInspector_Report_MockError(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqldb.Close()

	mock.ExpectQuery(regexp.QuoteMeta(sizeQuery)).WillReturnError(errors.New("disk gone"))
	_, err = New(sqldb).Report(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inspect x: size: disk gone")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase(t *testing.T) {
	dir, err := storage.NewDir(t.TempDir())
	require.NoError(t, err)

	conn, err := db.Open("filename", db.WithBackend(dir))
	require.NoError(t, err)
	require.NoError(t, conn.Exec("CREATE TABLE t(a, b); CREATE TABLE u(x)"))
	for i := 0; i < 5; i++ {
		require.NoError(t, conn.Exec("INSERT INTO t VALUES (?, ?)", i, i*2))
	}
	require.NoError(t, conn.Close())

	r, err := Database(context.Background(), dir, "filename")
	require.NoError(t, err)
	assert.True(t, r.OK(), r.Integrity)
	assert.Equal(t, []TableInfo{{Name: "t", Rows: 5}, {Name: "u", Rows: 0}}, r.Tables)
	assert.Positive(t, r.PageSize)
	assert.Equal(t, r.PageSize*r.PageCount, r.Size)
	assert.NotEmpty(t, r.SizeText)

	_, err = Database(context.Background(), dir, "missing")
	assert.Error(t, err)
}

func TestHumanizeBytes(t *testing.T) {
	v, err := humanizeBytes([]value.Value{value.IntegerValue(2048)})
	require.NoError(t, err)
	assert.Equal(t, "2.0 KiB", v.Text())

	v, err = humanizeBytes([]value.Value{value.NullValue()})
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = humanizeBytes([]value.Value{value.IntegerValue(-1)})
	assert.Error(t, err)
}
