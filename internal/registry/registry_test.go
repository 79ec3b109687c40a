package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestRecordIssuance(t *testing.T) {
	store, mock := newMockStore(t)

	issuedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO issued_passes").
		WithArgs("ABC123", "deadbeef", 4096, issuedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RecordIssuance(context.Background(), IssuanceRecord{
		SerialNumber: "ABC123",
		ManifestSHA1: "deadbeef",
		ArchiveBytes: 4096,
		IssuedAt:     issuedAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordIssuanceDefaultsIssuedAt(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO issued_passes").
		WithArgs("XYZ", "cafe", 128, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RecordIssuance(context.Background(), IssuanceRecord{
		SerialNumber: "XYZ",
		ManifestSHA1: "cafe",
		ArchiveBytes: 128,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordIssuanceSurfacesDBError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO issued_passes").
		WillReturnError(fmt.Errorf("connection reset"))

	err := store.RecordIssuance(context.Background(), IssuanceRecord{
		SerialNumber: "ABC123", ManifestSHA1: "aa", ArchiveBytes: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ABC123")
}

func TestCountForSerial(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("ABC123").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := store.CountForSerial(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS issued_passes").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
