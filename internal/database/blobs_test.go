package database_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"neuroforge-backend/internal/database"
	"neuroforge-backend/internal/gallery"
)

func newMockStore(t *testing.T) (*database.BlobStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewBlobStore(db), mock
}

func TestBlobStore_LoadReturnsStoredData(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM gallery_blobs WHERE key = $1")).
		WithArgs("imageGallery").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(`[{"id":"img_1"}]`))

	data, err := store.Load(context.Background(), "imageGallery")
	require.NoError(t, err)

	assert.Equal(t, `[{"id":"img_1"}]`, string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobStore_LoadMissingKeyIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM gallery_blobs WHERE key = $1")).
		WithArgs("imageGallery:user-1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err := store.Load(context.Background(), "imageGallery:user-1")

	assert.ErrorIs(t, err, gallery.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobStore_LoadQueryErrorIsNotNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM gallery_blobs")).
		WillReturnError(errors.New("connection refused"))

	_, err := store.Load(context.Background(), "imageGallery")

	require.Error(t, err)
	assert.NotErrorIs(t, err, gallery.ErrNotFound)
	assert.Contains(t, err.Error(), "failed to load gallery blob")
}

func TestBlobStore_SaveUpserts(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gallery_blobs (key, data, updated_at) VALUES ($1, $2, NOW()) ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data")).
		WithArgs("imageGallery", `[]`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), "imageGallery", []byte(`[]`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobStore_SaveError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gallery_blobs")).WillReturnError(errors.New("read-only transaction"))

	err := store.Save(context.Background(), "imageGallery", []byte(`[]`))

	assert.ErrorContains(t, err, "failed to save gallery blob")
}

func TestBlobStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM gallery_blobs WHERE key = $1")).
		WithArgs("imageGallery").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "imageGallery"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
