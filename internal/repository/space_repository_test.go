package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smart-parking/internal/model"
)

func setupMockSpaceDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SpaceRepo) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewSpaceRepo(db)
}

func TestSeedIfEmpty_InsertsWhenEmpty(t *testing.T) {
	db, mock, repo := setupMockSpaceDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM spaces`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO spaces`).
		WithArgs(1, true, false, 2, false, false).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.SeedIfEmpty(context.Background(), model.DefaultSpaces)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedIfEmpty_NoopWhenAlreadySeeded(t *testing.T) {
	db, mock, repo := setupMockSpaceDB(t)
	defer db.Close()

	// Only the count query runs; a second seed never inserts.
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM spaces`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	err := repo.SeedIfEmpty(context.Background(), model.DefaultSpaces)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedIfEmpty_CountErrorPropagates(t *testing.T) {
	db, mock, repo := setupMockSpaceDB(t)
	defer db.Close()

	dbErr := errors.New("connection refused")
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM spaces`).WillReturnError(dbErr)

	err := repo.SeedIfEmpty(context.Background(), model.DefaultSpaces)

	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
}

func TestFindAll_ReturnsAllSpaces(t *testing.T) {
	db, mock, repo := setupMockSpaceDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, available, reserved FROM spaces ORDER BY id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "available", "reserved"}).
			AddRow(1, true, false).
			AddRow(2, false, false))

	spaces, err := repo.FindAll(context.Background())

	require.NoError(t, err)
	require.Len(t, spaces, 2)
	assert.Equal(t, model.Space{ID: 1, Available: true}, spaces[0])
	assert.Equal(t, model.Space{ID: 2, Available: false}, spaces[1])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindAll_QueryErrorPropagates(t *testing.T) {
	db, mock, repo := setupMockSpaceDB(t)
	defer db.Close()

	dbErr := errors.New("driver: bad connection")
	mock.ExpectQuery(`SELECT id, available, reserved`).WillReturnError(dbErr)

	spaces, err := repo.FindAll(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.Nil(t, spaces)
}

func TestSetAvailability_Modified(t *testing.T) {
	db, mock, repo := setupMockSpaceDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE spaces SET available = \? WHERE id = \?`).
		WithArgs(false, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	modified, err := repo.SetAvailability(context.Background(), 1, false)

	require.NoError(t, err)
	assert.True(t, modified)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Zero rows changed covers both a missing id and a value that already held
// the requested state.  The repository reports the two identically.
func TestSetAvailability_NotModified(t *testing.T) {
	db, mock, repo := setupMockSpaceDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE spaces SET available = \? WHERE id = \?`).
		WithArgs(false, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	modified, err := repo.SetAvailability(context.Background(), 99, false)

	require.NoError(t, err)
	assert.False(t, modified)
}

func TestSetAvailability_ConnectivityErrorDistinctFromNotModified(t *testing.T) {
	db, mock, repo := setupMockSpaceDB(t)
	defer db.Close()

	dbErr := errors.New("connection refused")
	mock.ExpectExec(`UPDATE spaces`).WithArgs(true, 1).WillReturnError(dbErr)

	modified, err := repo.SetAvailability(context.Background(), 1, true)

	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.False(t, modified)
}
