package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/model"
	"github.com/iliyamo/smart-parking/internal/repository"
)

// recordingHub captures broadcasts so tests can assert on the full-state
// push that follows a successful reservation.
type recordingHub struct {
	published []interface{}
}

func (r *recordingHub) Publish(data interface{}) {
	r.published = append(r.published, data)
}

func setupParkingHandler(t *testing.T) (sqlmock.Sqlmock, *ParkingHandler, *recordingHub, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rh := &recordingHub{}
	h := NewParkingHandler(repository.NewSpaceRepo(db), rh, nil, nil, zap.NewNop())
	return mock, h, rh, db
}

func doRequest(h echo.HandlerFunc, method, target, idParam string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if idParam != "" {
		c.SetParamNames("id")
		c.SetParamValues(idParam)
	}
	_ = h(c)
	return rec
}

func expectFindAll(mock sqlmock.Sqlmock, spaces ...model.Space) {
	rows := sqlmock.NewRows([]string{"id", "available", "reserved"})
	for _, s := range spaces {
		rows.AddRow(s.ID, s.Available, s.Reserved)
	}
	mock.ExpectQuery(`SELECT id, available, reserved FROM spaces ORDER BY id`).
		WillReturnRows(rows)
}

func TestGetPlaces_ReturnsFullSpaceSet(t *testing.T) {
	mock, h, _, _ := setupParkingHandler(t)
	expectFindAll(mock,
		model.Space{ID: 1, Available: true},
		model.Space{ID: 2, Available: false},
	)

	rec := doRequest(h.GetPlaces, http.MethodGet, "/api/places", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Space
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []model.Space{
		{ID: 1, Available: true},
		{ID: 2, Available: false},
	}, got)
}

func TestGetPlaces_EmptyStoreReturnsEmptyArrayNotNull(t *testing.T) {
	mock, h, _, _ := setupParkingHandler(t)
	expectFindAll(mock)

	rec := doRequest(h.GetPlaces, http.MethodGet, "/api/places", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetPlaces_StoreErrorMapsTo500(t *testing.T) {
	mock, h, _, _ := setupParkingHandler(t)
	mock.ExpectQuery(`SELECT id, available, reserved`).
		WillReturnError(errors.New("connection refused"))

	rec := doRequest(h.GetPlaces, http.MethodGet, "/api/places", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error fetching parking data")
}

func TestReserveSpace_SuccessBroadcastsPostWriteState(t *testing.T) {
	mock, h, rh, _ := setupParkingHandler(t)
	mock.ExpectExec(`UPDATE spaces SET available = \? WHERE id = \?`).
		WithArgs(false, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectFindAll(mock,
		model.Space{ID: 1, Available: false},
		model.Space{ID: 2, Available: false},
	)

	rec := doRequest(h.ReserveSpace, http.MethodPost, "/api/reserve/1", "1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Place 1 reserved"}`, rec.Body.String())

	// the broadcast carries the full post-write record set, not a patch
	require.Len(t, rh.published, 1)
	assert.Equal(t, []model.Space{
		{ID: 1, Available: false},
		{ID: 2, Available: false},
	}, rh.published[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

// "Zero rows modified" answers 404 both for a nonexistent id and for a space
// that was already unavailable; the store conflates the two on purpose.
func TestReserveSpace_AlreadyTakenOrMissingAnswers404(t *testing.T) {
	mock, h, rh, _ := setupParkingHandler(t)
	mock.ExpectExec(`UPDATE spaces SET available = \? WHERE id = \?`).
		WithArgs(false, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec := doRequest(h.ReserveSpace, http.MethodPost, "/api/reserve/1", "1")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Place not found or already reserved"}`, rec.Body.String())
	assert.Empty(t, rh.published, "a failed reservation must not broadcast")
}

func TestReserveSpace_MalformedIDRejectedBeforeStore(t *testing.T) {
	_, h, rh, _ := setupParkingHandler(t)

	rec := doRequest(h.ReserveSpace, http.MethodPost, "/api/reserve/abc", "abc")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rh.published)
}

func TestReserveSpace_StoreErrorMapsTo500(t *testing.T) {
	mock, h, _, _ := setupParkingHandler(t)
	mock.ExpectExec(`UPDATE spaces`).
		WithArgs(false, 1).
		WillReturnError(errors.New("driver: bad connection"))

	rec := doRequest(h.ReserveSpace, http.MethodPost, "/api/reserve/1", "1")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}

func TestReserveSpace_ReadAfterWriteErrorMapsTo500(t *testing.T) {
	mock, h, rh, _ := setupParkingHandler(t)
	mock.ExpectExec(`UPDATE spaces SET available = \? WHERE id = \?`).
		WithArgs(false, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id, available, reserved`).
		WillReturnError(errors.New("connection refused"))

	rec := doRequest(h.ReserveSpace, http.MethodPost, "/api/reserve/1", "1")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rh.published)
}

// Full scenario: seed {1:true, 2:false}; reserve 1 -> 200; places shows both
// unavailable; reserve 1 again -> 404.
func TestReservationScenario(t *testing.T) {
	mock, h, _, _ := setupParkingHandler(t)

	mock.ExpectExec(`UPDATE spaces SET available = \? WHERE id = \?`).
		WithArgs(false, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectFindAll(mock,
		model.Space{ID: 1, Available: false},
		model.Space{ID: 2, Available: false},
	)

	rec := doRequest(h.ReserveSpace, http.MethodPost, "/api/reserve/1", "1")
	require.Equal(t, http.StatusOK, rec.Code)

	expectFindAll(mock,
		model.Space{ID: 1, Available: false},
		model.Space{ID: 2, Available: false},
	)
	rec = doRequest(h.GetPlaces, http.MethodGet, "/api/places", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Space
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []model.Space{
		{ID: 1, Available: false},
		{ID: 2, Available: false},
	}, got)

	// second reservation of the same space: the value is already false, so
	// zero rows change and the handler answers 404
	mock.ExpectExec(`UPDATE spaces SET available = \? WHERE id = \?`).
		WithArgs(false, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	rec = doRequest(h.ReserveSpace, http.MethodPost, "/api/reserve/1", "1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}
