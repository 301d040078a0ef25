package repository // repository defines data access for parking spaces

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"fmt"          // fmt wraps store errors with operation context

	"github.com/iliyamo/smart-parking/internal/model"
)

// SpaceRepo provides methods to work with parking spaces in the database.
// It is the sole owner of space state; the telemetry consumer and the
// reservation handler both write through it and never hold records beyond
// one operation.
type SpaceRepo struct {
	db *sql.DB
}

// NewSpaceRepo constructs a SpaceRepo with the given DB handle.
func NewSpaceRepo(db *sql.DB) *SpaceRepo {
	return &SpaceRepo{db: db}
}

// EnsureSchema creates the spaces table when it does not exist yet.  Run
// once at startup before seeding.
func (r *SpaceRepo) EnsureSchema(ctx context.Context) error {
	const q = `CREATE TABLE IF NOT EXISTS spaces (
	               id        INT PRIMARY KEY,
	               available BOOLEAN NOT NULL,
	               reserved  BOOLEAN NOT NULL DEFAULT FALSE
	           )`
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SeedIfEmpty inserts the given spaces only when the store currently holds
// zero records, so restarting the server never duplicates or resets state.
// It must run before the telemetry consumer starts; otherwise a sensor
// update could target a not-yet-existing record.
func (r *SpaceRepo) SeedIfEmpty(ctx context.Context, spaces []model.Space) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spaces`).Scan(&count); err != nil {
		return fmt.Errorf("count spaces: %w", err)
	}
	if count > 0 || len(spaces) == 0 {
		return nil
	}
	query := `INSERT INTO spaces (id, available, reserved) VALUES `
	args := make([]interface{}, 0, len(spaces)*3)
	for i, s := range spaces {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, s.ID, s.Available, s.Reserved)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("seed spaces: %w", err)
	}
	return nil
}

// FindAll retrieves every space ordered by id.  Viewers re-render by id, so
// the ordering is cosmetic rather than semantic.
func (r *SpaceRepo) FindAll(ctx context.Context) ([]model.Space, error) {
	const q = `SELECT id, available, reserved FROM spaces ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query spaces: %w", err)
	}
	defer rows.Close()

	var result []model.Space
	for rows.Next() {
		var s model.Space
		if err := rows.Scan(&s.ID, &s.Available, &s.Reserved); err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spaces: %w", err)
	}
	return result, nil
}

// SetAvailability updates the available flag of one space and reports
// whether exactly one row changed.  The MySQL driver counts rows changed,
// not rows matched, so "id does not exist" and "available already held that
// value" both come back false.  The two cases are deliberately not
// disentangled here: the sensor path does not care, and the reservation
// path answers both with the same 404.
func (r *SpaceRepo) SetAvailability(ctx context.Context, id int, available bool) (bool, error) {
	const q = `UPDATE spaces SET available = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, available, id)
	if err != nil {
		return false, fmt.Errorf("update space %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for space %d: %w", id, err)
	}
	return n == 1, nil
}
