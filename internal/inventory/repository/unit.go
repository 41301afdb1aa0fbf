package repository

import (
	"context"
	"database/sql"

	"github.com/stockwatch/stockwatch-backend/pkg/database"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
)

// Unit is a unit of measure such as kilogram or litre. Quantities are
// never converted between units.
type Unit struct {
	ID           int64  `db:"unit_id" json:"unitId"`
	Name         string `db:"unit_name" json:"name"`
	Abbreviation string `db:"abbreviation" json:"abbreviation"`
}

// UnitRepository handles unit persistence
type UnitRepository struct {
	db *database.DB
}

// NewUnitRepository creates a new unit repository
func NewUnitRepository(db *database.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// Create creates a new unit
func (r *UnitRepository) Create(ctx context.Context, u *Unit) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO units (unit_name, abbreviation) VALUES ($1, $2) RETURNING unit_id`,
		u.Name, u.Abbreviation,
	).Scan(&u.ID)
	return mapWriteError(err)
}

// GetByID retrieves a unit by ID
func (r *UnitRepository) GetByID(ctx context.Context, id int64) (*Unit, error) {
	var u Unit
	err := r.db.GetContext(ctx, &u, `SELECT unit_id, unit_name, abbreviation FROM units WHERE unit_id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("unit")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns all units ordered by name
func (r *UnitRepository) List(ctx context.Context) ([]Unit, error) {
	units := []Unit{}
	err := r.db.SelectContext(ctx, &units, `SELECT unit_id, unit_name, abbreviation FROM units ORDER BY unit_name`)
	return units, err
}

// Update updates a unit
func (r *UnitRepository) Update(ctx context.Context, u *Unit) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE units SET unit_name = $2, abbreviation = $3 WHERE unit_id = $1`,
		u.ID, u.Name, u.Abbreviation,
	)
	if err != nil {
		return mapWriteError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("unit")
	}
	return nil
}

// Delete removes a unit that nothing references
func (r *UnitRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM units WHERE unit_id = $1`, id)
	if err != nil {
		return mapDeleteError(err, "unit")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("unit")
	}
	return nil
}
