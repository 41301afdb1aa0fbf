package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/stockwatch/stockwatch-backend/pkg/database"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
)

// Category groups inventory items
type Category struct {
	ID          int64     `db:"category_id" json:"categoryId"`
	Name        string    `db:"category_name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// CategoryRepository handles category persistence
type CategoryRepository struct {
	db *database.DB
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *database.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create creates a new category
func (r *CategoryRepository) Create(ctx context.Context, c *Category) error {
	query := `
		INSERT INTO categories (category_name, description)
		VALUES ($1, $2)
		RETURNING category_id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, c.Name, c.Description).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapWriteError(err)
}

// GetByID retrieves a category by ID
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*Category, error) {
	var c Category
	err := r.db.GetContext(ctx, &c, `SELECT * FROM categories WHERE category_id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("category")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all categories ordered by name
func (r *CategoryRepository) List(ctx context.Context) ([]Category, error) {
	categories := []Category{}
	err := r.db.SelectContext(ctx, &categories, `SELECT * FROM categories ORDER BY category_name`)
	return categories, err
}

// Update updates a category
func (r *CategoryRepository) Update(ctx context.Context, c *Category) error {
	query := `
		UPDATE categories SET category_name = $2, description = $3, updated_at = NOW()
		WHERE category_id = $1
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, c.ID, c.Name, c.Description).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("category")
	}
	return mapWriteError(err)
}

// Delete removes a category that no item references
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE category_id = $1`, id)
	if err != nil {
		return mapDeleteError(err, "category")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("category")
	}
	return nil
}
