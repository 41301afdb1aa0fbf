package database

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceResource(t *testing.T) {
	tests := []struct {
		constraint string
		expected   string
	}{
		{"fk_usage_records_menu_item", "menu item"},
		{"fk_inventory_alerts_delivery_line", "delivery line"},
		{"fk_delivery_lines_item", "inventory item"},
		{"fk_delivery_lines_unit", "unit"},
		{"fk_deliveries_supplier", "supplier"},
		{"fk_inventory_items_category", "category"},
		{"fk_delivery_lines_delivery", "delivery"},
		{"some_other_constraint", "record"},
		{"", "record"},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			assert.Equal(t, tt.expected, ReferenceResource(tt.constraint))
		})
	}
}

func TestMapPQError(t *testing.T) {
	t.Run("non pq errors are not mapped", func(t *testing.T) {
		assert.Nil(t, MapPQError(fmt.Errorf("boom")))
	})

	t.Run("foreign key violation is an invalid reference", func(t *testing.T) {
		appErr := MapPQError(&pq.Error{Code: "23503", Constraint: "fk_recipe_ingredients_item"})
		require.NotNil(t, appErr)
		assert.Equal(t, "INVALID_REFERENCE", appErr.Code)
		assert.Equal(t, "inventory item", appErr.Details["resource"])
		assert.True(t, errors.Is(appErr, errors.ErrInvalidReference))
	})

	t.Run("unique violation is a conflict", func(t *testing.T) {
		appErr := MapPQError(&pq.Error{Code: "23505", Constraint: "uq_units_abbreviation"})
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusConflict, appErr.StatusCode)
		assert.Equal(t, "a unit with this abbreviation already exists", appErr.Message)
	})

	t.Run("check violation names the field", func(t *testing.T) {
		appErr := MapPQError(&pq.Error{Code: "23514", Constraint: "chk_inventory_items_quantity_on_hand"})
		require.NotNil(t, appErr)
		assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
		assert.Contains(t, appErr.Details, "quantityOnHand")
	})

	t.Run("not null violation uses the column", func(t *testing.T) {
		appErr := MapPQError(&pq.Error{Code: "23502", Column: "unit_id"})
		require.NotNil(t, appErr)
		assert.Equal(t, "must not be empty", appErr.Details["unit_id"])
	})

	t.Run("numeric overflow is a validation error", func(t *testing.T) {
		appErr := MapPQError(&pq.Error{Code: "22003", Message: "numeric field overflow"})
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
		assert.True(t, errors.Is(appErr, errors.ErrValidation))
		assert.Equal(t, "exceeds the supported range", appErr.Details["quantity"])
	})

	t.Run("serialization failure is a failed transaction", func(t *testing.T) {
		appErr := MapPQError(&pq.Error{Code: "40001"})
		require.NotNil(t, appErr)
		assert.True(t, errors.Is(appErr, errors.ErrTransactionFailed))
	})

	t.Run("unknown codes are not mapped", func(t *testing.T) {
		assert.Nil(t, MapPQError(&pq.Error{Code: "42P01"}))
	})
}

func TestMapPQDeleteError(t *testing.T) {
	appErr := MapPQDeleteError(&pq.Error{Code: "23503", Constraint: "fk_delivery_lines_item"}, "inventory item")
	require.NotNil(t, appErr)
	assert.True(t, errors.Is(appErr, errors.ErrConflict))
	assert.Contains(t, appErr.Message, "inventory item is still referenced")

	appErr = MapPQDeleteError(&pq.Error{Code: "23505"}, "unit")
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode)

	assert.Nil(t, MapPQDeleteError(fmt.Errorf("boom"), "unit"))
}
