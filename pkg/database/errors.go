package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
)

// Foreign keys are named fk_<table>_<resource>; the suffix tells us which
// reference was missing. Longer suffixes must come first.
var fkResources = []struct {
	suffix   string
	resource string
}{
	{"_menu_item", "menu item"},
	{"_delivery_line", "delivery line"},
	{"_item", "inventory item"},
	{"_unit", "unit"},
	{"_supplier", "supplier"},
	{"_category", "category"},
	{"_delivery", "delivery"},
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.InvalidReference(ReferenceResource(pqErr.Constraint), 0)

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	// Numeric value out of range (22003)
	case "22003":
		return errors.Validation(map[string]string{
			"quantity": "exceeds the supported range",
		})

	// Serialization failure (40001), deadlock (40P01)
	case "40001", "40P01":
		return errors.TransactionFailed(pqErr)

	default:
		return nil
	}
}

// MapPQDeleteError maps errors raised by a DELETE. A foreign key violation
// there means other rows still point at the target, which is a conflict.
func MapPQDeleteError(err error, resource string) *errors.AppError {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
		return errors.Conflict(resource + " is still referenced by other records and cannot be deleted")
	}
	return MapPQError(err)
}

// ReferenceResource names the resource guarded by a foreign key constraint.
func ReferenceResource(constraint string) string {
	for _, r := range fkResources {
		if strings.HasSuffix(constraint, r.suffix) {
			return r.resource
		}
	}
	return "record"
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_on_hand"):
		return errors.Validation(map[string]string{
			"quantityOnHand": "must not be negative",
		})

	case strings.Contains(constraint, "reorder_point"):
		return errors.Validation(map[string]string{
			"reorderPoint": "must not be negative",
		})

	case strings.Contains(constraint, "item_type"):
		return errors.Validation(map[string]string{
			"itemType": "must be one of: Perishable, NonPerishable, Tool",
		})

	case strings.Contains(constraint, "usage_type"):
		return errors.Validation(map[string]string{
			"usageType": "must be one of: manual, sale",
		})

	case strings.Contains(constraint, "cost") || strings.Contains(constraint, "price"):
		return errors.Validation(map[string]string{
			"cost": "must not be negative",
		})

	case strings.Contains(constraint, "quantity"):
		return errors.Validation(map[string]string{
			"quantity": "must be greater than zero",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.HasPrefix(constraint, "uq_inventory_items"):
		return "an inventory item with this name already exists"
	case strings.HasPrefix(constraint, "uq_categories"):
		return "a category with this name already exists"
	case strings.HasPrefix(constraint, "uq_units_abbreviation"):
		return "a unit with this abbreviation already exists"
	case strings.HasPrefix(constraint, "uq_units"):
		return "a unit with this name already exists"
	case strings.HasPrefix(constraint, "uq_suppliers_email"):
		return "a supplier with this email already exists"
	case strings.HasPrefix(constraint, "uq_suppliers"):
		return "a supplier with this name already exists"
	case strings.HasPrefix(constraint, "uq_menu_items"):
		return "a menu item with this name already exists"
	case strings.HasPrefix(constraint, "pk_recipe_ingredients"):
		return "this ingredient is already part of the recipe"
	case strings.HasPrefix(constraint, "pk_supplier_items"):
		return "this item is already linked to the supplier"
	default:
		return "a record with these values already exists"
	}
}
