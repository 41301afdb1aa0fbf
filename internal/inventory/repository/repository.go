// Package repository holds the Postgres persistence for the kitchen
// inventory: reference data, the stock ledger and the report projections.
package repository

import (
	"github.com/stockwatch/stockwatch-backend/pkg/database"
)

// mapWriteError turns constraint violations into AppErrors and passes
// everything else through.
func mapWriteError(err error) error {
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// mapDeleteError reports a delete blocked by referencing rows as a conflict.
func mapDeleteError(err error, resource string) error {
	if appErr := database.MapPQDeleteError(err, resource); appErr != nil {
		return appErr
	}
	return err
}

// offset converts a 1-based page into a row offset.
func offset(page, perPage int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage
}
