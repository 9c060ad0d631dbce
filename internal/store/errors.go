package store

import (
	appErrors "workbench-backend/pkg/errors"
)

// ErrConditionFailed builds the error returned when a single-item write
// condition does not hold.
func ErrConditionFailed(op string, key Key) error {
	return appErrors.NewConflict(op + " condition failed for " + key.PK + "/" + key.SK).(*appErrors.AppError).
		WithCode(appErrors.CodeConditionFailed)
}

// IsConditionFailed reports whether err came from an unmet write condition,
// either on a single item or inside a cancelled transaction.
func IsConditionFailed(err error) bool {
	return appErrors.CodeOf(err) == appErrors.CodeConditionFailed
}
