package repository

import (
	"context"
	"fmt"

	"workbench-backend/internal/store"
	appErrors "workbench-backend/pkg/errors"
)

// notFoundOnCondition turns a failed existence condition into NotFound for
// update-only writes. Other errors pass through unchanged.
func notFoundOnCondition(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if store.IsConditionFailed(err) {
		return appErrors.NewNotFound(fmt.Sprintf(format, args...))
	}
	return err
}

// addChildFailed maps the failed conditions of addChild. A missing owner
// gives notFound; an owner that exists means the child key is already taken.
func addChildFailed(ctx context.Context, s store.Store, owner store.Key, notFound error, format string, args ...any) error {
	_, err := s.GetItem(ctx, owner, AttrEntityID)
	if appErrors.IsNotFound(err) {
		return notFound
	}
	if err != nil {
		return err
	}
	return appErrors.NewConflict(fmt.Sprintf(format, args...))
}

// errClientNotFound creates a standardized client not found error
func errClientNotFound(id int64) error {
	return appErrors.NewNotFoundf("client %d not found", id)
}

// errProductElementNotFound creates a standardized product element not found error
func errProductElementNotFound(id int64) error {
	return appErrors.NewNotFoundf("product element %d not found", id)
}

// errWorkItemNotFound creates a standardized work item not found error
func errWorkItemNotFound(id int64) error {
	return appErrors.NewNotFoundf("work item %d not found", id)
}

// errVersionConflict reports a lost optimistic-concurrency race.
func errVersionConflict(id, version int64, cause error) error {
	return appErrors.NewTransactionFailed(
		fmt.Sprintf("work item %d was modified concurrently (expected version %d)", id, version), cause,
	).(*appErrors.AppError).WithCode(appErrors.CodeVersionConflict)
}

// validateID rejects ids no stored entity can have.
func validateID(entity string, id int64) error {
	if id <= 0 {
		return appErrors.NewValidationf("invalid %s id %d", entity, id)
	}
	return nil
}
