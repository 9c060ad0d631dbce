package domain

import (
	appErrors "workbench-backend/pkg/errors"
)

// Status is the lifecycle state of a work item.
type Status string

const (
	StatusNew           Status = "NEW"
	StatusPlanning      Status = "PLANNING"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusBlocked       Status = "BLOCKED"
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusTesting       Status = "TESTING"
	StatusCompleted     Status = "COMPLETED"
	StatusCanceled      Status = "CANCELED"
	StatusArchived      Status = "ARCHIVED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusNew,
	StatusPlanning,
	StatusInProgress,
	StatusBlocked,
	StatusPendingReview,
	StatusTesting,
	StatusCompleted,
	StatusCanceled,
	StatusArchived,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsActive is false only for the terminal CANCELED and ARCHIVED statuses.
func (s Status) IsActive() bool {
	return s != StatusCanceled && s != StatusArchived
}

// ActiveStatuses returns the statuses that keep a work item in default listings.
func ActiveStatuses() []Status {
	out := make([]Status, 0, len(Statuses))
	for _, s := range Statuses {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", appErrors.NewValidationf("unknown work item status %q", raw)
	}
	return s, nil
}
