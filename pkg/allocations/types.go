// Package allocations persists resource allocations, assigning a percentage of
// a user's capacity to a project over a date range.
package allocations

import (
	"errors"
	"fmt"
	"time"
)

// MaxCapacityPercent is the total capacity a user can be allocated across
// overlapping date ranges.
const MaxCapacityPercent = 100

// Allocation represents a share of a user's capacity committed to a project
type Allocation struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	UserID         int64     `json:"user_id"`
	ProjectID      int64     `json:"project_id"`
	Percent        int       `json:"percent"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	CreatedBy      *int64    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CapacityExceededError is returned when an allocation would push a user's
// total committed capacity over MaxCapacityPercent in some overlapping window.
type CapacityExceededError struct {
	UserID    int64
	Requested int
	Committed int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("allocation of %d%% for user %d exceeds capacity: %d%% already committed in overlapping range",
		e.Requested, e.UserID, e.Committed)
}

// IsCapacityExceeded checks if an error is a capacity violation
func IsCapacityExceeded(err error) bool {
	var capErr *CapacityExceededError
	return errors.As(err, &capErr)
}

// Validate checks the allocation's own fields before any capacity math
func (a *Allocation) Validate() error {
	if a.Percent <= 0 || a.Percent > MaxCapacityPercent {
		return fmt.Errorf("percent must be between 1 and %d", MaxCapacityPercent)
	}
	if a.EndDate.Before(a.StartDate) {
		return fmt.Errorf("end date must not precede start date")
	}
	return nil
}
