// Package audit captures activity-log events emitted from domain logic.
// Emission is fire-and-forget: a failed write is logged locally and never
// fails the operation that produced the event.
package audit

import (
	"context"
	"time"

	id "bloodlink/pkg/domain"
)

// ActivityType names a loggable domain action.
type ActivityType string

const (
	ActivityUnitRegistered    ActivityType = "unit_registered"
	ActivityUnitStatusChanged ActivityType = "unit_status_changed"
	ActivityUnitsExpired      ActivityType = "units_expired"
	ActivityRequestCreated    ActivityType = "request_created"
	ActivityRequestFulfilled  ActivityType = "request_fulfilled"
	ActivityRequestCancelled  ActivityType = "request_cancelled"
	ActivityRequestsExpired   ActivityType = "requests_expired"
	ActivityScheduleBooked    ActivityType = "schedule_booked"
	ActivityScheduleCancelled ActivityType = "schedule_cancelled"
)

// Event is one activity-log entry. Metadata carries small, queryable
// key/value context (unit IDs, statuses, counts) rather than free text.
type Event struct {
	Type        ActivityType
	Title       string
	Description string
	UserID      id.UserID
	Metadata    map[string]string
	Timestamp   time.Time
}

// Store persists activity events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
