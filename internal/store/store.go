package store

import (
	"context"
	"encoding/json"
	"time"

	"walkq/queue-service/internal/models"
)

// ScopeKey identifies one counter: a business, a UTC day, and the service
// scope. ServiceID is empty in shared numbering mode.
type ScopeKey struct {
	BusinessID string
	DayKey     string
	ServiceID  string
}

// TicketKey is the ledger identity of a single ticket. Numbers are unique
// per scope key, so the key includes the service scope.
type TicketKey struct {
	BusinessID string
	DayKey     string
	ServiceID  string
	TicketNo   int64
}

type CounterStore interface {
	// IncrementAndGet creates the counter at zero if absent and returns the
	// post-increment value. Concurrent callers on the same key observe
	// distinct, strictly increasing results.
	IncrementAndGet(ctx context.Context, key ScopeKey, at time.Time) (int64, error)
	// ResetDay zeroes every counter for the business and day, starting a new
	// epoch. Already-issued tickets are untouched.
	ResetDay(ctx context.Context, businessID, dayKey string, at time.Time) error
}

type TicketLedger interface {
	// CreateTicket writes the ticket only if no ticket exists at its key,
	// returning ErrTicketExists otherwise. A failed write after a counter
	// increment permanently burns that number; it is never retried.
	CreateTicket(ctx context.Context, ticket models.Ticket) (models.Ticket, error)
	GetTicket(ctx context.Context, key TicketKey) (models.Ticket, bool, error)
	// ScanPending returns pending tickets for the business and day in
	// ascending ticket number order, optionally filtered to one service.
	ScanPending(ctx context.Context, businessID, dayKey, serviceID string, limit int) ([]models.Ticket, error)
	// ClaimForServing transitions pending -> serving, failing with
	// ErrNotPending if another caller claimed the ticket first.
	ClaimForServing(ctx context.Context, key TicketKey, at time.Time) (models.Ticket, error)
	HasTicketsForDay(ctx context.Context, businessID, dayKey string) (bool, error)
}

type UpdateProfileInput struct {
	Name          *string
	Industry      *string
	Services      *[]models.Service
	AvgMinutes    *map[string]int
	WorkersPerDay *int
	NumberingMode *string
	Status        *string
	UpdatedAt     time.Time
}

func (in UpdateProfileInput) Empty() bool {
	return in.Name == nil && in.Industry == nil && in.Services == nil &&
		in.AvgMinutes == nil && in.WorkersPerDay == nil &&
		in.NumberingMode == nil && in.Status == nil
}

type ProfileRegistry interface {
	// CreateProfile writes the profile only if none exists for its
	// business id, returning ErrProfileExists otherwise.
	CreateProfile(ctx context.Context, profile models.BusinessProfile) error
	GetProfile(ctx context.Context, businessID string) (models.BusinessProfile, error)
	// UpdateProfile merges the supplied fields into the stored profile;
	// omitted fields keep their prior values.
	UpdateProfile(ctx context.Context, businessID string, input UpdateProfileInput) (models.BusinessProfile, error)
}

type OutboxEvent struct {
	EventID    string          `json:"event_id"`
	BusinessID string          `json:"business_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

type EventLog interface {
	ListOutboxEvents(ctx context.Context, businessID string, after time.Time, limit int) ([]OutboxEvent, error)
}

// MergeProfile applies a partial update to a profile in place. This is the
// single definition of the merge semantics; the SQL implementation mirrors
// it field for field.
func MergeProfile(profile *models.BusinessProfile, input UpdateProfileInput) {
	if input.Name != nil {
		profile.Name = *input.Name
	}
	if input.Industry != nil {
		profile.Industry = *input.Industry
	}
	if input.Services != nil {
		profile.Services = *input.Services
	}
	if input.AvgMinutes != nil {
		profile.AvgMinutes = *input.AvgMinutes
	}
	if input.WorkersPerDay != nil {
		profile.WorkersPerDay = *input.WorkersPerDay
	}
	if input.NumberingMode != nil {
		profile.NumberingMode = *input.NumberingMode
	}
	if input.Status != nil {
		profile.Status = *input.Status
	}
	profile.UpdatedAt = input.UpdatedAt
}
