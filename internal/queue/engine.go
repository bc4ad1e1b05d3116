package queue

import (
	"context"
	"strings"
	"time"

	"walkq/queue-service/internal/models"
	"walkq/queue-service/internal/store"
)

// Engine coordinates the profile registry, the day counters, and the ticket
// ledger. It holds no mutable state of its own; all coordination happens
// through the store's atomic primitives.
type Engine struct {
	profiles store.ProfileRegistry
	counters store.CounterStore
	ledger   store.TicketLedger
}

func NewEngine(profiles store.ProfileRegistry, counters store.CounterStore, ledger store.TicketLedger) *Engine {
	return &Engine{
		profiles: profiles,
		counters: counters,
		ledger:   ledger,
	}
}

type IssueTicketInput struct {
	BusinessID string
	ServiceID  string
	Now        time.Time
}

func (e *Engine) IssueTicket(ctx context.Context, input IssueTicketInput) (models.Ticket, error) {
	profile, err := e.profiles.GetProfile(ctx, input.BusinessID)
	if err != nil {
		return models.Ticket{}, err
	}

	serviceID := ""
	if profile.NumberingMode == models.ModePerService {
		requested := strings.TrimSpace(input.ServiceID)
		if requested == "" {
			return models.Ticket{}, ErrServiceRequired
		}
		if _, ok := profile.EnabledService(requested); !ok {
			return models.Ticket{}, ErrUnknownService
		}
		serviceID = requested
	}

	dayKey := store.DayKey(input.Now)
	ticketNo, err := e.counters.IncrementAndGet(ctx, store.ScopeKey{
		BusinessID: input.BusinessID,
		DayKey:     dayKey,
		ServiceID:  serviceID,
	}, input.Now)
	if err != nil {
		return models.Ticket{}, err
	}

	// If the ledger write fails from here on, ticketNo is burnt: the gap is
	// preferred over risking a duplicate number on retry.
	ticket, err := e.ledger.CreateTicket(ctx, models.Ticket{
		TicketID:   store.DisplayTicketID(input.BusinessID, dayKey, ticketNo, serviceID),
		TicketNo:   ticketNo,
		BusinessID: input.BusinessID,
		DayKey:     dayKey,
		ServiceID:  serviceID,
		Status:     models.StatusPending,
		CreatedAt:  input.Now,
		UpdatedAt:  input.Now,
	})
	if err != nil {
		return models.Ticket{}, err
	}
	ticket.DisplayNo = store.FormatTicketNo(ticket.TicketNo)
	if eta, ok := etaMinutes(profile, serviceID); ok {
		ticket.ETAMinutes = eta
	}
	return ticket, nil
}

// etaMinutes is a capacity estimate, ceil(avg/workers), not a forecast.
// A missing or non-positive average means no estimate at all.
func etaMinutes(profile models.BusinessProfile, serviceID string) (int, bool) {
	workers := profile.WorkersPerDay
	if workers <= 0 {
		workers = 1
	}
	avg := 0
	if serviceID != "" {
		avg = profile.AvgMinutes[serviceID]
	}
	if avg <= 0 {
		avg = profile.AvgMinutes[models.AvgMinutesDefaultKey]
	}
	if avg <= 0 {
		return 0, false
	}
	return (avg + workers - 1) / workers, true
}

type GetTicketInput struct {
	BusinessID string
	ServiceID  string
	DayKey     string
	TicketNo   int64
	Now        time.Time
}

// GetTicket is the point lookup for a previously issued ticket. DayKey
// defaults to today.
func (e *Engine) GetTicket(ctx context.Context, input GetTicketInput) (models.Ticket, error) {
	dayKey := strings.TrimSpace(input.DayKey)
	if dayKey == "" {
		dayKey = store.DayKey(input.Now)
	}
	ticket, found, err := e.ledger.GetTicket(ctx, store.TicketKey{
		BusinessID: input.BusinessID,
		DayKey:     dayKey,
		ServiceID:  strings.TrimSpace(input.ServiceID),
		TicketNo:   input.TicketNo,
	})
	if err != nil {
		return models.Ticket{}, err
	}
	if !found {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	ticket.DisplayNo = store.FormatTicketNo(ticket.TicketNo)
	return ticket, nil
}

type ServeNextInput struct {
	BusinessID string
	ServiceID  string
	Now        time.Time
}

// ServeNext claims the numerically smallest pending ticket in scope. A lost
// race surfaces as store.ErrNotPending; the caller owns the retry policy.
func (e *Engine) ServeNext(ctx context.Context, input ServeNextInput) (models.Ticket, error) {
	dayKey := store.DayKey(input.Now)
	candidates, err := e.ledger.ScanPending(ctx, input.BusinessID, dayKey, strings.TrimSpace(input.ServiceID), 1)
	if err != nil {
		return models.Ticket{}, err
	}
	if len(candidates) == 0 {
		return models.Ticket{}, store.ErrNoTicket
	}

	next := candidates[0]
	claimed, err := e.ledger.ClaimForServing(ctx, store.TicketKey{
		BusinessID: next.BusinessID,
		DayKey:     next.DayKey,
		ServiceID:  next.ServiceID,
		TicketNo:   next.TicketNo,
	}, input.Now)
	if err != nil {
		return models.Ticket{}, err
	}
	claimed.DisplayNo = store.FormatTicketNo(claimed.TicketNo)
	return claimed, nil
}

type ResetDayInput struct {
	BusinessID string
	Force      bool
	Now        time.Time
}

type ResetDayResult struct {
	BusinessID string `json:"business_id"`
	DayKey     string `json:"day"`
	NextNumber int64  `json:"next_number"`
}

// ResetDay zeroes today's counters. Unless forced it refuses when tickets
// already exist, since re-numbering an active day produces duplicates.
func (e *Engine) ResetDay(ctx context.Context, input ResetDayInput) (ResetDayResult, error) {
	if _, err := e.profiles.GetProfile(ctx, input.BusinessID); err != nil {
		return ResetDayResult{}, err
	}
	dayKey := store.DayKey(input.Now)
	if !input.Force {
		exists, err := e.ledger.HasTicketsForDay(ctx, input.BusinessID, dayKey)
		if err != nil {
			return ResetDayResult{}, err
		}
		if exists {
			return ResetDayResult{}, store.ErrDayNotEmpty
		}
	}
	if err := e.counters.ResetDay(ctx, input.BusinessID, dayKey, input.Now); err != nil {
		return ResetDayResult{}, err
	}
	return ResetDayResult{BusinessID: input.BusinessID, DayKey: dayKey, NextNumber: 0}, nil
}
