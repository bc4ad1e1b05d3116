package store

import "errors"

var (
	ErrProfileNotFound = errors.New("business profile not found")
	ErrProfileExists   = errors.New("business profile already exists")
	ErrTicketExists    = errors.New("ticket number already recorded")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrNotPending      = errors.New("ticket is not pending")
	ErrNoTicket        = errors.New("no pending tickets")
	ErrDayNotEmpty     = errors.New("tickets already issued for this day")
)
