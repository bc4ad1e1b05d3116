package models

import "time"

type Ticket struct {
	TicketID   string    `json:"ticket_id"`
	TicketNo   int64     `json:"ticket_no"`
	DisplayNo  string    `json:"display_no"`
	BusinessID string    `json:"business_id"`
	DayKey     string    `json:"day"`
	ServiceID  string    `json:"service_id,omitempty"`
	Status     string    `json:"status"`
	ETAMinutes int       `json:"eta_minutes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	StatusPending = "pending"
	StatusServing = "serving"
)
