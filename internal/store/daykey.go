package store

import (
	"fmt"
	"time"
)

const ticketNumberPad = 4

// DayKey returns the fixed UTC calendar date a ticket or counter belongs to.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func FormatTicketNo(n int64) string {
	return fmt.Sprintf("%0*d", ticketNumberPad, n)
}

// DisplayTicketID derives the human-facing ticket id. The service suffix is
// present only for per-service numbering.
func DisplayTicketID(businessID, dayKey string, ticketNo int64, serviceID string) string {
	if serviceID != "" {
		return fmt.Sprintf("t_%s_%s_%d_%s", businessID, dayKey, ticketNo, serviceID)
	}
	return fmt.Sprintf("t_%s_%s_%d", businessID, dayKey, ticketNo)
}
