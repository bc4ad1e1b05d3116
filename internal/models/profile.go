package models

import "time"

type Service struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type BusinessProfile struct {
	BusinessID    string         `json:"business_id"`
	Name          string         `json:"name"`
	Industry      string         `json:"industry"`
	Services      []Service      `json:"services"`
	AvgMinutes    map[string]int `json:"avg_minutes"`
	WorkersPerDay int            `json:"workers_per_day"`
	NumberingMode string         `json:"numbering_mode"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	CreatedBy     string         `json:"created_by"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

const (
	ModeShared     = "shared"
	ModePerService = "perService"

	BusinessOpen   = "open"
	BusinessClosed = "closed"
)

// AvgMinutesDefaultKey is the avg_minutes fallback entry used when a
// service has no duration of its own.
const AvgMinutesDefaultKey = "default"

func (p BusinessProfile) EnabledService(serviceID string) (Service, bool) {
	for _, svc := range p.Services {
		if svc.ID == serviceID && svc.Enabled {
			return svc, true
		}
	}
	return Service{}, false
}
