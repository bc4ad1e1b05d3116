package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"walkq/queue-service/internal/models"
	"walkq/queue-service/internal/store"

	"github.com/google/uuid"
)

type ServiceInput struct {
	ID      string
	Name    string
	Enabled *bool
}

type CreateProfileInput struct {
	Name          string
	Industry      string
	Services      []ServiceInput
	AvgMinutes    map[string]int
	WorkersPerDay int
	NumberingMode string
	CreatedBy     string
	Now           time.Time
}

type UpdateProfileInput struct {
	Name          *string
	Industry      *string
	Services      *[]ServiceInput
	AvgMinutes    *map[string]int
	WorkersPerDay *int
	NumberingMode *string
	Status        *string
	Now           time.Time
}

func (e *Engine) CreateProfile(ctx context.Context, input CreateProfileInput) (models.BusinessProfile, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return models.BusinessProfile{}, ErrNameRequired
	}
	industry := strings.TrimSpace(input.Industry)
	if industry == "" {
		industry = "general"
	}
	mode := strings.TrimSpace(input.NumberingMode)
	if mode == "" {
		mode = models.ModeShared
	}
	if err := validateMode(mode); err != nil {
		return models.BusinessProfile{}, err
	}
	services, err := normalizeServices(input.Services)
	if err != nil {
		return models.BusinessProfile{}, err
	}
	avgMinutes := input.AvgMinutes
	if avgMinutes == nil {
		avgMinutes = map[string]int{}
	}
	createdBy := strings.TrimSpace(input.CreatedBy)
	if createdBy == "" {
		createdBy = "unknown"
	}

	profile := models.BusinessProfile{
		BusinessID:    uuid.NewString(),
		Name:          name,
		Industry:      industry,
		Services:      services,
		AvgMinutes:    avgMinutes,
		WorkersPerDay: coerceWorkers(input.WorkersPerDay),
		NumberingMode: mode,
		Status:        models.BusinessOpen,
		CreatedAt:     input.Now,
		CreatedBy:     createdBy,
		UpdatedAt:     input.Now,
	}
	if err := e.profiles.CreateProfile(ctx, profile); err != nil {
		return models.BusinessProfile{}, err
	}
	return profile, nil
}

func (e *Engine) GetProfile(ctx context.Context, businessID string) (models.BusinessProfile, error) {
	return e.profiles.GetProfile(ctx, businessID)
}

func (e *Engine) UpdateProfile(ctx context.Context, businessID string, input UpdateProfileInput) (models.BusinessProfile, error) {
	update := store.UpdateProfileInput{UpdatedAt: input.Now}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return models.BusinessProfile{}, ErrNameRequired
		}
		update.Name = &name
	}
	if input.Industry != nil {
		industry := strings.TrimSpace(*input.Industry)
		if industry == "" {
			industry = "general"
		}
		update.Industry = &industry
	}
	if input.Services != nil {
		services, err := normalizeServices(*input.Services)
		if err != nil {
			return models.BusinessProfile{}, err
		}
		update.Services = &services
	}
	if input.AvgMinutes != nil {
		avgMinutes := *input.AvgMinutes
		if avgMinutes == nil {
			avgMinutes = map[string]int{}
		}
		update.AvgMinutes = &avgMinutes
	}
	if input.WorkersPerDay != nil {
		workers := coerceWorkers(*input.WorkersPerDay)
		update.WorkersPerDay = &workers
	}
	if input.NumberingMode != nil {
		mode := strings.TrimSpace(*input.NumberingMode)
		if err := validateMode(mode); err != nil {
			return models.BusinessProfile{}, err
		}
		update.NumberingMode = &mode
	}
	if input.Status != nil {
		status := strings.TrimSpace(*input.Status)
		if status != models.BusinessOpen && status != models.BusinessClosed {
			return models.BusinessProfile{}, ErrInvalidStatus
		}
		update.Status = &status
	}

	if update.Empty() {
		return models.BusinessProfile{}, ErrNoFields
	}
	return e.profiles.UpdateProfile(ctx, businessID, update)
}

func validateMode(mode string) error {
	switch mode {
	case models.ModeShared, models.ModePerService:
		return nil
	default:
		return ErrInvalidMode
	}
}

func coerceWorkers(workers int) int {
	if workers <= 0 {
		return 1
	}
	return workers
}

func normalizeServices(inputs []ServiceInput) ([]models.Service, error) {
	seen := make(map[string]struct{}, len(inputs))
	services := make([]models.Service, 0, len(inputs))
	for i, in := range inputs {
		id := strings.TrimSpace(in.ID)
		if id == "" {
			id = strings.TrimSpace(in.Name)
		}
		if id == "" {
			id = fmt.Sprintf("svc_%d", i)
		}
		if _, dup := seen[id]; dup {
			return nil, ErrDuplicateService
		}
		seen[id] = struct{}{}
		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = id
		}
		enabled := true
		if in.Enabled != nil {
			enabled = *in.Enabled
		}
		services = append(services, models.Service{ID: id, Name: name, Enabled: enabled})
	}
	return services, nil
}
