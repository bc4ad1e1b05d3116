package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"walkq/queue-service/internal/models"
	"walkq/queue-service/internal/queue"
	"walkq/queue-service/internal/store"
)

// QueueService is the engine surface the handler depends on.
type QueueService interface {
	CreateProfile(ctx context.Context, input queue.CreateProfileInput) (models.BusinessProfile, error)
	GetProfile(ctx context.Context, businessID string) (models.BusinessProfile, error)
	UpdateProfile(ctx context.Context, businessID string, input queue.UpdateProfileInput) (models.BusinessProfile, error)
	IssueTicket(ctx context.Context, input queue.IssueTicketInput) (models.Ticket, error)
	GetTicket(ctx context.Context, input queue.GetTicketInput) (models.Ticket, error)
	ServeNext(ctx context.Context, input queue.ServeNextInput) (models.Ticket, error)
	ResetDay(ctx context.Context, input queue.ResetDayInput) (queue.ResetDayResult, error)
}

type Handler struct {
	queue  QueueService
	events store.EventLog
}

func NewHandler(queue QueueService, events store.EventLog) *Handler {
	return &Handler{queue: queue, events: events}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/businesses", h.handleBusinesses)
	mux.HandleFunc("/api/businesses/", h.handleBusinessSubtree)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

type serviceRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`
}

type createBusinessRequest struct {
	Name          string           `json:"name"`
	Industry      string           `json:"industry"`
	Services      []serviceRequest `json:"services"`
	AvgMinutes    map[string]int   `json:"avg_minutes"`
	WorkersPerDay int              `json:"workers_per_day"`
	NumberingMode string           `json:"numbering_mode"`
}

type updateBusinessRequest struct {
	Name          *string           `json:"name"`
	Industry      *string           `json:"industry"`
	Services      *[]serviceRequest `json:"services"`
	AvgMinutes    *map[string]int   `json:"avg_minutes"`
	WorkersPerDay *int              `json:"workers_per_day"`
	NumberingMode *string           `json:"numbering_mode"`
	Status        *string           `json:"status"`
}

type issueTicketRequest struct {
	ServiceID string `json:"service_id"`
}

type serveNextRequest struct {
	ServiceID string `json:"service_id"`
}

type resetDayRequest struct {
	Force bool `json:"force"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleBusinesses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createBusinessRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	profile, err := h.queue.CreateProfile(r.Context(), queue.CreateProfileInput{
		Name:          req.Name,
		Industry:      req.Industry,
		Services:      toServiceInputs(req.Services),
		AvgMinutes:    req.AvgMinutes,
		WorkersPerDay: req.WorkersPerDay,
		NumberingMode: req.NumberingMode,
		CreatedBy:     callerIdentity(r),
		Now:           time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (h *Handler) handleBusinessSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/businesses/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	businessID := parts[0]

	switch {
	case len(parts) == 1:
		h.handleBusiness(w, r, businessID)
	case len(parts) == 2 && parts[1] == "tickets":
		h.handleIssueTicket(w, r, businessID)
	case len(parts) == 3 && parts[1] == "tickets":
		h.handleGetTicket(w, r, businessID, parts[2])
	case len(parts) == 3 && parts[1] == "actions":
		switch parts[2] {
		case "serve-next":
			h.handleServeNext(w, r, businessID)
		case "reset-day":
			h.handleResetDay(w, r, businessID)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleBusiness(w http.ResponseWriter, r *http.Request, businessID string) {
	switch r.Method {
	case http.MethodGet:
		profile, err := h.queue.GetProfile(r.Context(), businessID)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	case http.MethodPatch:
		var req updateBusinessRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}

		input := queue.UpdateProfileInput{
			Name:          req.Name,
			Industry:      req.Industry,
			AvgMinutes:    req.AvgMinutes,
			WorkersPerDay: req.WorkersPerDay,
			NumberingMode: req.NumberingMode,
			Status:        req.Status,
			Now:           time.Now().UTC(),
		}
		if req.Services != nil {
			services := toServiceInputs(*req.Services)
			input.Services = &services
		}

		profile, err := h.queue.UpdateProfile(r.Context(), businessID, input)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleIssueTicket(w http.ResponseWriter, r *http.Request, businessID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req issueTicketRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	ticket, err := h.queue.IssueTicket(r.Context(), queue.IssueTicketInput{
		BusinessID: businessID,
		ServiceID:  req.ServiceID,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request, businessID, ticketNoRaw string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ticketNo, err := strconv.ParseInt(ticketNoRaw, 10, 64)
	if err != nil || ticketNo <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "ticket number must be a positive integer")
		return
	}

	ticket, err := h.queue.GetTicket(r.Context(), queue.GetTicketInput{
		BusinessID: businessID,
		ServiceID:  r.URL.Query().Get("service_id"),
		DayKey:     r.URL.Query().Get("day"),
		TicketNo:   ticketNo,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleServeNext(w http.ResponseWriter, r *http.Request, businessID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req serveNextRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	ticket, err := h.queue.ServeNext(r.Context(), queue.ServeNextInput{
		BusinessID: businessID,
		ServiceID:  req.ServiceID,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleResetDay(w http.ResponseWriter, r *http.Request, businessID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req resetDayRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	result, err := h.queue.ResetDay(r.Context(), queue.ResetDayInput{
		BusinessID: businessID,
		Force:      req.Force,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	if businessID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "business_id is required")
		return
	}

	afterRaw := strings.TrimSpace(r.URL.Query().Get("after"))
	var after time.Time
	if afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "after must be RFC3339 timestamp")
			return
		}
		after = parsed
	}

	limit := 100
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.events.ListOutboxEvents(r.Context(), businessID, after, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// decodeOptionalBody treats an absent or empty body as the zero request.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func toServiceInputs(requests []serviceRequest) []queue.ServiceInput {
	if requests == nil {
		return nil
	}
	inputs := make([]queue.ServiceInput, 0, len(requests))
	for _, req := range requests {
		inputs = append(inputs, queue.ServiceInput{ID: req.ID, Name: req.Name, Enabled: req.Enabled})
	}
	return inputs
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrProfileNotFound):
		return http.StatusNotFound, "business_not_found", "business not found"
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrNoTicket):
		return http.StatusNotFound, "queue_empty", "no pending tickets"
	case errors.Is(err, store.ErrProfileExists):
		return http.StatusConflict, "business_exists", "business already exists"
	case errors.Is(err, store.ErrTicketExists):
		return http.StatusConflict, "ticket_exists", "ticket number already issued"
	case errors.Is(err, store.ErrNotPending):
		return http.StatusConflict, "not_pending", "ticket is no longer pending"
	case errors.Is(err, store.ErrDayNotEmpty):
		return http.StatusConflict, "day_not_empty", "tickets already issued today; pass force to reset anyway"
	case errors.Is(err, queue.ErrNameRequired),
		errors.Is(err, queue.ErrServiceRequired),
		errors.Is(err, queue.ErrUnknownService),
		errors.Is(err, queue.ErrDuplicateService),
		errors.Is(err, queue.ErrInvalidMode),
		errors.Is(err, queue.ErrInvalidStatus),
		errors.Is(err, queue.ErrNoFields):
		return http.StatusBadRequest, "invalid_request", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
