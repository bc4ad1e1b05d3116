package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"walkq/queue-service/internal/models"
	"walkq/queue-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultScanLimit = 100

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) IncrementAndGet(ctx context.Context, key store.ScopeKey, at time.Time) (int64, error) {
	var next int64
	row := s.pool.QueryRow(ctx, `
		INSERT INTO day_counters (business_id, day_key, service_id, next_number, updated_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (business_id, day_key, service_id)
		DO UPDATE SET next_number = day_counters.next_number + 1, updated_at = $4
		RETURNING next_number
	`, key.BusinessID, key.DayKey, key.ServiceID, at)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) ResetDay(ctx context.Context, businessID, dayKey string, at time.Time) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		DELETE FROM day_counters
		WHERE business_id = $1 AND day_key = $2
	`, businessID, dayKey); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO day_counters (business_id, day_key, service_id, next_number, updated_at)
		VALUES ($1, $2, '', 0, $3)
	`, businessID, dayKey, at); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) CreateTicket(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var created models.Ticket
	row := tx.QueryRow(ctx, `
		INSERT INTO tickets (business_id, day_key, service_id, ticket_no, ticket_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (business_id, day_key, service_id, ticket_no) DO NOTHING
		RETURNING business_id, day_key, service_id, ticket_no, ticket_id, status, created_at, updated_at
	`, ticket.BusinessID, ticket.DayKey, ticket.ServiceID, ticket.TicketNo, ticket.TicketID, ticket.Status, ticket.CreatedAt, ticket.UpdatedAt)
	if err = scanTicket(row, &created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrTicketExists
		}
		return models.Ticket{}, err
	}

	if err = insertOutboxEvent(ctx, tx, "ticket.created", created); err != nil {
		return models.Ticket{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}
	return created, nil
}

func (s *Store) GetTicket(ctx context.Context, key store.TicketKey) (models.Ticket, bool, error) {
	var ticket models.Ticket
	row := s.pool.QueryRow(ctx, `
		SELECT business_id, day_key, service_id, ticket_no, ticket_id, status, created_at, updated_at
		FROM tickets
		WHERE business_id = $1 AND day_key = $2 AND service_id = $3 AND ticket_no = $4
	`, key.BusinessID, key.DayKey, key.ServiceID, key.TicketNo)
	if err := scanTicket(row, &ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) ScanPending(ctx context.Context, businessID, dayKey, serviceID string, limit int) ([]models.Ticket, error) {
	if limit <= 0 {
		limit = defaultScanLimit
	}
	query := `
		SELECT business_id, day_key, service_id, ticket_no, ticket_id, status, created_at, updated_at
		FROM tickets
		WHERE business_id = $1 AND day_key = $2 AND status = 'pending'
	`
	args := []interface{}{businessID, dayKey}
	if serviceID != "" {
		query += " AND service_id = $3"
		args = append(args, serviceID)
		query += " ORDER BY ticket_no ASC LIMIT $4"
	} else {
		query += " ORDER BY ticket_no ASC LIMIT $3"
	}
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var ticket models.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Store) ClaimForServing(ctx context.Context, key store.TicketKey, at time.Time) (models.Ticket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var claimed models.Ticket
	row := tx.QueryRow(ctx, `
		UPDATE tickets
		SET status = 'serving', updated_at = $5
		WHERE business_id = $1 AND day_key = $2 AND service_id = $3 AND ticket_no = $4
			AND status = 'pending'
		RETURNING business_id, day_key, service_id, ticket_no, ticket_id, status, created_at, updated_at
	`, key.BusinessID, key.DayKey, key.ServiceID, key.TicketNo, at)
	if err = scanTicket(row, &claimed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			existsRow := tx.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM tickets
					WHERE business_id = $1 AND day_key = $2 AND service_id = $3 AND ticket_no = $4
				)
			`, key.BusinessID, key.DayKey, key.ServiceID, key.TicketNo)
			if err = existsRow.Scan(&exists); err != nil {
				return models.Ticket{}, err
			}
			if !exists {
				err = store.ErrTicketNotFound
			} else {
				err = store.ErrNotPending
			}
		}
		return models.Ticket{}, err
	}

	if err = insertOutboxEvent(ctx, tx, "ticket.serving", claimed); err != nil {
		return models.Ticket{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, err
	}
	return claimed, nil
}

func (s *Store) HasTicketsForDay(ctx context.Context, businessID, dayKey string) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tickets WHERE business_id = $1 AND day_key = $2
		)
	`, businessID, dayKey)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) CreateProfile(ctx context.Context, profile models.BusinessProfile) error {
	servicesJSON, err := json.Marshal(profile.Services)
	if err != nil {
		return err
	}
	avgJSON, err := json.Marshal(profile.AvgMinutes)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO business_profiles (
			business_id, name, industry, services, avg_minutes, workers_per_day,
			numbering_mode, status, created_at, created_by, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (business_id) DO NOTHING
	`, profile.BusinessID, profile.Name, profile.Industry, servicesJSON, avgJSON,
		profile.WorkersPerDay, profile.NumberingMode, profile.Status,
		profile.CreatedAt, profile.CreatedBy, profile.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrProfileExists
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, businessID string) (models.BusinessProfile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT business_id, name, industry, services, avg_minutes, workers_per_day,
			numbering_mode, status, created_at, created_by, updated_at
		FROM business_profiles
		WHERE business_id = $1
	`, businessID)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.BusinessProfile{}, store.ErrProfileNotFound
		}
		return models.BusinessProfile{}, err
	}
	return profile, nil
}

func (s *Store) UpdateProfile(ctx context.Context, businessID string, input store.UpdateProfileInput) (models.BusinessProfile, error) {
	sets := []string{}
	args := []interface{}{}

	addSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if input.Name != nil {
		addSet("name", *input.Name)
	}
	if input.Industry != nil {
		addSet("industry", *input.Industry)
	}
	if input.Services != nil {
		servicesJSON, err := json.Marshal(*input.Services)
		if err != nil {
			return models.BusinessProfile{}, err
		}
		addSet("services", servicesJSON)
	}
	if input.AvgMinutes != nil {
		avgJSON, err := json.Marshal(*input.AvgMinutes)
		if err != nil {
			return models.BusinessProfile{}, err
		}
		addSet("avg_minutes", avgJSON)
	}
	if input.WorkersPerDay != nil {
		addSet("workers_per_day", *input.WorkersPerDay)
	}
	if input.NumberingMode != nil {
		addSet("numbering_mode", *input.NumberingMode)
	}
	if input.Status != nil {
		addSet("status", *input.Status)
	}
	addSet("updated_at", input.UpdatedAt)

	args = append(args, businessID)
	query := fmt.Sprintf(`
		UPDATE business_profiles
		SET %s
		WHERE business_id = $%d
		RETURNING business_id, name, industry, services, avg_minutes, workers_per_day,
			numbering_mode, status, created_at, created_by, updated_at
	`, joinSets(sets), len(args))

	row := s.pool.QueryRow(ctx, query, args...)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.BusinessProfile{}, store.ErrProfileNotFound
		}
		return models.BusinessProfile{}, err
	}
	return profile, nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, businessID string, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = defaultScanLimit
	}
	query := `
		SELECT event_id, business_id, type, payload_json, created_at
		FROM outbox_events
		WHERE business_id = $1
	`
	args := []interface{}{businessID}
	if !after.IsZero() {
		query += " AND created_at > $2 ORDER BY created_at ASC LIMIT $3"
		args = append(args, after, limit)
	} else {
		query += " ORDER BY created_at ASC LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.BusinessID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func scanTicket(row pgx.Row, ticket *models.Ticket) error {
	return row.Scan(&ticket.BusinessID, &ticket.DayKey, &ticket.ServiceID, &ticket.TicketNo,
		&ticket.TicketID, &ticket.Status, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func scanProfile(row pgx.Row) (models.BusinessProfile, error) {
	var profile models.BusinessProfile
	var servicesJSON []byte
	var avgJSON []byte
	if err := row.Scan(&profile.BusinessID, &profile.Name, &profile.Industry, &servicesJSON,
		&avgJSON, &profile.WorkersPerDay, &profile.NumberingMode, &profile.Status,
		&profile.CreatedAt, &profile.CreatedBy, &profile.UpdatedAt); err != nil {
		return models.BusinessProfile{}, err
	}
	if err := json.Unmarshal(servicesJSON, &profile.Services); err != nil {
		return models.BusinessProfile{}, err
	}
	if err := json.Unmarshal(avgJSON, &profile.AvgMinutes); err != nil {
		return models.BusinessProfile{}, err
	}
	return profile, nil
}

func joinSets(sets []string) string {
	out := ""
	for i, set := range sets {
		if i > 0 {
			out += ", "
		}
		out += set
	}
	return out
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, ticket models.Ticket) error {
	payload := map[string]interface{}{
		"ticket_id":   ticket.TicketID,
		"ticket_no":   ticket.TicketNo,
		"business_id": ticket.BusinessID,
		"day":         ticket.DayKey,
		"service_id":  ticket.ServiceID,
		"status":      ticket.Status,
		"created_at":  ticket.CreatedAt,
		"updated_at":  ticket.UpdatedAt,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, business_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), ticket.BusinessID, eventType, payloadJSON, time.Now().UTC())
	return err
}
