package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"walkq/queue-service/internal/models"
	"walkq/queue-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestIncrementAndGetConcurrency(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	key := store.ScopeKey{BusinessID: uuid.NewString(), DayKey: "2026-01-12"}
	const workers = 20

	var wg sync.WaitGroup
	results := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := st.IncrementAndGet(ctx, key, time.Now().UTC())
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, workers)
	for n := range results {
		if seen[n] {
			t.Fatalf("duplicate number %d", n)
		}
		seen[n] = true
	}
	for n := int64(1); n <= workers; n++ {
		if !seen[n] {
			t.Fatalf("missing number %d", n)
		}
	}
}

func TestCreateTicketConditional(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	businessID := uuid.NewString()
	ticket := testTicket(businessID, "2026-01-12", "", 1)

	if _, err := st.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := st.CreateTicket(ctx, ticket); !errors.Is(err, store.ErrTicketExists) {
		t.Fatalf("expected ErrTicketExists, got %v", err)
	}

	var count int
	row := pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM outbox_events WHERE business_id = $1 AND type = 'ticket.created'
	`, businessID)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count outbox events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 ticket.created event, got %d", count)
	}
}

func TestClaimForServingRace(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	businessID := uuid.NewString()
	ticket := testTicket(businessID, "2026-01-12", "", 1)
	if _, err := st.CreateTicket(ctx, ticket); err != nil {
		t.Fatalf("create: %v", err)
	}

	key := store.TicketKey{BusinessID: businessID, DayKey: "2026-01-12", TicketNo: 1}
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.ClaimForServing(ctx, key, time.Now().UTC())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrNotPending):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected one winner and one loser, got %d/%d", wins, losses)
	}
}

func TestClaimForServingMissingTicket(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	key := store.TicketKey{BusinessID: uuid.NewString(), DayKey: "2026-01-12", TicketNo: 9}
	if _, err := st.ClaimForServing(ctx, key, time.Now().UTC()); !errors.Is(err, store.ErrTicketNotFound) {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestScanPendingOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	businessID := uuid.NewString()
	day := "2026-01-12"
	for _, seed := range []struct {
		service string
		no      int64
	}{
		{"cut", 2},
		{"cut", 1},
		{"color", 1},
	} {
		if _, err := st.CreateTicket(ctx, testTicket(businessID, day, seed.service, seed.no)); err != nil {
			t.Fatalf("create %s/%d: %v", seed.service, seed.no, err)
		}
	}

	cut, err := st.ScanPending(ctx, businessID, day, "cut", 10)
	if err != nil {
		t.Fatalf("scan cut: %v", err)
	}
	if len(cut) != 2 || cut[0].TicketNo != 1 || cut[1].TicketNo != 2 {
		t.Fatalf("cut scan: %+v", cut)
	}

	all, err := st.ScanPending(ctx, businessID, day, "", 10)
	if err != nil {
		t.Fatalf("scan all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all scan: %+v", all)
	}
}

func TestResetDayRestartsNumbering(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	businessID := uuid.NewString()
	day := "2026-01-12"
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if _, err := st.IncrementAndGet(ctx, store.ScopeKey{BusinessID: businessID, DayKey: day}, now); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if _, err := st.IncrementAndGet(ctx, store.ScopeKey{BusinessID: businessID, DayKey: day, ServiceID: "cut"}, now); err != nil {
		t.Fatalf("increment cut: %v", err)
	}

	if err := st.ResetDay(ctx, businessID, day, now); err != nil {
		t.Fatalf("reset: %v", err)
	}

	n, err := st.IncrementAndGet(ctx, store.ScopeKey{BusinessID: businessID, DayKey: day}, now)
	if err != nil {
		t.Fatalf("increment after reset: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 after reset, got %d", n)
	}
	n, err = st.IncrementAndGet(ctx, store.ScopeKey{BusinessID: businessID, DayKey: day, ServiceID: "cut"}, now)
	if err != nil {
		t.Fatalf("increment cut after reset: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected cut counter restarted at 1, got %d", n)
	}
}

func TestProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	now := time.Now().UTC().Truncate(time.Millisecond)
	profile := models.BusinessProfile{
		BusinessID:    uuid.NewString(),
		Name:          "Corner Barber",
		Industry:      "barbershop",
		Services:      []models.Service{{ID: "cut", Name: "Haircut", Enabled: true}},
		AvgMinutes:    map[string]int{"default": 30},
		WorkersPerDay: 3,
		NumberingMode: models.ModeShared,
		Status:        models.BusinessOpen,
		CreatedAt:     now,
		CreatedBy:     "staff-1",
		UpdatedAt:     now,
	}

	if err := st.CreateProfile(ctx, profile); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.CreateProfile(ctx, profile); !errors.Is(err, store.ErrProfileExists) {
		t.Fatalf("expected ErrProfileExists, got %v", err)
	}

	loaded, err := st.GetProfile(ctx, profile.BusinessID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Name != profile.Name || len(loaded.Services) != 1 || loaded.AvgMinutes["default"] != 30 {
		t.Fatalf("loaded profile mismatch: %+v", loaded)
	}

	name := "Corner Barber & Co"
	workers := 5
	updated, err := st.UpdateProfile(ctx, profile.BusinessID, store.UpdateProfileInput{
		Name:          &name,
		WorkersPerDay: &workers,
		UpdatedAt:     now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name || updated.WorkersPerDay != 5 {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.Industry != "barbershop" || len(updated.Services) != 1 {
		t.Fatalf("omitted fields changed: %+v", updated)
	}

	if _, err := st.GetProfile(ctx, uuid.NewString()); !errors.Is(err, store.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestListOutboxEvents(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	businessID := uuid.NewString()
	if _, err := st.CreateTicket(ctx, testTicket(businessID, "2026-01-12", "", 1)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.ClaimForServing(ctx, store.TicketKey{BusinessID: businessID, DayKey: "2026-01-12", TicketNo: 1}, time.Now().UTC()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	events, err := st.ListOutboxEvents(ctx, businessID, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != "ticket.created" || events[1].Type != "ticket.serving" {
		t.Fatalf("event types: %s %s", events[0].Type, events[1].Type)
	}
}

func testTicket(businessID, dayKey, serviceID string, ticketNo int64) models.Ticket {
	now := time.Now().UTC()
	return models.Ticket{
		TicketID:   store.DisplayTicketID(businessID, dayKey, ticketNo, serviceID),
		TicketNo:   ticketNo,
		BusinessID: businessID,
		DayKey:     dayKey,
		ServiceID:  serviceID,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	st := NewStore(pool)
	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return st, pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
