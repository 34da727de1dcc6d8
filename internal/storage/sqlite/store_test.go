package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"upmon/internal/models"
	"upmon/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, store *Store, telegramID int64) *models.User {
	t.Helper()
	u := &models.User{
		TelegramID:                 telegramID,
		Email:                      "owner@example.com",
		IsNotificationEnabled:      true,
		IsEmailNotificationEnabled: true,
	}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func seedMonitor(t *testing.T, store *Store, ownerID string) *models.Monitor {
	t.Helper()
	m := &models.Monitor{
		OwnerID:           ownerID,
		URL:               "https://example.com",
		Name:              "example",
		Interval:          300,
		Timeout:           10,
		IsActive:          true,
		ConsecutiveChecks: 2,
	}
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("create monitor: %v", err)
	}
	return m
}

func TestCreateUserDefaultsAndDuplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, store, 100)
	if u.EmailLimit != 4 {
		t.Errorf("email limit should default to 4, got %d", u.EmailLimit)
	}

	dup := &models.User{TelegramID: 100}
	if err := store.CreateUser(ctx, dup); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("want ErrDuplicate for reused telegram id, got %v", err)
	}

	fresh, err := store.GetUserByTelegramID(ctx, 100)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if fresh.ID != u.ID || !fresh.IsNotificationEnabled {
		t.Error("round-tripped user lost fields")
	}
}

func TestLoadActiveMonitorsAttachesOwnerAndWindows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, store, 200)
	active := seedMonitor(t, store, u.ID)

	paused := &models.Monitor{OwnerID: u.ID, URL: "https://paused.example.com", Name: "paused", Interval: 300, Timeout: 10, IsActive: false}
	if err := store.CreateMonitor(ctx, paused); err != nil {
		t.Fatalf("create paused monitor: %v", err)
	}

	now := time.Now().UTC()
	w := &models.MaintenanceWindow{MonitorID: active.ID, StartTime: now, EndTime: now.Add(time.Hour), Description: "deploy"}
	if err := store.CreateMaintenanceWindow(ctx, w); err != nil {
		t.Fatalf("create window: %v", err)
	}

	monitors, err := store.LoadActiveMonitors(ctx)
	if err != nil {
		t.Fatalf("load active monitors: %v", err)
	}
	if len(monitors) != 1 {
		t.Fatalf("want only the active monitor, got %d", len(monitors))
	}
	m := monitors[0]
	if m.ID != active.ID {
		t.Errorf("want monitor %s, got %s", active.ID, m.ID)
	}
	if m.Owner == nil || m.Owner.TelegramID != 200 {
		t.Error("owner should be attached")
	}
	if len(m.MaintenanceWindows) != 1 || m.MaintenanceWindows[0].Description != "deploy" {
		t.Errorf("maintenance windows should be attached, got %v", m.MaintenanceWindows)
	}
}

func TestSaveCycleResultsPersistsLogsAndStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, store, 300)
	m := seedMonitor(t, store, u.ID)

	code := 200
	checkedAt := time.Now().UTC()
	logs := []models.CheckLog{{
		MonitorID:    m.ID,
		StatusCode:   &code,
		ResponseTime: 0.42,
		IsUp:         true,
		CheckedAt:    checkedAt,
	}}
	updates := []models.StatusUpdate{{MonitorID: m.ID, IsUp: true, CheckedAt: checkedAt}}

	if err := store.SaveCycleResults(ctx, logs, updates); err != nil {
		t.Fatalf("save cycle results: %v", err)
	}

	fresh, err := store.GetMonitor(ctx, m.ID)
	if err != nil {
		t.Fatalf("get monitor: %v", err)
	}
	if fresh.LastStatus == nil || !*fresh.LastStatus {
		t.Error("last_status should be up")
	}
	if fresh.LastCheckedAt == nil || !fresh.LastCheckedAt.Equal(checkedAt) {
		t.Errorf("last_checked_at mismatch: %v", fresh.LastCheckedAt)
	}

	got, err := store.ListCheckLogs(ctx, storage.ListCheckLogsParams{MonitorID: m.ID, Limit: 10})
	if err != nil {
		t.Fatalf("list check logs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 log, got %d", len(got))
	}
	if got[0].StatusCode == nil || *got[0].StatusCode != 200 || !got[0].IsUp {
		t.Error("round-tripped log lost fields")
	}
	if got[0].ErrorMessage != nil {
		t.Errorf("error message should be null for a clean check, got %q", *got[0].ErrorMessage)
	}
}

func TestSaveCycleResultsRollsBackAsOneBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, store, 400)
	m := seedMonitor(t, store, u.ID)

	checkedAt := time.Now().UTC()
	// Two logs with the same primary key force the second insert to fail.
	logs := []models.CheckLog{
		{ID: "chk_dup", MonitorID: m.ID, IsUp: false, CheckedAt: checkedAt},
		{ID: "chk_dup", MonitorID: m.ID, IsUp: false, CheckedAt: checkedAt},
	}
	updates := []models.StatusUpdate{{MonitorID: m.ID, IsUp: false, CheckedAt: checkedAt}}

	if err := store.SaveCycleResults(ctx, logs, updates); err == nil {
		t.Fatal("want error for duplicate log id")
	}

	got, err := store.ListCheckLogs(ctx, storage.ListCheckLogsParams{MonitorID: m.ID, Limit: 10})
	if err != nil {
		t.Fatalf("list check logs: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("failed batch must leave no logs, got %d", len(got))
	}
	fresh, _ := store.GetMonitor(ctx, m.ID)
	if fresh.LastStatus != nil {
		t.Error("failed batch must not update monitor status")
	}
}

func TestDeleteMonitorCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, store, 500)
	m := seedMonitor(t, store, u.ID)

	now := time.Now().UTC()
	if err := store.CreateMaintenanceWindow(ctx, &models.MaintenanceWindow{MonitorID: m.ID, StartTime: now, EndTime: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create window: %v", err)
	}
	if err := store.SaveCycleResults(ctx,
		[]models.CheckLog{{MonitorID: m.ID, IsUp: true, CheckedAt: now}},
		[]models.StatusUpdate{{MonitorID: m.ID, IsUp: true, CheckedAt: now}}); err != nil {
		t.Fatalf("save cycle: %v", err)
	}

	if err := store.DeleteMonitor(ctx, m.ID); err != nil {
		t.Fatalf("delete monitor: %v", err)
	}

	if _, err := store.GetMonitor(ctx, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want ErrNotFound after delete, got %v", err)
	}
	logs, err := store.ListCheckLogs(ctx, storage.ListCheckLogsParams{MonitorID: m.ID, Limit: 10})
	if err != nil {
		t.Fatalf("list check logs: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("check logs should cascade on delete, got %d", len(logs))
	}

	if err := store.DeleteMonitor(ctx, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete should report ErrNotFound, got %v", err)
	}
}

func TestUpdateUserEmailQuota(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, store, 600)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if err := store.UpdateUserEmailQuota(ctx, u.ID, 3, at); err != nil {
		t.Fatalf("update quota: %v", err)
	}

	fresh, err := store.GetUserByTelegramID(ctx, 600)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if fresh.EmailNotificationCount != 3 {
		t.Errorf("want count 3, got %d", fresh.EmailNotificationCount)
	}
	if fresh.LastEmailNotificationDate == nil || !fresh.LastEmailNotificationDate.Equal(at) {
		t.Errorf("want last date %v, got %v", at, fresh.LastEmailNotificationDate)
	}

	if err := store.UpdateUserEmailQuota(ctx, "usr_missing", 1, at); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want ErrNotFound for unknown user, got %v", err)
	}
}

func TestMonitorStatsCountsFailures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, store, 700)
	m := seedMonitor(t, store, u.ID)

	now := time.Now().UTC()
	mkLog := func(at time.Time, up bool) models.CheckLog {
		return models.CheckLog{MonitorID: m.ID, IsUp: up, CheckedAt: at}
	}
	logs := []models.CheckLog{
		mkLog(now.Add(-time.Hour), false),       // within 24h
		mkLog(now.Add(-2*time.Hour), false),     // within 24h
		mkLog(now.Add(-3*24*time.Hour), false),  // within 7d only
		mkLog(now.Add(-10*24*time.Hour), false), // outside both windows
		mkLog(now.Add(-time.Minute), true),      // success, never counted
	}
	if err := store.SaveCycleResults(ctx, logs, nil); err != nil {
		t.Fatalf("save logs: %v", err)
	}

	stats, err := store.MonitorStats(ctx, m.ID)
	if err != nil {
		t.Fatalf("monitor stats: %v", err)
	}
	if stats.Incidents24h != 2 {
		t.Errorf("want 2 incidents in 24h, got %d", stats.Incidents24h)
	}
	if stats.Incidents7d != 3 {
		t.Errorf("want 3 incidents in 7d, got %d", stats.Incidents7d)
	}
	if stats.LastIncident == nil || !stats.LastIncident.Equal(now.Add(-time.Hour)) {
		t.Errorf("want last incident one hour ago, got %v", stats.LastIncident)
	}
	if stats.Name != "example" || stats.URL != "https://example.com" {
		t.Error("stats should carry monitor identity")
	}

	if _, err := store.MonitorStats(ctx, "mon_missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("want ErrNotFound for unknown monitor, got %v", err)
	}
}

func TestCountActiveMonitors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, store, 800)
	seedMonitor(t, store, u.ID)
	paused := &models.Monitor{OwnerID: u.ID, URL: "https://other.example.com", Name: "other", Interval: 300, Timeout: 10, IsActive: false}
	if err := store.CreateMonitor(ctx, paused); err != nil {
		t.Fatalf("create monitor: %v", err)
	}

	n, err := store.CountActiveMonitors(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("want 1 active monitor, got %d", n)
	}
}
