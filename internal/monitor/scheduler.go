package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"upmon/internal/models"
	"upmon/internal/notify"
	"upmon/internal/storage"
)

// Scheduler wakes on a fixed tick, selects monitors whose interval has
// elapsed, and runs their checks concurrently. All of one cycle's check
// logs and status mutations are committed as a single batch; a cycle
// always awaits full completion before the next selection runs, so a
// monitor is never checked twice concurrently.
type Scheduler struct {
	store       storage.Store
	checker     *Checker
	alerter     *notify.Alerter
	tick        time.Duration
	minInterval time.Duration
	maxParallel int

	// now is injectable so interval and maintenance logic can be tested
	// without real timers.
	now func() time.Time

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewScheduler(store storage.Store, checker *Checker, alerter *notify.Alerter, tick, minInterval time.Duration, maxParallel int) *Scheduler {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Scheduler{
		store:       store,
		checker:     checker,
		alerter:     alerter,
		tick:        tick,
		minInterval: minInterval,
		maxParallel: maxParallel,
		now:         time.Now,
	}
}

// Start launches the tick loop. The first cycle runs immediately.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		slog.Info("scheduler started", "tick", s.tick.String())

		s.RunCycle(ctx)

		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("scheduler stopped")
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
}

// Stop cancels the loop's wait and waits for the current cycle to
// finish. In-flight probes are bounded by their own timeouts.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

type cycleResult struct {
	log    models.CheckLog
	update models.StatusUpdate
	event  *notify.Event
}

// RunCycle executes one full selection-check-persist-notify pass. Any
// cycle-level error is logged and the cycle's writes are discarded; the
// loop keeps ticking.
func (s *Scheduler) RunCycle(ctx context.Context) {
	monitors, err := s.store.LoadActiveMonitors(ctx)
	if err != nil {
		slog.Error("failed to load monitors, skipping cycle", "error", err)
		return
	}

	now := s.now().UTC()
	var due []models.Monitor
	for _, m := range monitors {
		if !s.isDue(m, now) {
			continue
		}
		if InMaintenance(m.MaintenanceWindows, now) {
			slog.Debug("monitor in maintenance, skipping", "monitor_id", m.ID)
			continue
		}
		due = append(due, m)
	}
	if len(due) == 0 {
		slog.Debug("no monitors due")
		return
	}

	results := make([]cycleResult, len(due))
	sem := make(chan struct{}, s.maxParallel)
	var wg sync.WaitGroup
	for i := range due {
		wg.Add(1)
		go func(i int, m models.Monitor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			verdict := s.checker.Evaluate(ctx, m)
			checkedAt := s.now().UTC()

			results[i] = cycleResult{
				log: models.CheckLog{
					MonitorID:    m.ID,
					StatusCode:   verdict.StatusCode,
					ResponseTime: verdict.ResponseTime,
					IsUp:         verdict.IsUp,
					ErrorMessage: verdict.LogMessage(),
					CheckedAt:    checkedAt,
				},
				update: models.StatusUpdate{
					MonitorID: m.ID,
					IsUp:      verdict.IsUp,
					CheckedAt: checkedAt,
				},
			}

			// Transitions only fire once a previous status is known.
			if m.LastStatus != nil && *m.LastStatus != verdict.IsUp {
				slog.Info("monitor status changed",
					"monitor_id", m.ID, "name", m.Name, "was_up", *m.LastStatus, "is_up", verdict.IsUp)
				results[i].event = &notify.Event{
					Monitor:   m,
					WasUp:     *m.LastStatus,
					IsUp:      verdict.IsUp,
					Reason:    verdict.ErrorMessage,
					Warnings:  verdict.Warnings,
					CheckedAt: checkedAt,
				}
			}
		}(i, due[i])
	}
	wg.Wait()

	logs := make([]models.CheckLog, len(results))
	updates := make([]models.StatusUpdate, len(results))
	for i, r := range results {
		logs[i] = r.log
		updates[i] = r.update
	}
	if err := s.store.SaveCycleResults(ctx, logs, updates); err != nil {
		slog.Error("failed to persist cycle results, discarding", "error", err, "checked", len(due))
		return
	}

	if s.alerter != nil {
		for _, r := range results {
			if r.event != nil {
				s.alerter.StatusChanged(ctx, *r.event)
			}
		}
	}

	slog.Info("cycle complete", "checked", len(due), "total_active", len(monitors))
}

// isDue reports whether the monitor's interval has elapsed. A monitor
// never checked before is always due. The effective interval is clamped
// to the configured floor, so a too-small stored interval can never
// schedule faster than the floor allows.
func (s *Scheduler) isDue(m models.Monitor, now time.Time) bool {
	if m.LastCheckedAt == nil {
		return true
	}
	interval := time.Duration(m.Interval) * time.Second
	if interval < s.minInterval {
		interval = s.minInterval
	}
	return now.Sub(m.LastCheckedAt.UTC()) >= interval
}
