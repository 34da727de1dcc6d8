package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"upmon/internal/storage"
)

// Alerter turns detected status transitions into outbound deliveries:
// always a push attempt, plus a quota-bounded email. Delivery failures
// are logged and never escalate; the next flip retries naturally.
type Alerter struct {
	store storage.Store
	push  PushSender
	email EmailSender

	now func() time.Time
}

func NewAlerter(store storage.Store, push PushSender, email EmailSender) *Alerter {
	return &Alerter{
		store: store,
		push:  push,
		email: email,
		now:   time.Now,
	}
}

// StatusChanged dispatches notifications for one transition. The caller
// has already established that the previous status was known and differs
// from the new one.
func (a *Alerter) StatusChanged(ctx context.Context, ev Event) {
	owner := ev.Monitor.Owner
	if owner == nil {
		slog.Warn("monitor has no owner, skipping notification", "monitor_id", ev.Monitor.ID)
		return
	}

	if owner.IsNotificationEnabled && a.push != nil {
		if err := a.push.SendMessage(ctx, owner.TelegramID, formatPushMessage(ev)); err != nil {
			slog.Error("push notification failed",
				"monitor_id", ev.Monitor.ID, "telegram_id", owner.TelegramID, "error", err)
		} else {
			slog.Info("push notification sent", "monitor_id", ev.Monitor.ID, "telegram_id", owner.TelegramID)
		}
	}

	if !owner.IsEmailNotificationEnabled || owner.Email == "" || a.email == nil {
		return
	}

	// The owner attached to the event is a per-monitor snapshot from the
	// start of the cycle. The quota must be checked against the persisted
	// counter, or several flips for the same user in one cycle would each
	// see the stale pre-cycle count.
	fresh, err := a.store.GetUserByTelegramID(ctx, owner.TelegramID)
	if err != nil {
		slog.Error("failed to reload user for email quota", "user_id", owner.ID, "error", err)
		return
	}

	now := a.now().UTC()
	count := fresh.EmailNotificationCount
	if fresh.LastEmailNotificationDate != nil && onPriorDay(*fresh.LastEmailNotificationDate, now) {
		count = 0
	}

	limit := fresh.EmailLimit
	if limit <= 0 {
		limit = 4
	}
	if count >= limit {
		slog.Info("email limit reached, skipping",
			"monitor_id", ev.Monitor.ID, "email", fresh.Email, "count", count, "limit", limit)
		return
	}

	subject := fmt.Sprintf("Monitor Alert: %s is %s -> %s",
		ev.Monitor.Name, statusWord(ev.WasUp), statusWord(ev.IsUp))
	if err := a.email.SendEmail(fresh.Email, subject, formatEmailBody(ev, limit)); err != nil {
		slog.Error("email notification failed", "monitor_id", ev.Monitor.ID, "email", fresh.Email, "error", err)
		return
	}

	count++
	if err := a.store.UpdateUserEmailQuota(ctx, fresh.ID, count, now); err != nil {
		slog.Error("failed to persist email quota", "user_id", fresh.ID, "error", err)
		return
	}
	slog.Info("email notification sent", "monitor_id", ev.Monitor.ID, "email", fresh.Email, "count_today", count)
}

// onPriorDay reports whether last falls on a UTC calendar day strictly
// before now's.
func onPriorDay(last, now time.Time) bool {
	ly, lm, ld := last.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	return time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC).Before(time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC))
}

func statusWord(up bool) string {
	if up {
		return "UP"
	}
	return "DOWN"
}

func formatPushMessage(ev Event) string {
	emoji := "🚨"
	icon := "🔴"
	if ev.IsUp {
		emoji = "✅"
		icon = "🟢"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>Monitor Status Change</b>\n\n", emoji)
	fmt.Fprintf(&b, "Name: %s\n", ev.Monitor.Name)
	fmt.Fprintf(&b, "URL: <code>%s</code>\n", ev.Monitor.URL)
	fmt.Fprintf(&b, "Status: %s -> %s %s\n", statusWord(ev.WasUp), statusWord(ev.IsUp), icon)
	if ev.Reason != "" && !ev.IsUp {
		fmt.Fprintf(&b, "Error: %s\n", ev.Reason)
	}
	for _, w := range ev.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}
	fmt.Fprintf(&b, "Time: %s", ev.CheckedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	return b.String()
}

func formatEmailBody(ev Event, limit int) string {
	bgColor, textColor := "#f8d7da", "#721c24"
	if ev.IsUp {
		bgColor, textColor = "#d4edda", "#155724"
	}

	var b strings.Builder
	b.WriteString(`<div style="font-family: Arial, sans-serif; padding: 20px; border: 1px solid #ddd; border-radius: 5px;">`)
	fmt.Fprintf(&b, `<h2 style="color: %s;">Monitor Status Change</h2>`, textColor)
	fmt.Fprintf(&b, `<p><strong>Monitor:</strong> %s</p>`, ev.Monitor.Name)
	fmt.Fprintf(&b, `<p><strong>URL:</strong> <a href="%s">%s</a></p>`, ev.Monitor.URL, ev.Monitor.URL)
	fmt.Fprintf(&b, `<p style="background-color: %s; padding: 10px; border-radius: 3px; color: %s;"><strong>Status:</strong> %s -> %s</p>`,
		bgColor, textColor, statusWord(ev.WasUp), statusWord(ev.IsUp))
	if ev.Reason != "" && !ev.IsUp {
		fmt.Fprintf(&b, `<p><strong>Error:</strong> %s</p>`, ev.Reason)
	}
	for _, w := range ev.Warnings {
		fmt.Fprintf(&b, `<p><strong>Warning:</strong> %s</p>`, w)
	}
	fmt.Fprintf(&b, `<p>Time: %s</p>`, ev.CheckedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	b.WriteString(`<hr><p style="font-size: 12px; color: #888;">You are receiving this because you enabled email notifications. (Limit: `)
	fmt.Fprintf(&b, `%d/day)</p></div>`, limit)
	return b.String()
}
