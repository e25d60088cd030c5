package coaching

// scheduler.go sends the weekly team email in the background.
//
// The job wakes every Interval. On SendDay it checks whether the previous
// week's report has already gone out and, if not, generates and sends it.
// Failures are logged and retried on the next tick; they never stop the
// scheduler.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JonMunkholm/salesops/internal/core"
)

// ReportSchedule configures the weekly team email job.
type ReportSchedule struct {
	Interval   time.Duration // How often to check (default: 1h)
	SendDay    time.Weekday  // Day the previous week's report goes out
	Recipients []string
}

// StartReportScheduler runs the weekly report job immediately, then every
// Interval, until ctx is cancelled.
func (c *Coach) StartReportScheduler(ctx context.Context, cfg ReportSchedule) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	slog.Info("report scheduler started",
		"interval", cfg.Interval.String(),
		"send_day", cfg.SendDay.String(),
		"recipients", len(cfg.Recipients),
	)

	c.runReportJob(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("report scheduler stopped")
			return
		case <-ticker.C:
			c.runReportJob(ctx, cfg)
		}
	}
}

// runReportJob sends last week's report if today is the send day and it
// has not been sent yet. It reports whether an email went out.
func (c *Coach) runReportJob(ctx context.Context, cfg ReportSchedule) bool {
	now := c.now().UTC()
	if now.Weekday() != cfg.SendDay {
		return false
	}

	week := WeekStart(now).AddDate(0, 0, -7)
	logger := slog.With("week_start", week.Format(core.DateLayout))

	sent, err := c.store.HasTeamReport(ctx, week)
	if err != nil {
		logger.Error("report check failed", "error", err)
		return false
	}
	if sent {
		logger.Debug("team report already sent")
		return false
	}

	start := time.Now()
	report, err := c.SendTeamEmail(ctx, week, cfg.Recipients)
	if errors.Is(err, ErrNoActivity) {
		logger.Info("no activity, team report skipped")
		return false
	}
	if err != nil {
		logger.Error("team report failed", "error", err)
		return false
	}

	logger.Info("team report job completed",
		"report_id", report.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return true
}
