package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/breaktracker/backend/internal/models"
	"github.com/breaktracker/backend/internal/observability"
)

// BreakStore is the slice of the store the monitor needs.
type BreakStore interface {
	ListActiveBreaks(ctx context.Context) ([]models.BreakEvent, error)
	MarkOverdue(ctx context.Context, breakID string) (bool, error)
}

// Monitor periodically scans active breaks and flags the ones that have run
// past their allowed duration. Each break is flagged at most once.
type Monitor struct {
	Store     BreakStore
	Durations models.AllowedDurations
	Interval  time.Duration
	Logger    zerolog.Logger
	Now       func() time.Time // nil means time.Now
}

func (m *Monitor) clock() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Start runs the scan loop until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Logger.Info().Dur("interval", interval).Msg("overdue monitor started")
	for {
		select {
		case <-ctx.Done():
			m.Logger.Info().Msg("overdue monitor stopped")
			return
		case <-ticker.C:
			if _, err := m.Scan(ctx); err != nil {
				m.Logger.Error().Err(err).Msg("overdue scan failed")
			}
		}
	}
}

// Scan performs one pass over the active breaks and returns how many were
// newly flagged as overdue. One captured instant is used for the whole pass.
func (m *Monitor) Scan(ctx context.Context) (int, error) {
	scanStart := time.Now()
	now := m.clock()

	breaks, err := m.Store.ListActiveBreaks(ctx)
	if err != nil {
		return 0, err
	}
	observability.ActiveBreaks.Set(float64(len(breaks)))

	flagged := 0
	for _, b := range breaks {
		if b.StartTime == nil {
			m.Logger.Warn().Str("break_id", b.ID).Str("agent_id", b.AgentID).Msg("active break with missing start timestamp")
			observability.IntegrityWarningsTotal.Inc()
			continue
		}
		allowed := m.Durations.Allowed(b.Type)
		if allowed <= 0 {
			continue
		}
		if now.Sub(*b.StartTime).Minutes() <= float64(allowed) {
			continue
		}

		set, err := m.Store.MarkOverdue(ctx, b.ID)
		if err != nil {
			m.Logger.Error().Err(err).Str("break_id", b.ID).Msg("failed to flag overdue break")
			continue
		}
		if set {
			flagged++
			observability.OverdueFlaggedTotal.Inc()
			m.Logger.Warn().
				Str("break_id", b.ID).
				Str("agent_id", b.AgentID).
				Str("break_type", string(b.Type)).
				Int("allowed_minutes", allowed).
				Msg("break overdue")
		}
	}

	observability.MonitorScansTotal.Inc()
	observability.MonitorScanSeconds.Observe(time.Since(scanStart).Seconds())
	return flagged, nil
}
