// Package engine computes utilization, adherence and conformance metrics
// from raw break and shift records. It is stateless and safe for concurrent
// use; every computation reads from one store snapshot and one captured
// evaluation instant.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/breaktracker/backend/internal/models"
)

// EventSource is the read interface the engine consumes. An empty agent id
// selects all agents. Implementations must serve all calls made within one
// computation from a single consistent snapshot.
type EventSource interface {
	FetchBreaks(ctx context.Context, agentID string, from, to time.Time) ([]models.BreakEvent, error)
	FetchShifts(ctx context.Context, agentID string, from, to time.Time) ([]models.Shift, error)
	ListAgents(ctx context.Context) ([]models.Agent, error)
	GetAgent(ctx context.Context, agentID string) (models.Agent, bool, error)
}

// SnapshotSource opens a consistent read snapshot for the duration of fn.
type SnapshotSource interface {
	ReadSnapshot(ctx context.Context, fn func(EventSource) error) error
}

type Engine struct {
	Source    SnapshotSource
	Durations models.AllowedDurations
	Opts      Options
	Loc       *time.Location
	Logger    zerolog.Logger
	Now       func() time.Time // nil means time.Now
}

func (e *Engine) clock() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) location() *time.Location {
	if e.Loc != nil {
		return e.Loc
	}
	return time.Local
}

// ComputeAgentMetrics computes one agent's row over [from, to], both
// inclusive calendar dates in the engine's location.
func (e *Engine) ComputeAgentMetrics(ctx context.Context, agentID string, from, to time.Time) (models.AgentMetricsRow, []IntegrityWarning, error) {
	if err := checkRange(from, to); err != nil {
		return models.AgentMetricsRow{}, nil, err
	}

	var row models.AgentMetricsRow
	var warnings []IntegrityWarning
	err := e.Source.ReadSnapshot(ctx, func(src EventSource) error {
		agent, ok, err := src.GetAgent(ctx, agentID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
		}

		events, shifts, err := e.fetchWindow(ctx, src, agentID, from, to)
		if err != nil {
			return err
		}
		row, warnings = e.computeRow(agent, events, shifts, from, to)
		return nil
	})
	if err != nil {
		return models.AgentMetricsRow{}, nil, err
	}
	e.logWarnings(warnings)
	return row, warnings, nil
}

// ComputeFleetMetrics computes every agent's row over [from, to] plus the
// fleet summary. Malformed records for one agent surface as warnings and
// never abort the other agents' rows. An empty roster yields an empty row
// set and a zero summary.
func (e *Engine) ComputeFleetMetrics(ctx context.Context, from, to time.Time) ([]models.AgentMetricsRow, models.FleetSummary, []IntegrityWarning, error) {
	if err := checkRange(from, to); err != nil {
		return nil, models.FleetSummary{}, nil, err
	}

	var rows []models.AgentMetricsRow
	var warnings []IntegrityWarning
	err := e.Source.ReadSnapshot(ctx, func(src EventSource) error {
		agents, err := src.ListAgents(ctx)
		if err != nil {
			return err
		}
		if len(agents) == 0 {
			rows = []models.AgentMetricsRow{}
			return nil
		}

		events, shifts, err := e.fetchWindow(ctx, src, "", from, to)
		if err != nil {
			return err
		}
		eventsByAgent := map[string][]models.BreakEvent{}
		for _, ev := range events {
			eventsByAgent[ev.AgentID] = append(eventsByAgent[ev.AgentID], ev)
		}
		shiftsByAgent := map[string][]models.Shift{}
		for _, s := range shifts {
			shiftsByAgent[s.AgentID] = append(shiftsByAgent[s.AgentID], s)
		}

		rows = make([]models.AgentMetricsRow, 0, len(agents))
		for _, agent := range agents {
			row, ws := e.computeRow(agent, eventsByAgent[agent.ID], shiftsByAgent[agent.ID], from, to)
			rows = append(rows, row)
			warnings = append(warnings, ws...)
		}
		return nil
	})
	if err != nil {
		return nil, models.FleetSummary{}, nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Username < rows[j].Username })
	e.logWarnings(warnings)
	return rows, Summarize(rows), warnings, nil
}

func (e *Engine) computeRow(agent models.Agent, events []models.BreakEvent, shifts []models.Shift, from, to time.Time) (models.AgentMetricsRow, []IntegrityWarning) {
	loc := e.location()
	now := e.clock()

	ns, warnings := NormalizeEvents(events, shifts, now, loc, e.Opts)

	// Events own the period of the shift that claims them, which can differ
	// from their calendar date around midnight. Keep only the ones whose
	// period falls inside the requested range.
	fromKey, toKey := dateKey(from, loc), dateKey(to, loc)
	kept := ns[:0]
	for _, n := range ns {
		if n.Period >= fromKey && n.Period <= toKey {
			kept = append(kept, n)
		}
	}
	ns = kept

	as := AssessAll(ns, e.Durations, e.Opts, loc)
	row, aggWarnings := Aggregate(agent, ns, as, shifts, e.Durations, from, to, loc)
	return row, append(warnings, aggWarnings...)
}

// fetchWindow reads breaks over the range's full days plus one extra day,
// and shifts from one day earlier, so overnight shifts can claim their
// after-midnight events. Out-of-range periods are filtered after
// attribution.
func (e *Engine) fetchWindow(ctx context.Context, src EventSource, agentID string, from, to time.Time) ([]models.BreakEvent, []models.Shift, error) {
	loc := e.location()
	windowFrom := startOfDay(from, loc)
	windowTo := startOfDay(to, loc).AddDate(0, 0, 2)

	events, err := src.FetchBreaks(ctx, agentID, windowFrom, windowTo)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch breaks: %w", err)
	}
	shifts, err := src.FetchShifts(ctx, agentID, startOfDay(from.AddDate(0, 0, -1), loc), startOfDay(to, loc))
	if err != nil {
		return nil, nil, fmt.Errorf("fetch shifts: %w", err)
	}
	return events, shifts, nil
}

func (e *Engine) logWarnings(warnings []IntegrityWarning) {
	for _, w := range warnings {
		e.Logger.Warn().
			Str("agent_id", w.AgentID).
			Str("event_id", w.EventID).
			Str("reason", w.Reason).
			Msg("malformed record excluded from metrics")
	}
}

func checkRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return fmt.Errorf("%w: %s..%s", ErrInvalidRange, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
