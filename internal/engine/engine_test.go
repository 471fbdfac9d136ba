package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/breaktracker/backend/internal/models"
)

type fakeSource struct {
	agents []models.Agent
	breaks []models.BreakEvent
	shifts []models.Shift
}

func (f *fakeSource) ReadSnapshot(ctx context.Context, fn func(EventSource) error) error {
	return fn(f)
}

func (f *fakeSource) FetchBreaks(ctx context.Context, agentID string, from, to time.Time) ([]models.BreakEvent, error) {
	var out []models.BreakEvent
	for _, b := range f.breaks {
		if agentID != "" && b.AgentID != agentID {
			continue
		}
		if b.StartTime != nil && (b.StartTime.Before(from) || !b.StartTime.Before(to)) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeSource) FetchShifts(ctx context.Context, agentID string, from, to time.Time) ([]models.Shift, error) {
	var out []models.Shift
	for _, s := range f.shifts {
		if agentID != "" && s.AgentID != agentID {
			continue
		}
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSource) ListAgents(ctx context.Context) ([]models.Agent, error) {
	return f.agents, nil
}

func (f *fakeSource) GetAgent(ctx context.Context, agentID string) (models.Agent, bool, error) {
	for _, a := range f.agents {
		if a.ID == agentID {
			return a, true, nil
		}
	}
	return models.Agent{}, false, nil
}

func testEngine(src *fakeSource, now time.Time) *Engine {
	return &Engine{
		Source:    src,
		Durations: models.DefaultAllowedDurations(),
		Opts:      DefaultOptions(),
		Loc:       time.UTC,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return now },
	}
}

func TestComputeAgentMetrics(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		agents: []models.Agent{{ID: "a1", Username: "agent1", FullName: "Agent One"}},
		shifts: []models.Shift{{ID: "s1", AgentID: "a1", Date: day, StartTime: "09:00", EndTime: "17:00"}},
		breaks: []models.BreakEvent{
			{ID: "b1", AgentID: "a1", Type: models.BreakShort, StartTime: tp(day.Add(11 * time.Hour)), EndTime: tp(day.Add(11*time.Hour + 10*time.Minute))},
		},
	}
	eng := testEngine(src, day.Add(20*time.Hour))

	row, warnings, err := eng.ComputeAgentMetrics(context.Background(), "a1", day, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", warnings)
	}
	if row.Username != "agent1" || row.TotalBreaks != 1 || row.ScheduledHours != 8 {
		t.Fatalf("unexpected row %+v", row)
	}
	if row.Adherence == nil || !almost(*row.Adherence, 100) {
		t.Fatalf("expected adherence 100, got %v", row.Adherence)
	}
}

func TestComputeAgentMetricsUnknownAgent(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	eng := testEngine(&fakeSource{}, day)

	_, _, err := eng.ComputeAgentMetrics(context.Background(), "nope", day, day)
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestComputeAgentMetricsInvertedRange(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	eng := testEngine(&fakeSource{agents: []models.Agent{{ID: "a1"}}}, day)

	_, _, err := eng.ComputeAgentMetrics(context.Background(), "a1", day, day.AddDate(0, 0, -3))
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestComputeFleetMetricsPartialFailure(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		agents: []models.Agent{
			{ID: "a1", Username: "agent1"},
			{ID: "a2", Username: "agent2"},
			{ID: "a3", Username: "agent3"},
		},
		shifts: []models.Shift{
			{ID: "s1", AgentID: "a1", Date: day, StartTime: "09:00", EndTime: "17:00"},
			{ID: "s2", AgentID: "a2", Date: day, StartTime: "09:00", EndTime: "17:00"},
		},
		breaks: []models.BreakEvent{
			{ID: "b1", AgentID: "a1", Type: models.BreakShort, StartTime: tp(day.Add(11 * time.Hour)), EndTime: tp(day.Add(11*time.Hour + 10*time.Minute))},
			// Malformed: no start timestamp.
			{ID: "b2", AgentID: "a2", Type: models.BreakShort},
			{ID: "b3", AgentID: "a2", Type: models.BreakLunch, StartTime: tp(day.Add(13 * time.Hour)), EndTime: tp(day.Add(13*time.Hour + 30*time.Minute))},
		},
	}
	eng := testEngine(src, day.Add(20*time.Hour))

	rows, summary, warnings, err := eng.ComputeFleetMetrics(context.Background(), day, day)
	if err != nil {
		t.Fatalf("one malformed event must not fail the fleet report: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected a row for every agent, got %d", len(rows))
	}
	if len(warnings) != 1 || warnings[0].EventID != "b2" {
		t.Fatalf("expected one integrity warning for b2, got %+v", warnings)
	}
	for i, want := range []string{"agent1", "agent2", "agent3"} {
		if rows[i].Username != want {
			t.Fatalf("expected rows sorted by username, got %+v", rows)
		}
	}
	// a2's valid lunch still counted despite the malformed sibling event.
	if rows[1].TotalBreaks != 1 {
		t.Fatalf("expected a2's valid break counted, got %+v", rows[1])
	}

	mean := (rows[0].Utilization + rows[1].Utilization + rows[2].Utilization) / 3
	if !almost(summary.AvgUtilization, mean) {
		t.Fatalf("fleet utilization %v must equal the row mean %v", summary.AvgUtilization, mean)
	}
}

func TestComputeFleetMetricsEmptyRoster(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	eng := testEngine(&fakeSource{}, day)

	rows, summary, _, err := eng.ComputeFleetMetrics(context.Background(), day, day.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 || summary.Agents != 0 {
		t.Fatalf("expected empty rows and zero summary, got %d rows %+v", len(rows), summary)
	}
}

func TestComputeAgentMetricsOvernightLatePunchOut(t *testing.T) {
	// A punch_out 10 minutes after a 22:00-06:00 shift ends must score the
	// same as one 10 minutes after a day shift ends.
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		agents: []models.Agent{{ID: "a1", Username: "agent1"}},
		shifts: []models.Shift{{ID: "s1", AgentID: "a1", Date: day, StartTime: "22:00", EndTime: "06:00"}},
		breaks: []models.BreakEvent{
			{ID: "p1", AgentID: "a1", Type: models.PunchOut, StartTime: tp(day.AddDate(0, 0, 1).Add(6*time.Hour + 10*time.Minute))},
		},
	}
	eng := testEngine(src, day.AddDate(0, 0, 2))

	row, warnings, err := eng.ComputeAgentMetrics(context.Background(), "a1", day, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", warnings)
	}
	want := (1 - 5.0/15.0) * 100
	if row.Adherence == nil || !almost(*row.Adherence, want) {
		t.Fatalf("expected adherence %v for the late overnight punch_out, got %v", want, row.Adherence)
	}
}

func TestComputeFleetMetricsOvernightBreakWindow(t *testing.T) {
	// A break after midnight belongs to the previous day's overnight shift
	// even when that day is the last of the requested range.
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		agents: []models.Agent{{ID: "a1", Username: "agent1"}},
		shifts: []models.Shift{{ID: "s1", AgentID: "a1", Date: day, StartTime: "22:00", EndTime: "06:00"}},
		breaks: []models.BreakEvent{
			{ID: "b1", AgentID: "a1", Type: models.BreakShort, StartTime: tp(day.AddDate(0, 0, 1).Add(90 * time.Minute)), EndTime: tp(day.AddDate(0, 0, 1).Add(100 * time.Minute))},
		},
	}
	eng := testEngine(src, day.AddDate(0, 0, 2))

	rows, _, _, err := eng.ComputeFleetMetrics(context.Background(), day, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0].TotalBreaks != 1 {
		t.Fatalf("expected the after-midnight break inside the window, got %+v", rows[0])
	}
	if rows[0].ScheduledHours != 8 {
		t.Fatalf("expected 8 scheduled hours, got %v", rows[0].ScheduledHours)
	}
}
