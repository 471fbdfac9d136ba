package engine

import (
	"testing"
	"time"

	"github.com/breaktracker/backend/internal/models"
)

var testAgent = models.Agent{ID: "a1", Username: "agent1", FullName: "Agent One"}

func computeTestRow(t *testing.T, events []models.BreakEvent, shifts []models.Shift, now time.Time, from, to time.Time) (models.AgentMetricsRow, []IntegrityWarning) {
	t.Helper()
	durations := models.DefaultAllowedDurations()
	opts := DefaultOptions()
	ns, warnings := NormalizeEvents(events, shifts, now, time.UTC, opts)
	as := AssessAll(ns, durations, opts, time.UTC)
	row, aggWarnings := Aggregate(testAgent, ns, as, shifts, durations, from, to, time.UTC)
	return row, append(warnings, aggWarnings...)
}

func TestAggregateEmptyAgent(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)

	row, _ := computeTestRow(t, nil, nil, to, from, to)
	if row.Utilization != 0 {
		t.Fatalf("expected utilization 0 with no scheduled minutes, got %v", row.Utilization)
	}
	if row.Adherence != nil {
		t.Fatalf("expected undefined adherence with no scoreable events, got %v", *row.Adherence)
	}
	if row.Conformance != nil {
		t.Fatalf("expected undefined conformance with no breaks, got %v", *row.Conformance)
	}
}

func TestAggregateSingleDay(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	shifts := []models.Shift{
		{ID: "s1", AgentID: "a1", Date: day, StartTime: "09:00", EndTime: "17:00"},
	}
	events := []models.BreakEvent{
		{ID: "b1", AgentID: "a1", Type: models.BreakShort, StartTime: tp(day.Add(11 * time.Hour)), EndTime: tp(day.Add(11*time.Hour + 10*time.Minute))},
		{ID: "b2", AgentID: "a1", Type: models.BreakShort, StartTime: tp(day.Add(15 * time.Hour)), EndTime: tp(day.Add(15*time.Hour + 25*time.Minute))},
	}
	now := day.Add(20 * time.Hour)

	row, warnings := computeTestRow(t, events, shifts, now, day, day)
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", warnings)
	}
	if row.ScheduledHours != 8 {
		t.Fatalf("expected 8 scheduled hours, got %v", row.ScheduledHours)
	}
	if row.TotalBreaks != 2 || row.TotalBreakMinutes != 35 {
		t.Fatalf("expected 2 breaks / 35 minutes, got %d / %v", row.TotalBreaks, row.TotalBreakMinutes)
	}
	if row.ExceedingCount != 1 || !almost(row.ExceedingMinutes, 10) {
		t.Fatalf("expected 1 exceeding break of 10 minutes, got %d / %v", row.ExceedingCount, row.ExceedingMinutes)
	}
	if !almost(row.Utilization, (480-35)/480.0*100) {
		t.Fatalf("unexpected utilization %v", row.Utilization)
	}
	wantAdherence := (1.0 + (1 - 10.0/15.0)) / 2 * 100
	if row.Adherence == nil || !almost(*row.Adherence, wantAdherence) {
		t.Fatalf("expected adherence %v, got %v", wantAdherence, row.Adherence)
	}
	if row.Conformance == nil || !almost(*row.Conformance, 50) {
		t.Fatalf("expected conformance 50, got %v", row.Conformance)
	}
}

func TestAggregateOvernightScheduledHours(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	shifts := []models.Shift{
		{ID: "s1", AgentID: "a1", Date: day, StartTime: "22:00", EndTime: "06:00"},
	}

	row, _ := computeTestRow(t, nil, shifts, day.AddDate(0, 0, 2), day, day)
	if row.ScheduledHours != 8 {
		t.Fatalf("expected 8 scheduled hours for the 22:00-06:00 shift, got %v", row.ScheduledHours)
	}
}

func TestAggregateIgnoresOutOfRangeShifts(t *testing.T) {
	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	shifts := []models.Shift{
		// Fetched for overnight attribution only; not in [from, to].
		{ID: "s0", AgentID: "a1", Date: from.AddDate(0, 0, -1), StartTime: "22:00", EndTime: "06:00"},
		{ID: "s1", AgentID: "a1", Date: from, StartTime: "09:00", EndTime: "17:00"},
	}

	row, _ := computeTestRow(t, nil, shifts, from.AddDate(0, 0, 2), from, from)
	if row.ScheduledHours != 8 {
		t.Fatalf("expected only the in-range shift counted, got %v hours", row.ScheduledHours)
	}
}

func TestAggregateUtilizationFlooredAtZero(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	shifts := []models.Shift{
		{ID: "s1", AgentID: "a1", Date: day, StartTime: "09:00", EndTime: "10:00"},
	}
	events := []models.BreakEvent{
		{ID: "b1", AgentID: "a1", Type: models.BreakMeeting, StartTime: tp(day.Add(9 * time.Hour)), EndTime: tp(day.Add(11 * time.Hour))},
	}

	row, _ := computeTestRow(t, events, shifts, day.Add(20*time.Hour), day, day)
	if row.Utilization != 0 {
		t.Fatalf("expected utilization floored at 0, got %v", row.Utilization)
	}
}

func TestAggregateActiveBreakExcludedFromMinutes(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	events := []models.BreakEvent{
		{ID: "open", AgentID: "a1", Type: models.BreakShort, StartTime: tp(day.Add(10 * time.Hour))},
	}
	now := day.Add(10*time.Hour + 20*time.Minute)

	row, _ := computeTestRow(t, events, nil, now, day, day)
	if row.TotalBreaks != 1 {
		t.Fatalf("expected the open break counted, got %d", row.TotalBreaks)
	}
	if row.TotalBreakMinutes != 0 {
		t.Fatalf("expected open break excluded from break minutes, got %v", row.TotalBreakMinutes)
	}
	if row.IncidentCount != 1 {
		t.Fatalf("expected overdue incident for the open break, got %d", row.IncidentCount)
	}
	if row.Adherence == nil {
		t.Fatalf("expected provisional adherence for the open break")
	}
}

func TestAggregatePerTypeCounts(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, bt models.BreakType, hour int) models.BreakEvent {
		return models.BreakEvent{ID: id, AgentID: "a1", Type: bt, StartTime: tp(day.Add(time.Duration(hour) * time.Hour)), EndTime: tp(day.Add(time.Duration(hour)*time.Hour + 5*time.Minute))}
	}
	events := []models.BreakEvent{
		mk("b1", models.BreakEmergency, 9),
		mk("b2", models.BreakLunch, 10),
		mk("b3", models.BreakCoaching, 11),
		mk("b4", models.BreakGroupCoaching, 12),
		mk("b5", models.BreakOvertime, 13),
		mk("b6", models.BreakCompensation, 14),
	}

	row, _ := computeTestRow(t, events, nil, day.Add(20*time.Hour), day, day)
	if row.EmergencyCount != 1 || row.LunchCount != 1 || row.OvertimeCount != 1 || row.CompensationCount != 1 {
		t.Fatalf("unexpected per-type counts: %+v", row)
	}
	if row.CoachingCount != 2 {
		t.Fatalf("expected both coaching variants tallied together, got %d", row.CoachingCount)
	}
}

func TestSummarizeMeansAndSums(t *testing.T) {
	adh := 80.0
	conf := 90.0
	rows := []models.AgentMetricsRow{
		{AgentID: "a1", Utilization: 50, Adherence: &adh, Conformance: &conf, TotalBreaks: 2, TotalBreakMinutes: 30, ExceedingMinutes: 5, IncidentCount: 1, EmergencyCount: 1},
		{AgentID: "a2", Utilization: 100, TotalBreaks: 1, TotalBreakMinutes: 10},
	}

	s := Summarize(rows)
	if s.Agents != 2 {
		t.Fatalf("expected 2 agents, got %d", s.Agents)
	}
	if !almost(s.AvgUtilization, 75) {
		t.Fatalf("expected fleet utilization to equal the mean of the rows, got %v", s.AvgUtilization)
	}
	if s.AvgAdherence == nil || !almost(*s.AvgAdherence, 80) {
		t.Fatalf("expected adherence mean over defined rows only, got %v", s.AvgAdherence)
	}
	if s.TotalBreaks != 3 || s.TotalBreakMinutes != 40 || s.TotalExceedingMin != 5 || s.TotalIncidents != 1 || s.TotalEmergencies != 1 {
		t.Fatalf("unexpected sums: %+v", s)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.Agents != 0 || s.AvgUtilization != 0 || s.AvgAdherence != nil || s.AvgConformance != nil {
		t.Fatalf("expected zero summary, got %+v", s)
	}
}
