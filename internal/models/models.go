package models

import (
	"fmt"
	"time"
)

type BreakType string

const (
	BreakShort             BreakType = "short"
	BreakLunch             BreakType = "lunch"
	BreakMeeting           BreakType = "meeting"
	BreakHuddle            BreakType = "huddle"
	BreakEmergency         BreakType = "emergency"
	BreakCoaching          BreakType = "coaching"
	BreakGroupCoaching     BreakType = "group_coaching"
	BreakMeetingTeamLeader BreakType = "meeting_team_leader"
	BreakOvertime          BreakType = "overtime"
	BreakCompensation      BreakType = "compensation"
	PunchIn                BreakType = "punch_in"
	PunchOut               BreakType = "punch_out"
)

var breakTypes = map[BreakType]bool{
	BreakShort:             true,
	BreakLunch:             true,
	BreakMeeting:           true,
	BreakHuddle:            true,
	BreakEmergency:         true,
	BreakCoaching:          true,
	BreakGroupCoaching:     true,
	BreakMeetingTeamLeader: true,
	BreakOvertime:          true,
	BreakCompensation:      true,
	PunchIn:                true,
	PunchOut:               true,
}

func (t BreakType) Valid() bool {
	return breakTypes[t]
}

// IsPunch reports whether the type is an instantaneous punch event rather
// than a duration-bound break.
func (t BreakType) IsPunch() bool {
	return t == PunchIn || t == PunchOut
}

// AllowedDurations maps a break type to its allowed minutes. Zero minutes
// means the type has no duration window and is scored against the shift
// boundary instead (punches only).
type AllowedDurations map[BreakType]int

func DefaultAllowedDurations() AllowedDurations {
	return AllowedDurations{
		BreakShort:             15,
		BreakHuddle:            15,
		BreakEmergency:         10,
		BreakLunch:             30,
		BreakMeeting:           60,
		BreakMeetingTeamLeader: 30,
		BreakCoaching:          30,
		BreakGroupCoaching:     45,
		BreakOvertime:          60,
		BreakCompensation:      60,
		PunchIn:                0,
		PunchOut:               0,
	}
}

func (d AllowedDurations) Allowed(t BreakType) int {
	return d[t]
}

type Agent struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

type BreakEvent struct {
	ID            string     `json:"id"`
	AgentID       string     `json:"agent_id"`
	Type          BreakType  `json:"break_type"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	DurationMin   *int       `json:"duration_minutes,omitempty"`
	Overdue       bool       `json:"is_overdue"`
	StartEvidence *string    `json:"start_evidence,omitempty"`
	EndEvidence   *string    `json:"end_evidence,omitempty"`
	Note          *string    `json:"note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Active reports whether the break is still open. Punches are never active.
func (b BreakEvent) Active() bool {
	return !b.Type.IsPunch() && b.EndTime == nil
}

// Shift is one scheduled working window for an agent on a calendar date.
// Times of day are stored as "HH:MM"; an end at or before the start means
// the shift runs overnight and ends on the following day.
type Shift struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Date      time.Time `json:"shift_date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

// Bounds resolves the shift to concrete start/end instants in loc.
func (s Shift) Bounds(loc *time.Location) (time.Time, time.Time, error) {
	start, err := atTimeOfDay(s.Date, s.StartTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("shift %s start: %w", s.ID, err)
	}
	end, err := atTimeOfDay(s.Date, s.EndTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("shift %s end: %w", s.ID, err)
	}
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return start, end, nil
}

func (s Shift) DurationMinutes(loc *time.Location) (float64, error) {
	start, end, err := s.Bounds(loc)
	if err != nil {
		return 0, err
	}
	return end.Sub(start).Minutes(), nil
}

func atTimeOfDay(date time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time of day %q: %w", hhmm, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// AgentMetricsRow is the per-agent report row for one date range. Adherence
// and conformance are nil when no scoreable events / no breaks exist in the
// range, which is distinct from a true zero score.
type AgentMetricsRow struct {
	AgentID           string   `json:"agent_id"`
	Username          string   `json:"username"`
	FullName          string   `json:"full_name"`
	ScheduledHours    float64  `json:"scheduled_hours"`
	TotalBreaks       int      `json:"total_breaks"`
	TotalBreakMinutes float64  `json:"total_break_minutes"`
	ExceedingMinutes  float64  `json:"exceeding_break_minutes"`
	ExceedingCount    int      `json:"exceeding_count"`
	IncidentCount     int      `json:"incident_count"`
	EmergencyCount    int      `json:"emergency_count"`
	LunchCount        int      `json:"lunch_count"`
	CoachingCount     int      `json:"coaching_count"`
	OvertimeCount     int      `json:"overtime_count"`
	CompensationCount int      `json:"compensation_count"`
	Utilization       float64  `json:"utilization"`
	Adherence         *float64 `json:"adherence"`
	Conformance       *float64 `json:"conformance"`
}

// FleetSummary aggregates agent rows: averages over the defined per-agent
// percentages, straight sums for the counters.
type FleetSummary struct {
	Agents            int      `json:"agents"`
	AvgUtilization    float64  `json:"avg_utilization"`
	AvgAdherence      *float64 `json:"avg_adherence"`
	AvgConformance    *float64 `json:"avg_conformance"`
	TotalBreaks       int      `json:"total_breaks"`
	TotalBreakMinutes float64  `json:"total_break_minutes"`
	TotalExceedingMin float64  `json:"total_exceeding_minutes"`
	TotalIncidents    int      `json:"total_incidents"`
	TotalEmergencies  int      `json:"total_emergencies"`
}
