package engine

import (
	"math"
	"time"

	"github.com/breaktracker/backend/internal/models"
)

// Aggregate rolls one agent's assessed events and in-range shifts into a
// metrics row. Shifts outside [from, to] (fetched for overnight attribution)
// do not count toward scheduled hours.
func Aggregate(agent models.Agent, ns []Normalized, as []Assessment, shifts []models.Shift, durations models.AllowedDurations, from, to time.Time, loc *time.Location) (models.AgentMetricsRow, []IntegrityWarning) {
	row := models.AgentMetricsRow{
		AgentID:  agent.ID,
		Username: agent.Username,
		FullName: agent.FullName,
	}
	var warnings []IntegrityWarning

	fromKey := dateKey(from, loc)
	toKey := dateKey(to, loc)
	var scheduledMin float64
	for _, s := range shifts {
		key := dateKey(s.Date, loc)
		if key < fromKey || key > toKey {
			continue
		}
		minutes, err := s.DurationMinutes(loc)
		if err != nil {
			warnings = append(warnings, IntegrityWarning{AgentID: agent.ID, Reason: err.Error()})
			continue
		}
		scheduledMin += minutes
	}
	row.ScheduledHours = scheduledMin / 60

	var scoreSum float64
	var scoreCount int
	for i, n := range ns {
		a := as[i]
		if a.Scored {
			scoreSum += a.Score
			scoreCount++
		}
		if a.Incident {
			row.IncidentCount++
		}
		if n.Event.Type.IsPunch() {
			continue
		}

		row.TotalBreaks++
		if !n.Active {
			row.TotalBreakMinutes += n.Minutes
		}
		if a.Exceeding {
			row.ExceedingCount++
			row.ExceedingMinutes += math.Max(0, n.Minutes-float64(durations.Allowed(n.Event.Type)))
		}
		switch n.Event.Type {
		case models.BreakEmergency:
			row.EmergencyCount++
		case models.BreakLunch:
			row.LunchCount++
		case models.BreakCoaching, models.BreakGroupCoaching:
			row.CoachingCount++
		case models.BreakOvertime:
			row.OvertimeCount++
		case models.BreakCompensation:
			row.CompensationCount++
		}
	}

	if scheduledMin > 0 {
		row.Utilization = math.Max(0, (scheduledMin-row.TotalBreakMinutes)/scheduledMin*100)
	}
	if scoreCount > 0 {
		adherence := scoreSum / float64(scoreCount) * 100
		row.Adherence = &adherence
	}
	if row.TotalBreaks > 0 {
		conformance := math.Max(0, float64(row.TotalBreaks-row.ExceedingCount-row.IncidentCount)/float64(row.TotalBreaks)*100)
		row.Conformance = &conformance
	}
	return row, warnings
}

// Summarize builds the fleet summary: arithmetic means over the defined
// per-agent percentages, straight sums for the counters.
func Summarize(rows []models.AgentMetricsRow) models.FleetSummary {
	summary := models.FleetSummary{Agents: len(rows)}
	if len(rows) == 0 {
		return summary
	}

	var utilSum, adhSum, confSum float64
	var adhCount, confCount int
	for _, r := range rows {
		utilSum += r.Utilization
		if r.Adherence != nil {
			adhSum += *r.Adherence
			adhCount++
		}
		if r.Conformance != nil {
			confSum += *r.Conformance
			confCount++
		}
		summary.TotalBreaks += r.TotalBreaks
		summary.TotalBreakMinutes += r.TotalBreakMinutes
		summary.TotalExceedingMin += r.ExceedingMinutes
		summary.TotalIncidents += r.IncidentCount
		summary.TotalEmergencies += r.EmergencyCount
	}

	summary.AvgUtilization = utilSum / float64(len(rows))
	if adhCount > 0 {
		avg := adhSum / float64(adhCount)
		summary.AvgAdherence = &avg
	}
	if confCount > 0 {
		avg := confSum / float64(confCount)
		summary.AvgConformance = &avg
	}
	return summary
}
