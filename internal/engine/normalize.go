package engine

import (
	"sort"
	"time"

	"github.com/breaktracker/backend/internal/models"
)

// Normalized is one break event resolved against the agent's shift schedule.
type Normalized struct {
	Event   models.BreakEvent
	Shift   *models.Shift // nil when the event falls in an unscheduled period
	Period  string        // owning shift date, or the event's calendar date when unscheduled
	Minutes float64       // actual duration; elapsed against now while active
	Active  bool
}

// NormalizeEvents orders events by start time, attributes each to its owning
// shift period and computes actual minutes against now. An event that starts
// before the end of the previous day's overnight shift belongs to that
// shift, not to the shift on its own calendar date; a punch_out within the
// punch scoring window past that end still belongs to it, so a late punch
// scores against the boundary instead of vanishing. Events with a missing
// start timestamp are excluded and surfaced as integrity warnings.
func NormalizeEvents(events []models.BreakEvent, shifts []models.Shift, now time.Time, loc *time.Location, opts Options) ([]Normalized, []IntegrityWarning) {
	var warnings []IntegrityWarning

	byDate := make(map[string]*models.Shift, len(shifts))
	for i := range shifts {
		s := shifts[i]
		byDate[dateKey(s.Date, loc)] = &shifts[i]
	}

	out := make([]Normalized, 0, len(events))
	for _, ev := range events {
		if ev.StartTime == nil {
			warnings = append(warnings, IntegrityWarning{
				AgentID: ev.AgentID,
				EventID: ev.ID,
				Reason:  "missing start timestamp",
			})
			continue
		}
		start := ev.StartTime.In(loc)

		n := Normalized{Event: ev}
		n.Shift, n.Period = resolvePeriod(start, byDate, loc, opts, &warnings, ev)

		if ev.Type.IsPunch() {
			out = append(out, n)
			continue
		}
		if ev.EndTime != nil {
			n.Minutes = ev.EndTime.Sub(start).Minutes()
		} else {
			n.Active = true
			n.Minutes = now.Sub(start).Minutes()
		}
		if n.Minutes < 0 {
			warnings = append(warnings, IntegrityWarning{
				AgentID: ev.AgentID,
				EventID: ev.ID,
				Reason:  "negative duration",
			})
			continue
		}
		out = append(out, n)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Event.StartTime.Before(*out[j].Event.StartTime)
	})
	return out, warnings
}

func resolvePeriod(start time.Time, byDate map[string]*models.Shift, loc *time.Location, opts Options, warnings *[]IntegrityWarning, ev models.BreakEvent) (*models.Shift, string) {
	day := dateKey(start, loc)

	if prev, ok := byDate[dateKey(start.AddDate(0, 0, -1), loc)]; ok {
		pStart, pEnd, err := prev.Bounds(loc)
		if err != nil {
			*warnings = append(*warnings, IntegrityWarning{
				AgentID: ev.AgentID,
				EventID: ev.ID,
				Reason:  err.Error(),
			})
		} else if dateKey(pEnd, loc) != dateKey(pStart, loc) {
			claimUntil := pEnd
			if ev.Type == models.PunchOut {
				claimUntil = pEnd.Add(punchWindow(opts))
			}
			if start.Before(claimUntil) {
				return prev, dateKey(prev.Date, loc)
			}
		}
	}

	if s, ok := byDate[day]; ok {
		if _, _, err := s.Bounds(loc); err != nil {
			*warnings = append(*warnings, IntegrityWarning{
				AgentID: ev.AgentID,
				EventID: ev.ID,
				Reason:  err.Error(),
			})
			return nil, day
		}
		return s, dateKey(s.Date, loc)
	}
	return nil, day
}

// punchWindow is how far past a shift boundary a punch can still score:
// the grace period plus the linear decay to zero.
func punchWindow(opts Options) time.Duration {
	return time.Duration((opts.PunchGraceMin + opts.PunchDecayMin) * float64(time.Minute))
}

func dateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
