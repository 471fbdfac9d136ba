package engine

import (
	"math"
	"time"

	"github.com/breaktracker/backend/internal/models"
)

// Options tunes the adherence scoring rules.
type Options struct {
	PunchGraceMin  float64 // punch deviation that still scores 1.0
	PunchDecayMin  float64 // window over which the punch score decays to 0
	EmergencyLimit int     // emergencies allowed per shift period before flagging
}

func DefaultOptions() Options {
	return Options{PunchGraceMin: 5, PunchDecayMin: 15, EmergencyLimit: 1}
}

// Assessment is the adherence verdict for one normalized event.
type Assessment struct {
	Score     float64
	Scored    bool // false when the event contributes nothing to the average
	Exceeding bool // closed break that ran past its allowed duration
	Overdue   bool // still open past its allowed duration at evaluation time
	Incident  bool
}

// Assess scores one event. Duration-bound breaks score 1.0 up to their
// allowed duration, then decay linearly to 0 at twice the allowed duration.
// Punches score against the shift boundary with a grace window; a punch
// with no shift on file contributes nothing.
func Assess(n Normalized, allowed int, opts Options, loc *time.Location) Assessment {
	if n.Event.Type.IsPunch() {
		return assessPunch(n, opts, loc)
	}
	if allowed <= 0 {
		// No duration window configured for a non-punch type; nothing to
		// score it against.
		return Assessment{}
	}

	actual := n.Minutes
	a := Assessment{
		Scored:    true,
		Score:     clamp01(2 - actual/float64(allowed)),
		Exceeding: !n.Active && actual > float64(allowed),
	}
	if n.Active && actual > float64(allowed) {
		a.Overdue = true
		a.Incident = true
	}
	return a
}

func assessPunch(n Normalized, opts Options, loc *time.Location) Assessment {
	if n.Shift == nil {
		return Assessment{}
	}
	shiftStart, shiftEnd, err := n.Shift.Bounds(loc)
	if err != nil {
		return Assessment{}
	}
	boundary := shiftStart
	if n.Event.Type == models.PunchOut {
		boundary = shiftEnd
	}

	diff := math.Abs(n.Event.StartTime.Sub(boundary).Minutes())
	score := 1.0
	if diff > opts.PunchGraceMin {
		score = math.Max(0, 1-(diff-opts.PunchGraceMin)/opts.PunchDecayMin)
	}
	return Assessment{Scored: true, Score: score}
}

// AssessAll scores every normalized event, then applies the per-period
// emergency limit: emergencies beyond the limit within one shift period are
// flagged as incidents.
func AssessAll(ns []Normalized, durations models.AllowedDurations, opts Options, loc *time.Location) []Assessment {
	out := make([]Assessment, len(ns))
	emergencies := map[string]int{}
	for i, n := range ns {
		out[i] = Assess(n, durations.Allowed(n.Event.Type), opts, loc)
		if n.Event.Type == models.BreakEmergency {
			emergencies[n.Period]++
			if opts.EmergencyLimit > 0 && emergencies[n.Period] > opts.EmergencyLimit {
				out[i].Incident = true
			}
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
