package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/breaktracker/backend/internal/engine"
	"github.com/breaktracker/backend/internal/models"
)

// Report is the assembled output of one metrics computation, ready for any
// of the renderers.
type Report struct {
	Scope       string                    `json:"scope"`
	From        string                    `json:"from"`
	To          string                    `json:"to"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Rows        []models.AgentMetricsRow  `json:"rows"`
	Summary     models.FleetSummary       `json:"summary"`
	Warnings    []engine.IntegrityWarning `json:"warnings,omitempty"`
}

func Build(scope string, from, to time.Time, rows []models.AgentMetricsRow, summary models.FleetSummary, warnings []engine.IntegrityWarning) Report {
	return Report{
		Scope:       scope,
		From:        from.Format("2006-01-02"),
		To:          to.Format("2006-01-02"),
		GeneratedAt: time.Now().UTC(),
		Rows:        rows,
		Summary:     summary,
		Warnings:    warnings,
	}
}

var header = []string{
	"Agent", "Name", "Scheduled Hours", "Breaks", "Break Minutes",
	"Exceeding Minutes", "Exceeding", "Incidents", "Emergencies",
	"Lunch", "Coaching", "Overtime", "Compensation",
	"Utilization %", "Adherence %", "Conformance %",
}

func rowValues(r models.AgentMetricsRow) []string {
	return []string{
		r.Username,
		r.FullName,
		fmt.Sprintf("%.2f", r.ScheduledHours),
		fmt.Sprintf("%d", r.TotalBreaks),
		fmt.Sprintf("%.1f", r.TotalBreakMinutes),
		fmt.Sprintf("%.1f", r.ExceedingMinutes),
		fmt.Sprintf("%d", r.ExceedingCount),
		fmt.Sprintf("%d", r.IncidentCount),
		fmt.Sprintf("%d", r.EmergencyCount),
		fmt.Sprintf("%d", r.LunchCount),
		fmt.Sprintf("%d", r.CoachingCount),
		fmt.Sprintf("%d", r.OvertimeCount),
		fmt.Sprintf("%d", r.CompensationCount),
		fmt.Sprintf("%.1f", r.Utilization),
		fmtPct(r.Adherence),
		fmtPct(r.Conformance),
	}
}

func fmtPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *v)
}

// FormatText renders the report as an aligned table with a summary block.
func FormatText(r Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Break report %s (%s .. %s)\n\n", r.Scope, r.From, r.To)

	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range r.Rows {
		fmt.Fprintln(w, strings.Join(rowValues(row), "\t"))
	}
	w.Flush()

	fmt.Fprintf(&sb, "\nFleet: agents=%d avg_utilization=%.1f avg_adherence=%s avg_conformance=%s\n",
		r.Summary.Agents, r.Summary.AvgUtilization, fmtPct(r.Summary.AvgAdherence), fmtPct(r.Summary.AvgConformance))
	fmt.Fprintf(&sb, "       breaks=%d break_minutes=%.1f exceeding_minutes=%.1f incidents=%d emergencies=%d\n",
		r.Summary.TotalBreaks, r.Summary.TotalBreakMinutes, r.Summary.TotalExceedingMin, r.Summary.TotalIncidents, r.Summary.TotalEmergencies)

	if len(r.Warnings) > 0 {
		fmt.Fprintf(&sb, "\n%d integrity warning(s):\n", len(r.Warnings))
		for _, warning := range r.Warnings {
			fmt.Fprintf(&sb, "  - %s\n", warning)
		}
	}
	return sb.String()
}

// FormatCSV renders the per-agent rows followed by one FLEET summary row.
func FormatCSV(r Report) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write(header)
	for _, row := range r.Rows {
		w.Write(rowValues(row))
	}
	w.Write([]string{
		"FLEET", "",
		"", fmt.Sprintf("%d", r.Summary.TotalBreaks),
		fmt.Sprintf("%.1f", r.Summary.TotalBreakMinutes),
		fmt.Sprintf("%.1f", r.Summary.TotalExceedingMin),
		"", fmt.Sprintf("%d", r.Summary.TotalIncidents),
		fmt.Sprintf("%d", r.Summary.TotalEmergencies),
		"", "", "", "",
		fmt.Sprintf("%.1f", r.Summary.AvgUtilization),
		fmtPct(r.Summary.AvgAdherence),
		fmtPct(r.Summary.AvgConformance),
	})
	w.Flush()
	return sb.String()
}

// FormatJSON renders the whole report, warnings included.
func FormatJSON(r Report) string {
	out, _ := json.MarshalIndent(r, "", "  ")
	return string(out)
}
