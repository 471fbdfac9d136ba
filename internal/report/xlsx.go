package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Report"

// WriteXLSX writes the report as a workbook with the agent rows and a
// summary block.
func WriteXLSX(r Report, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &headerRow); err != nil {
		return err
	}

	line := 2
	for _, row := range r.Rows {
		cells := []any{
			row.Username,
			row.FullName,
			row.ScheduledHours,
			row.TotalBreaks,
			row.TotalBreakMinutes,
			row.ExceedingMinutes,
			row.ExceedingCount,
			row.IncidentCount,
			row.EmergencyCount,
			row.LunchCount,
			row.CoachingCount,
			row.OvertimeCount,
			row.CompensationCount,
			row.Utilization,
			xlsxPct(row.Adherence),
			xlsxPct(row.Conformance),
		}
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", line), &cells); err != nil {
			return err
		}
		line++
	}

	line++
	summary := [][]any{
		{"Range", fmt.Sprintf("%s .. %s", r.From, r.To)},
		{"Agents", r.Summary.Agents},
		{"Avg utilization %", r.Summary.AvgUtilization},
		{"Avg adherence %", xlsxPct(r.Summary.AvgAdherence)},
		{"Avg conformance %", xlsxPct(r.Summary.AvgConformance)},
		{"Total breaks", r.Summary.TotalBreaks},
		{"Total break minutes", r.Summary.TotalBreakMinutes},
		{"Total exceeding minutes", r.Summary.TotalExceedingMin},
		{"Total incidents", r.Summary.TotalIncidents},
		{"Total emergencies", r.Summary.TotalEmergencies},
	}
	for _, cells := range summary {
		row := cells
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", line), &row); err != nil {
			return err
		}
		line++
	}

	return f.Write(w)
}

func xlsxPct(v *float64) any {
	if v == nil {
		return "n/a"
	}
	return *v
}
