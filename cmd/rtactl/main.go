package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/breaktracker/backend/internal/config"
	"github.com/breaktracker/backend/internal/db"
	"github.com/breaktracker/backend/internal/engine"
	"github.com/breaktracker/backend/internal/models"
	"github.com/breaktracker/backend/internal/observability"
	"github.com/breaktracker/backend/internal/report"
	"github.com/breaktracker/backend/internal/service"
)

const usage = `Usage: rtactl <command> [flags]

Commands:
  migrate       apply the database schema
  report        compute a fleet or single-agent metrics report
  export        write a fleet metrics report as XLSX
  backup        dump agents, shifts and breaks as JSON
  restore       load a JSON backup
  agent-add     create an agent
  agents        list agents
  shift         upsert one shift
  shift-bulk    apply a JSON batch of shifts
  shift-delete  remove a shift
  break-add     record a manual break entry
`

type app struct {
	cfg       config.Config
	logger    zerolog.Logger
	store     *db.Store
	loc       *time.Location
	durations models.AllowedDurations
	validate  *validator.Validate
}

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "rtactl").Logger()

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("bad timezone")
	}
	durations, err := cfg.Durations()
	if err != nil {
		logger.Fatal().Err(err).Msg("bad break duration overrides")
	}

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		loc:       loc,
		durations: durations,
		validate:  validator.New(),
	}

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "migrate":
		return a.store.Migrate(ctx, a.logger)
	case "report":
		return a.runReport(ctx, args)
	case "export":
		return a.runExport(ctx, args)
	case "backup":
		return a.runBackup(ctx, args)
	case "restore":
		return a.runRestore(ctx, args)
	case "agent-add":
		return a.runAgentAdd(ctx, args)
	case "agents":
		return a.runAgents(ctx)
	case "shift":
		return a.runShift(ctx, args)
	case "shift-bulk":
		return a.runShiftBulk(ctx, args)
	case "shift-delete":
		return a.runShiftDelete(ctx, args)
	case "break-add":
		return a.runBreakAdd(ctx, args)
	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) engine() *engine.Engine {
	return &engine.Engine{
		Source:    a.store,
		Durations: a.durations,
		Opts: engine.Options{
			PunchGraceMin:  float64(a.cfg.PunchGraceMin),
			PunchDecayMin:  float64(a.cfg.PunchDecayMin),
			EmergencyLimit: a.cfg.EmergencyLimit,
		},
		Loc:    a.loc,
		Logger: a.logger.With().Str("component", "engine").Logger(),
	}
}

func (a *app) resolveAgent(ctx context.Context, username string) (models.Agent, error) {
	agent, ok, err := a.store.GetAgentByUsername(ctx, username)
	if err != nil {
		return models.Agent{}, err
	}
	if !ok {
		return models.Agent{}, fmt.Errorf("%w: %s", engine.ErrAgentNotFound, username)
	}
	return agent, nil
}

func (a *app) parseRange(from, to string) (time.Time, time.Time, error) {
	f, err := time.ParseInLocation("2006-01-02", from, a.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad -from %q", engine.ErrInvalidRange, from)
	}
	t, err := time.ParseInLocation("2006-01-02", to, a.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: bad -to %q", engine.ErrInvalidRange, to)
	}
	return f, t, nil
}

func (a *app) runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	from := fs.String("from", "", "Range start date, YYYY-MM-DD (required)")
	to := fs.String("to", "", "Range end date, YYYY-MM-DD (required)")
	agentName := fs.String("agent", "", "Agent username (empty = whole fleet)")
	format := fs.String("format", "text", "Output format: text|json|csv")
	fs.Parse(args)

	validFormats := map[string]bool{"text": true, "json": true, "csv": true}
	if !validFormats[*format] {
		return fmt.Errorf("format must be one of: text, json, csv (got: %s)", *format)
	}
	if *from == "" || *to == "" {
		return errors.New("-from and -to are required")
	}
	f, t, err := a.parseRange(*from, *to)
	if err != nil {
		return err
	}

	eng := a.engine()
	var rep report.Report
	if *agentName != "" {
		agent, err := a.resolveAgent(ctx, *agentName)
		if err != nil {
			return err
		}
		row, warnings, err := eng.ComputeAgentMetrics(ctx, agent.ID, f, t)
		if err != nil {
			return err
		}
		rows := []models.AgentMetricsRow{row}
		rep = report.Build("agent", f, t, rows, engine.Summarize(rows), warnings)
		observability.ReportsGeneratedTotal.WithLabelValues("agent").Inc()
		observability.IntegrityWarningsTotal.Add(float64(len(warnings)))
	} else {
		rows, summary, warnings, err := eng.ComputeFleetMetrics(ctx, f, t)
		if err != nil {
			return err
		}
		rep = report.Build("fleet", f, t, rows, summary, warnings)
		observability.ReportsGeneratedTotal.WithLabelValues("fleet").Inc()
		observability.IntegrityWarningsTotal.Add(float64(len(warnings)))
	}

	switch *format {
	case "json":
		fmt.Print(report.FormatJSON(rep))
	case "csv":
		fmt.Print(report.FormatCSV(rep))
	default:
		fmt.Print(report.FormatText(rep))
	}
	return nil
}

func (a *app) runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	from := fs.String("from", "", "Range start date, YYYY-MM-DD (required)")
	to := fs.String("to", "", "Range end date, YYYY-MM-DD (required)")
	out := fs.String("out", "report.xlsx", "Output XLSX path")
	fs.Parse(args)

	if *from == "" || *to == "" {
		return errors.New("-from and -to are required")
	}
	f, t, err := a.parseRange(*from, *to)
	if err != nil {
		return err
	}

	rows, summary, warnings, err := a.engine().ComputeFleetMetrics(ctx, f, t)
	if err != nil {
		return err
	}
	observability.ReportsGeneratedTotal.WithLabelValues("fleet").Inc()
	observability.IntegrityWarningsTotal.Add(float64(len(warnings)))

	file, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := report.WriteXLSX(report.Build("fleet", f, t, rows, summary, warnings), file); err != nil {
		return err
	}
	a.logger.Info().Str("path", *out).Int("rows", len(rows)).Msg("xlsx report written")
	return nil
}

func (a *app) runBackup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	out := fs.String("out", "", "Output path (empty = stdout)")
	fs.Parse(args)

	svc := &service.BackupService{Store: a.store, Logger: a.logger}
	if *out == "" {
		return svc.Dump(ctx, os.Stdout)
	}
	file, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer file.Close()
	return svc.Dump(ctx, file)
}

func (a *app) runRestore(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	in := fs.String("in", "", "Backup file to load (required)")
	fs.Parse(args)
	if *in == "" {
		return errors.New("-in is required")
	}

	file, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer file.Close()

	svc := &service.BackupService{Store: a.store, Logger: a.logger}
	result, err := svc.Restore(ctx, file)
	if err != nil {
		return err
	}
	fmt.Printf("Restored %d agents, %d shifts, %d breaks\n", result.Agents, result.Shifts, result.Breaks)
	return nil
}

func (a *app) runAgentAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("agent-add", flag.ExitOnError)
	username := fs.String("username", "", "Unique agent username (required)")
	fullName := fs.String("full-name", "", "Agent full name (required)")
	fs.Parse(args)

	svc := &service.RosterService{Store: a.store, Validate: a.validate, Logger: a.logger}
	agent, err := svc.CreateAgent(ctx, service.AgentInput{Username: *username, FullName: *fullName})
	if err != nil {
		return err
	}
	fmt.Printf("Created agent %s (%s)\n", agent.Username, agent.ID)
	return nil
}

func (a *app) runAgents(ctx context.Context) error {
	svc := &service.RosterService{Store: a.store, Validate: a.validate, Logger: a.logger}
	agents, err := svc.List(ctx)
	if err != nil {
		return err
	}
	for _, agent := range agents {
		fmt.Printf("%s\t%s\t%s\n", agent.ID, agent.Username, agent.FullName)
	}
	return nil
}

func (a *app) runShift(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("shift", flag.ExitOnError)
	agentName := fs.String("agent", "", "Agent username (required)")
	date := fs.String("date", "", "Shift date, YYYY-MM-DD (required)")
	start := fs.String("start", "", "Scheduled start, HH:MM (required)")
	end := fs.String("end", "", "Scheduled end, HH:MM (required)")
	fs.Parse(args)

	agent, err := a.resolveAgent(ctx, *agentName)
	if err != nil {
		return err
	}
	svc := &service.ShiftService{Store: a.store, Validate: a.validate, Logger: a.logger}
	created, err := svc.Upsert(ctx, service.ShiftInput{AgentID: agent.ID, Date: *date, Start: *start, End: *end})
	if err != nil {
		return err
	}
	if created {
		fmt.Println("Shift created")
	} else {
		fmt.Println("Shift updated")
	}
	return nil
}

func (a *app) runShiftBulk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("shift-bulk", flag.ExitOnError)
	in := fs.String("file", "", "JSON file with shift inputs (required)")
	fs.Parse(args)
	if *in == "" {
		return errors.New("-file is required")
	}

	inputs, err := readShiftInputs(*in)
	if err != nil {
		return err
	}
	svc := &service.ShiftService{Store: a.store, Validate: a.validate, Logger: a.logger}
	result, err := svc.Bulk(ctx, inputs)
	if err != nil {
		return err
	}
	fmt.Printf("Shifts applied: %d created, %d updated\n", result.Created, result.Updated)
	return nil
}

func (a *app) runShiftDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("shift-delete", flag.ExitOnError)
	agentName := fs.String("agent", "", "Agent username (required)")
	date := fs.String("date", "", "Shift date, YYYY-MM-DD (required)")
	fs.Parse(args)

	agent, err := a.resolveAgent(ctx, *agentName)
	if err != nil {
		return err
	}
	svc := &service.ShiftService{Store: a.store, Validate: a.validate, Logger: a.logger}
	deleted, err := svc.Delete(ctx, agent.ID, *date)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("no shift for %s on %s", *agentName, *date)
	}
	fmt.Println("Shift deleted")
	return nil
}

func (a *app) runBreakAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("break-add", flag.ExitOnError)
	agentName := fs.String("agent", "", "Agent username (required)")
	breakType := fs.String("type", "", "Break type (required)")
	start := fs.String("start", "", "Start time, RFC3339 (required)")
	end := fs.String("end", "", "End time, RFC3339 (empty = still open)")
	note := fs.String("note", "", "Free-text note")
	fs.Parse(args)

	agent, err := a.resolveAgent(ctx, *agentName)
	if err != nil {
		return err
	}
	startAt, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("bad -start %q: %w", *start, err)
	}
	in := service.ManualBreakInput{
		AgentID: agent.ID,
		Type:    *breakType,
		Start:   startAt,
		Note:    *note,
	}
	if *end != "" {
		endAt, err := time.Parse(time.RFC3339, *end)
		if err != nil {
			return fmt.Errorf("bad -end %q: %w", *end, err)
		}
		in.End = &endAt
	}

	svc := &service.BreakService{
		Store:     a.store,
		Durations: a.durations,
		Validate:  a.validate,
		Logger:    a.logger,
		Loc:       a.loc,
	}
	b, err := svc.AddManual(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded break %s\n", b.ID)
	return nil
}
