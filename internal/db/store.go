package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/breaktracker/backend/internal/engine"
	"github.com/breaktracker/backend/internal/models"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Migrate applies the embedded schema, statement by statement.
func (s *Store) Migrate(ctx context.Context, logger zerolog.Logger) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info().Msg("schema applied")
	return nil
}

// Snapshot serves all reads within fn from one repeatable-read, read-only
// transaction, so a metrics pass sees breaks and shifts from the same point
// in time.
func (s *Store) Snapshot(ctx context.Context, fn func(*Snapshot) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(&Snapshot{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ReadSnapshot adapts Snapshot to the metrics engine's read interface.
func (s *Store) ReadSnapshot(ctx context.Context, fn func(engine.EventSource) error) error {
	return s.Snapshot(ctx, func(sn *Snapshot) error {
		return fn(sn)
	})
}

type Snapshot struct {
	tx pgx.Tx
}

const breakColumns = `id, agent_id, break_type, start_time, end_time, duration_minutes, is_overdue, start_evidence, end_evidence, note, created_at`

func (sn *Snapshot) FetchBreaks(ctx context.Context, agentID string, from, to time.Time) ([]models.BreakEvent, error) {
	// NULL start times are malformed rows; the ones recorded within the
	// window are returned so the engine can surface them as integrity
	// warnings instead of silently skipping.
	query := `SELECT ` + breakColumns + ` FROM break_events WHERE ((start_time >= $1 AND start_time < $2) OR (start_time IS NULL AND created_at >= $1 AND created_at < $2))`
	args := []any{from, to}
	if agentID != "" {
		args = append(args, agentID)
		query += fmt.Sprintf(" AND agent_id = $%d", len(args))
	}
	query += " ORDER BY start_time ASC"

	rows, err := sn.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBreaks(rows)
}

func (sn *Snapshot) FetchShifts(ctx context.Context, agentID string, from, to time.Time) ([]models.Shift, error) {
	query := `SELECT id, agent_id, shift_date, start_time, end_time FROM shifts WHERE shift_date >= $1 AND shift_date <= $2`
	args := []any{from, to}
	if agentID != "" {
		args = append(args, agentID)
		query += fmt.Sprintf(" AND agent_id = $%d", len(args))
	}
	query += " ORDER BY shift_date ASC"

	rows, err := sn.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanShifts(rows)
}

func (sn *Snapshot) ListAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := sn.tx.Query(ctx, `SELECT id, username, full_name, created_at FROM agents ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAgents(rows)
}

func (sn *Snapshot) GetAgent(ctx context.Context, agentID string) (models.Agent, bool, error) {
	var a models.Agent
	err := sn.tx.QueryRow(ctx, `SELECT id, username, full_name, created_at FROM agents WHERE id = $1`, agentID).
		Scan(&a.ID, &a.Username, &a.FullName, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Agent{}, false, nil
	}
	if err != nil {
		return models.Agent{}, false, err
	}
	return a, true, nil
}

// AllShifts and AllBreaks serve the backup dump, which wants the complete
// tables from the same snapshot as the agent list.

func (sn *Snapshot) AllShifts(ctx context.Context) ([]models.Shift, error) {
	rows, err := sn.tx.Query(ctx, `SELECT id, agent_id, shift_date, start_time, end_time FROM shifts ORDER BY shift_date ASC, agent_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanShifts(rows)
}

func (sn *Snapshot) AllBreaks(ctx context.Context) ([]models.BreakEvent, error) {
	rows, err := sn.tx.Query(ctx, `SELECT `+breakColumns+` FROM break_events ORDER BY start_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBreaks(rows)
}

func (s *Store) CreateAgent(ctx context.Context, a models.Agent) error {
	_, err := s.Pool.Exec(ctx, `INSERT INTO agents (id, username, full_name, created_at) VALUES ($1,$2,$3,$4)`,
		a.ID, a.Username, a.FullName, a.CreatedAt)
	return err
}

func (s *Store) ListAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, username, full_name, created_at FROM agents ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAgents(rows)
}

func (s *Store) GetAgentByUsername(ctx context.Context, username string) (models.Agent, bool, error) {
	var a models.Agent
	err := s.Pool.QueryRow(ctx, `SELECT id, username, full_name, created_at FROM agents WHERE username = $1`, username).
		Scan(&a.ID, &a.Username, &a.FullName, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Agent{}, false, nil
	}
	if err != nil {
		return models.Agent{}, false, err
	}
	return a, true, nil
}

// UpsertShift inserts or replaces the one shift allowed per (agent, date).
// The returned flag is true when a new row was created.
func (s *Store) UpsertShift(ctx context.Context, tx pgx.Tx, shift models.Shift) (bool, error) {
	var created bool
	err := tx.QueryRow(ctx, `
		INSERT INTO shifts (id, agent_id, shift_date, start_time, end_time)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (agent_id, shift_date) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time
		RETURNING (xmax = 0)
	`, shift.ID, shift.AgentID, shift.Date, shift.StartTime, shift.EndTime).Scan(&created)
	return created, err
}

func (s *Store) DeleteShift(ctx context.Context, agentID string, date time.Time) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM shifts WHERE agent_id = $1 AND shift_date = $2`, agentID, date)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) InsertBreak(ctx context.Context, b models.BreakEvent) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO break_events (`+breakColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, b.ID, b.AgentID, b.Type, b.StartTime, b.EndTime, b.DurationMin, b.Overdue, b.StartEvidence, b.EndEvidence, b.Note, b.CreatedAt)
	return err
}

// ActiveBreak returns the agent's open break, if any.
func (s *Store) ActiveBreak(ctx context.Context, agentID string) (models.BreakEvent, bool, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+breakColumns+` FROM break_events
		WHERE agent_id = $1 AND end_time IS NULL AND break_type NOT IN ('punch_in', 'punch_out')
		ORDER BY start_time DESC LIMIT 1
	`, agentID)
	if err != nil {
		return models.BreakEvent{}, false, err
	}
	defer rows.Close()

	breaks, err := scanBreaks(rows)
	if err != nil {
		return models.BreakEvent{}, false, err
	}
	if len(breaks) == 0 {
		return models.BreakEvent{}, false, nil
	}
	return breaks[0], true, nil
}

func (s *Store) CloseBreak(ctx context.Context, breakID string, end time.Time, durationMin int, overdue bool, endEvidence *string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE break_events
		SET end_time = $1, duration_minutes = $2, is_overdue = $3, end_evidence = $4
		WHERE id = $5 AND end_time IS NULL
	`, end, durationMin, overdue, endEvidence, breakID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("break %s is not open", breakID)
	}
	return nil
}

func (s *Store) SetBreakNote(ctx context.Context, breakID string, note string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE break_events SET note = $1 WHERE id = $2`, note, breakID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("break %s not found", breakID)
	}
	return nil
}

// ListActiveBreaks returns every open non-punch break, for the overdue
// monitor's scan.
func (s *Store) ListActiveBreaks(ctx context.Context) ([]models.BreakEvent, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+breakColumns+` FROM break_events
		WHERE end_time IS NULL AND break_type NOT IN ('punch_in', 'punch_out')
		ORDER BY start_time ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBreaks(rows)
}

// MarkOverdue flags an open break as overdue. It reports whether this call
// set the flag, so the monitor flags each break exactly once.
func (s *Store) MarkOverdue(ctx context.Context, breakID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE break_events SET is_overdue = TRUE
		WHERE id = $1 AND end_time IS NULL AND is_overdue = FALSE
	`, breakID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RestoreBreaks bulk-loads break events during a backup restore.
func (s *Store) RestoreBreaks(ctx context.Context, breaks []models.BreakEvent) (int64, error) {
	rows := make([][]any, 0, len(breaks))
	for _, b := range breaks {
		rows = append(rows, []any{b.ID, b.AgentID, b.Type, b.StartTime, b.EndTime, b.DurationMin, b.Overdue, b.StartEvidence, b.EndEvidence, b.Note, b.CreatedAt})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"break_events"},
		[]string{"id", "agent_id", "break_type", "start_time", "end_time", "duration_minutes", "is_overdue", "start_evidence", "end_evidence", "note", "created_at"},
		pgx.CopyFromRows(rows))
}

func (s *Store) UpsertAgent(ctx context.Context, tx pgx.Tx, a models.Agent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO agents (id, username, full_name, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			full_name = EXCLUDED.full_name
	`, a.ID, a.Username, a.FullName, a.CreatedAt)
	return err
}

func scanAgents(rows pgx.Rows) ([]models.Agent, error) {
	var out []models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.Username, &a.FullName, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanShifts(rows pgx.Rows) ([]models.Shift, error) {
	var out []models.Shift
	for rows.Next() {
		var s models.Shift
		if err := rows.Scan(&s.ID, &s.AgentID, &s.Date, &s.StartTime, &s.EndTime); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanBreaks(rows pgx.Rows) ([]models.BreakEvent, error) {
	var out []models.BreakEvent
	for rows.Next() {
		var b models.BreakEvent
		if err := rows.Scan(&b.ID, &b.AgentID, &b.Type, &b.StartTime, &b.EndTime, &b.DurationMin, &b.Overdue, &b.StartEvidence, &b.EndEvidence, &b.Note, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
