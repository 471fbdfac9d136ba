package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/breaktracker/backend/internal/db"
	"github.com/breaktracker/backend/internal/models"
)

var (
	ErrBreakActive      = errors.New("agent already has an active break")
	ErrNoActiveBreak    = errors.New("agent has no active break")
	ErrUnknownBreakType = errors.New("unknown break type")
)

// BreakService owns the break lifecycle: one active break per agent,
// evidence references on start and end, overdue computed at close.
type BreakService struct {
	Store     *db.Store
	Durations models.AllowedDurations
	Validate  *validator.Validate
	Logger    zerolog.Logger
	Loc       *time.Location
	Now       func() time.Time
}

type StartBreakInput struct {
	AgentID       string `validate:"required,uuid"`
	Type          string `validate:"required"`
	StartEvidence string `validate:"required"`
	Note          string
}

type EndBreakInput struct {
	AgentID     string `validate:"required,uuid"`
	EndEvidence string `validate:"required"`
}

type ManualBreakInput struct {
	AgentID string    `validate:"required,uuid"`
	Type    string    `validate:"required"`
	Start   time.Time `validate:"required"`
	End     *time.Time
	Note    string
}

func (s *BreakService) clock() time.Time {
	if s.Now != nil {
		return s.Now().In(s.Loc)
	}
	return time.Now().In(s.Loc)
}

// Start opens a break, or records an instantaneous punch event.
func (s *BreakService) Start(ctx context.Context, in StartBreakInput) (models.BreakEvent, error) {
	if err := s.Validate.Struct(in); err != nil {
		return models.BreakEvent{}, err
	}
	bt := models.BreakType(in.Type)
	if !bt.Valid() {
		return models.BreakEvent{}, fmt.Errorf("%w: %s", ErrUnknownBreakType, in.Type)
	}

	if !bt.IsPunch() {
		if _, active, err := s.Store.ActiveBreak(ctx, in.AgentID); err != nil {
			return models.BreakEvent{}, err
		} else if active {
			return models.BreakEvent{}, ErrBreakActive
		}
	}

	now := s.clock()
	b := models.BreakEvent{
		ID:            uuid.NewString(),
		AgentID:       in.AgentID,
		Type:          bt,
		StartTime:     &now,
		StartEvidence: &in.StartEvidence,
		CreatedAt:     now,
	}
	if in.Note != "" {
		b.Note = &in.Note
	}
	if err := s.Store.InsertBreak(ctx, b); err != nil {
		return models.BreakEvent{}, err
	}
	s.Logger.Info().Str("agent_id", in.AgentID).Str("break_type", in.Type).Str("break_id", b.ID).Msg("break started")
	return b, nil
}

// End closes the agent's active break, computing its duration in whole
// minutes and whether it ran over its allowed duration.
func (s *BreakService) End(ctx context.Context, in EndBreakInput) (models.BreakEvent, error) {
	if err := s.Validate.Struct(in); err != nil {
		return models.BreakEvent{}, err
	}
	b, active, err := s.Store.ActiveBreak(ctx, in.AgentID)
	if err != nil {
		return models.BreakEvent{}, err
	}
	if !active {
		return models.BreakEvent{}, ErrNoActiveBreak
	}

	now := s.clock()
	duration := int(now.Sub(*b.StartTime).Minutes())
	overdue := duration > s.Durations.Allowed(b.Type)
	if err := s.Store.CloseBreak(ctx, b.ID, now, duration, overdue, &in.EndEvidence); err != nil {
		return models.BreakEvent{}, err
	}

	b.EndTime = &now
	b.DurationMin = &duration
	b.Overdue = overdue
	b.EndEvidence = &in.EndEvidence
	s.Logger.Info().Str("agent_id", in.AgentID).Str("break_id", b.ID).Int("duration_minutes", duration).Bool("is_overdue", overdue).Msg("break ended")
	return b, nil
}

// AddManual records an administrative back-dated entry, open or closed.
func (s *BreakService) AddManual(ctx context.Context, in ManualBreakInput) (models.BreakEvent, error) {
	if err := s.Validate.Struct(in); err != nil {
		return models.BreakEvent{}, err
	}
	bt := models.BreakType(in.Type)
	if !bt.Valid() {
		return models.BreakEvent{}, fmt.Errorf("%w: %s", ErrUnknownBreakType, in.Type)
	}
	if bt.IsPunch() && in.End != nil {
		return models.BreakEvent{}, fmt.Errorf("punch events cannot carry an end time")
	}
	if in.End != nil && !in.End.After(in.Start) {
		return models.BreakEvent{}, fmt.Errorf("end time must be after start time")
	}

	start := in.Start.In(s.Loc)
	b := models.BreakEvent{
		ID:        uuid.NewString(),
		AgentID:   in.AgentID,
		Type:      bt,
		StartTime: &start,
		CreatedAt: s.clock(),
	}
	if in.Note != "" {
		b.Note = &in.Note
	}
	if in.End != nil {
		end := in.End.In(s.Loc)
		duration := int(end.Sub(start).Minutes())
		b.EndTime = &end
		b.DurationMin = &duration
		b.Overdue = duration > s.Durations.Allowed(bt)
	}
	if err := s.Store.InsertBreak(ctx, b); err != nil {
		return models.BreakEvent{}, err
	}
	s.Logger.Info().Str("agent_id", in.AgentID).Str("break_id", b.ID).Str("break_type", in.Type).Msg("manual break recorded")
	return b, nil
}

func (s *BreakService) SetNote(ctx context.Context, breakID, note string) error {
	return s.Store.SetBreakNote(ctx, breakID, note)
}
