package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/breaktracker/backend/internal/db"
	"github.com/breaktracker/backend/internal/models"
)

// ShiftService manages the one-shift-per-agent-per-date schedule.
type ShiftService struct {
	Store    *db.Store
	Validate *validator.Validate
	Logger   zerolog.Logger
}

type ShiftInput struct {
	AgentID string `json:"agent_id" validate:"required,uuid"`
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Start   string `json:"start" validate:"required,datetime=15:04"`
	End     string `json:"end" validate:"required,datetime=15:04"`
}

type BulkShiftResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

func (s *ShiftService) toShift(in ShiftInput) (models.Shift, error) {
	if err := s.Validate.Struct(in); err != nil {
		return models.Shift{}, err
	}
	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return models.Shift{}, fmt.Errorf("bad shift date %q: %w", in.Date, err)
	}
	return models.Shift{
		ID:        uuid.NewString(),
		AgentID:   in.AgentID,
		Date:      date,
		StartTime: in.Start,
		EndTime:   in.End,
	}, nil
}

// Upsert creates the shift, or updates the times in place when the agent
// already has one on that date.
func (s *ShiftService) Upsert(ctx context.Context, in ShiftInput) (bool, error) {
	shift, err := s.toShift(in)
	if err != nil {
		return false, err
	}
	var created bool
	err = s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		created, err = s.Store.UpsertShift(ctx, tx, shift)
		return err
	})
	if err != nil {
		return false, err
	}
	s.Logger.Info().Str("agent_id", in.AgentID).Str("shift_date", in.Date).Bool("created", created).Msg("shift upserted")
	return created, nil
}

// Bulk applies a batch of shift assignments in one transaction and reports
// how many rows were created vs updated.
func (s *ShiftService) Bulk(ctx context.Context, ins []ShiftInput) (BulkShiftResult, error) {
	shifts := make([]models.Shift, 0, len(ins))
	for _, in := range ins {
		shift, err := s.toShift(in)
		if err != nil {
			return BulkShiftResult{}, err
		}
		shifts = append(shifts, shift)
	}

	var result BulkShiftResult
	err := s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		for _, shift := range shifts {
			created, err := s.Store.UpsertShift(ctx, tx, shift)
			if err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return BulkShiftResult{}, err
	}
	s.Logger.Info().Int("created", result.Created).Int("updated", result.Updated).Msg("bulk shifts applied")
	return result, nil
}

func (s *ShiftService) Delete(ctx context.Context, agentID, date string) (bool, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return false, fmt.Errorf("bad shift date %q: %w", date, err)
	}
	return s.Store.DeleteShift(ctx, agentID, d)
}
