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

var ErrUsernameTaken = errors.New("username already taken")

type RosterService struct {
	Store    *db.Store
	Validate *validator.Validate
	Logger   zerolog.Logger
}

type AgentInput struct {
	Username string `validate:"required,min=3,max=64"`
	FullName string `validate:"required,max=128"`
}

func (s *RosterService) CreateAgent(ctx context.Context, in AgentInput) (models.Agent, error) {
	if err := s.Validate.Struct(in); err != nil {
		return models.Agent{}, err
	}
	if _, taken, err := s.Store.GetAgentByUsername(ctx, in.Username); err != nil {
		return models.Agent{}, err
	} else if taken {
		return models.Agent{}, fmt.Errorf("%w: %s", ErrUsernameTaken, in.Username)
	}

	a := models.Agent{
		ID:        uuid.NewString(),
		Username:  in.Username,
		FullName:  in.FullName,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.CreateAgent(ctx, a); err != nil {
		return models.Agent{}, err
	}
	s.Logger.Info().Str("agent_id", a.ID).Str("username", a.Username).Msg("agent created")
	return a, nil
}

func (s *RosterService) List(ctx context.Context) ([]models.Agent, error) {
	return s.Store.ListAgents(ctx)
}
