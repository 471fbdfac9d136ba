package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/breaktracker/backend/internal/db"
	"github.com/breaktracker/backend/internal/models"
)

const backupVersion = 1

// BackupFile is the versioned JSON dump of the whole data set.
type BackupFile struct {
	Version   int                 `json:"version"`
	CreatedAt time.Time           `json:"created_at"`
	Agents    []models.Agent      `json:"agents"`
	Shifts    []models.Shift      `json:"shifts"`
	Breaks    []models.BreakEvent `json:"breaks"`
}

type RestoreResult struct {
	Agents int   `json:"agents"`
	Shifts int   `json:"shifts"`
	Breaks int64 `json:"breaks"`
}

type BackupService struct {
	Store  *db.Store
	Logger zerolog.Logger
}

// Dump writes all agents, shifts and breaks from one store snapshot.
func (s *BackupService) Dump(ctx context.Context, w io.Writer) error {
	file := BackupFile{Version: backupVersion, CreatedAt: time.Now().UTC()}
	err := s.Store.Snapshot(ctx, func(sn *db.Snapshot) error {
		var err error
		if file.Agents, err = sn.ListAgents(ctx); err != nil {
			return err
		}
		if file.Shifts, err = sn.AllShifts(ctx); err != nil {
			return err
		}
		file.Breaks, err = sn.AllBreaks(ctx)
		return err
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file); err != nil {
		return err
	}
	s.Logger.Info().Int("agents", len(file.Agents)).Int("shifts", len(file.Shifts)).Int("breaks", len(file.Breaks)).Msg("backup written")
	return nil
}

// Restore loads a backup into the store: agents and shifts are upserted,
// breaks are bulk-copied. Breaks are expected to restore into an empty
// break_events table.
func (s *BackupService) Restore(ctx context.Context, r io.Reader) (RestoreResult, error) {
	var file BackupFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return RestoreResult{}, fmt.Errorf("decode backup: %w", err)
	}
	if file.Version != backupVersion {
		return RestoreResult{}, fmt.Errorf("unsupported backup version %d", file.Version)
	}

	err := s.Store.WithTx(ctx, func(tx pgx.Tx) error {
		for _, a := range file.Agents {
			if err := s.Store.UpsertAgent(ctx, tx, a); err != nil {
				return err
			}
		}
		for _, shift := range file.Shifts {
			if _, err := s.Store.UpsertShift(ctx, tx, shift); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return RestoreResult{}, err
	}

	copied, err := s.Store.RestoreBreaks(ctx, file.Breaks)
	if err != nil {
		return RestoreResult{}, err
	}

	result := RestoreResult{Agents: len(file.Agents), Shifts: len(file.Shifts), Breaks: copied}
	s.Logger.Info().Int("agents", result.Agents).Int("shifts", result.Shifts).Int64("breaks", result.Breaks).Msg("backup restored")
	return result, nil
}
