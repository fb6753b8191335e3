package run

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists plugin runs and their results.
type Store interface {
	CreateRun(ctx context.Context, run *PluginRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*PluginRun, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status, progress float64) error
	// MarkInScheduler sets in_scheduler if it is still false and reports
	// whether this caller won. The losing caller is observing a duplicate
	// delivery and must abort.
	MarkInScheduler(ctx context.Context, id uuid.UUID) (bool, error)
	AddResult(ctx context.Context, result *PluginRunResult) error
	ListResults(ctx context.Context, runID uuid.UUID) ([]PluginRunResult, error)
	ListNonTerminal(ctx context.Context) ([]PluginRun, error)
}

// PGStore handles database operations for plugin runs.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates a postgres-backed run store.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateRun(ctx context.Context, run *PluginRun) error {
	query := `
		INSERT INTO plugin_runs (id, plugin, video_id, user_id, status, progress, in_scheduler, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.Exec(ctx, query,
		run.ID, run.Plugin, run.VideoID, run.UserID,
		run.Status, run.Progress, run.InScheduler,
		run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create plugin run: %w", err)
	}
	return nil
}

func (s *PGStore) GetRun(ctx context.Context, id uuid.UUID) (*PluginRun, error) {
	query := `
		SELECT id, plugin, video_id, user_id, status, progress, in_scheduler, created_at, updated_at
		FROM plugin_runs
		WHERE id = $1
	`

	var run PluginRun
	err := s.db.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Plugin, &run.VideoID, &run.UserID,
		&run.Status, &run.Progress, &run.InScheduler,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("plugin run not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get plugin run: %w", err)
	}
	return &run, nil
}

func (s *PGStore) SetStatus(ctx context.Context, id uuid.UUID, status Status, progress float64) error {
	query := `
		UPDATE plugin_runs
		SET status = $2, progress = $3, updated_at = $4
		WHERE id = $1
	`

	_, err := s.db.Exec(ctx, query, id, status, progress, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

func (s *PGStore) MarkInScheduler(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE plugin_runs
		SET in_scheduler = TRUE, updated_at = $2
		WHERE id = $1 AND in_scheduler = FALSE
	`

	tag, err := s.db.Exec(ctx, query, id, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to mark run in scheduler: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) AddResult(ctx context.Context, result *PluginRunResult) error {
	query := `
		INSERT INTO plugin_run_results (id, run_id, output_slot, entity_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.Exec(ctx, query,
		result.ID, result.RunID, result.OutputSlot, result.EntityID, result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add run result: %w", err)
	}
	return nil
}

func (s *PGStore) ListResults(ctx context.Context, runID uuid.UUID) ([]PluginRunResult, error) {
	query := `
		SELECT id, run_id, output_slot, entity_id, created_at
		FROM plugin_run_results
		WHERE run_id = $1
		ORDER BY created_at
	`

	rows, err := s.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run results: %w", err)
	}
	defer rows.Close()

	var results []PluginRunResult
	for rows.Next() {
		var r PluginRunResult
		if err := rows.Scan(&r.ID, &r.RunID, &r.OutputSlot, &r.EntityID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run results: %w", err)
	}
	return results, nil
}

func (s *PGStore) ListNonTerminal(ctx context.Context) ([]PluginRun, error) {
	query := `
		SELECT id, plugin, video_id, user_id, status, progress, in_scheduler, created_at, updated_at
		FROM plugin_runs
		WHERE status NOT IN ($1, $2)
	`

	rows, err := s.db.Query(ctx, query, StatusDone, StatusError)
	if err != nil {
		return nil, fmt.Errorf("failed to list non-terminal runs: %w", err)
	}
	defer rows.Close()

	var runs []PluginRun
	for rows.Next() {
		var run PluginRun
		if err := rows.Scan(
			&run.ID, &run.Plugin, &run.VideoID, &run.UserID,
			&run.Status, &run.Progress, &run.InScheduler,
			&run.CreatedAt, &run.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan plugin run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plugin runs: %w", err)
	}
	return runs, nil
}
