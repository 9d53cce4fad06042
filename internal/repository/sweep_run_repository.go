package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ColeMorton/trading-sub010/internal/database"
	"github.com/ColeMorton/trading-sub010/internal/models"
)

// PostgresSweepRunRepository implements SweepRunRepository for PostgreSQL
type PostgresSweepRunRepository struct {
	db *database.DB
}

// NewPostgresSweepRunRepository creates a new sweep run repository
func NewPostgresSweepRunRepository(db *database.DB) SweepRunRepository {
	return &PostgresSweepRunRepository{db: db}
}

// Create inserts a sweep run
func (r *PostgresSweepRunRepository) Create(ctx context.Context, run *models.SweepRun) error {
	query := `
		INSERT INTO sweep_runs (id, job_id, grid_snapshot, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.GetPool().Exec(ctx, query, run.ID, run.JobID, run.GridSnapshot, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create sweep run: %w", err)
	}
	return nil
}

// GetByID retrieves a sweep run by id
func (r *PostgresSweepRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SweepRun, error) {
	query := `SELECT id, job_id, grid_snapshot, created_at FROM sweep_runs WHERE id = $1`

	run := &models.SweepRun{}
	err := r.db.GetPool().QueryRow(ctx, query, id).Scan(&run.ID, &run.JobID, &run.GridSnapshot, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sweep run: %w", err)
	}
	return run, nil
}

// List retrieves the most recent sweep runs plus the total available count
func (r *PostgresSweepRunRepository) List(ctx context.Context, limit int) ([]*models.SweepRun, int, error) {
	var total int
	if err := r.db.GetPool().QueryRow(ctx, `SELECT COUNT(*) FROM sweep_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sweep runs: %w", err)
	}

	query := `SELECT id, job_id, grid_snapshot, created_at FROM sweep_runs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.GetPool().Query(ctx, query, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query sweep runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SweepRun
	for rows.Next() {
		run := &models.SweepRun{}
		if err := rows.Scan(&run.ID, &run.JobID, &run.GridSnapshot, &run.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan sweep run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}
