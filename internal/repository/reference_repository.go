package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ColeMorton/trading-sub010/internal/database"
	"github.com/ColeMorton/trading-sub010/internal/models"
)

// PostgresInstrumentRepository implements InstrumentRepository for PostgreSQL
type PostgresInstrumentRepository struct {
	db *database.DB
}

// NewPostgresInstrumentRepository creates a new instrument repository
func NewPostgresInstrumentRepository(db *database.DB) InstrumentRepository {
	return &PostgresInstrumentRepository{db: db}
}

// GetOrCreate resolves an instrument by symbol, creating it on first use.
// Insert-or-ignore plus re-select keeps concurrent workers race-free behind
// the unique constraint.
func (r *PostgresInstrumentRepository) GetOrCreate(ctx context.Context, symbol string) (*models.Instrument, error) {
	query := `
		INSERT INTO instruments (symbol) VALUES ($1)
		ON CONFLICT (symbol) DO NOTHING
	`
	if _, err := r.db.GetPool().Exec(ctx, query, symbol); err != nil {
		return nil, fmt.Errorf("failed to insert instrument: %w", err)
	}
	return r.GetBySymbol(ctx, symbol)
}

// GetBySymbol retrieves an instrument by symbol
func (r *PostgresInstrumentRepository) GetBySymbol(ctx context.Context, symbol string) (*models.Instrument, error) {
	instrument := &models.Instrument{}
	err := r.db.GetPool().QueryRow(ctx,
		`SELECT id, symbol FROM instruments WHERE symbol = $1`, symbol,
	).Scan(&instrument.ID, &instrument.Symbol)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	return instrument, nil
}

// PostgresStrategyTypeRepository implements StrategyTypeRepository for PostgreSQL
type PostgresStrategyTypeRepository struct {
	db *database.DB
}

// NewPostgresStrategyTypeRepository creates a new strategy type repository
func NewPostgresStrategyTypeRepository(db *database.DB) StrategyTypeRepository {
	return &PostgresStrategyTypeRepository{db: db}
}

// GetOrCreate resolves a strategy type by name, creating it on first use
func (r *PostgresStrategyTypeRepository) GetOrCreate(ctx context.Context, name string) (*models.StrategyType, error) {
	query := `
		INSERT INTO strategy_types (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := r.db.GetPool().Exec(ctx, query, name); err != nil {
		return nil, fmt.Errorf("failed to insert strategy type: %w", err)
	}

	strategyType := &models.StrategyType{}
	err := r.db.GetPool().QueryRow(ctx,
		`SELECT id, name FROM strategy_types WHERE name = $1`, name,
	).Scan(&strategyType.ID, &strategyType.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy type: %w", err)
	}
	return strategyType, nil
}

// PostgresMetricTagRepository implements MetricTagRepository for PostgreSQL
type PostgresMetricTagRepository struct {
	db *database.DB
}

// NewPostgresMetricTagRepository creates a new metric tag repository
func NewPostgresMetricTagRepository(db *database.DB) MetricTagRepository {
	return &PostgresMetricTagRepository{db: db}
}

// GetOrCreate resolves a tag by name, growing the vocabulary on first use
func (r *PostgresMetricTagRepository) GetOrCreate(ctx context.Context, name string) (*models.MetricTypeTag, error) {
	query := `
		INSERT INTO metric_type_tags (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := r.db.GetPool().Exec(ctx, query, name); err != nil {
		return nil, fmt.Errorf("failed to insert metric tag: %w", err)
	}

	tag := &models.MetricTypeTag{}
	err := r.db.GetPool().QueryRow(ctx,
		`SELECT id, name FROM metric_type_tags WHERE name = $1`, name,
	).Scan(&tag.ID, &tag.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get metric tag: %w", err)
	}
	return tag, nil
}

// Link attaches a tag to a result, skipping links that already exist
func (r *PostgresMetricTagRepository) Link(ctx context.Context, resultID, tagID int64) error {
	query := `
		INSERT INTO sweep_result_metric_links (result_id, tag_id) VALUES ($1, $2)
		ON CONFLICT (result_id, tag_id) DO NOTHING
	`
	if _, err := r.db.GetPool().Exec(ctx, query, resultID, tagID); err != nil {
		return fmt.Errorf("failed to link metric tag: %w", err)
	}
	return nil
}

// GetTagsForResult retrieves all tags linked to a result
func (r *PostgresMetricTagRepository) GetTagsForResult(ctx context.Context, resultID int64) ([]*models.MetricTypeTag, error) {
	query := `
		SELECT t.id, t.name
		FROM metric_type_tags t
		JOIN sweep_result_metric_links l ON l.tag_id = t.id
		WHERE l.result_id = $1
		ORDER BY t.name
	`
	rows, err := r.db.GetPool().Query(ctx, query, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query result tags: %w", err)
	}
	defer rows.Close()

	var tags []*models.MetricTypeTag
	for rows.Next() {
		tag := &models.MetricTypeTag{}
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, fmt.Errorf("failed to scan metric tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
