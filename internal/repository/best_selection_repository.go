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

const errScanBestSelection = "failed to scan best selection: %w"

const bestSelectionColumns = `
	b.id, b.run_id, b.instrument_id, b.strategy_type_id,
	i.symbol, s.name, b.selected_result_id,
	b.algorithm_code, b.confidence_score, b.alternatives_considered,
	b.fast_period, b.slow_period, b.signal_period,
	b.score, b.sharpe_ratio, b.total_return_pct, b.win_rate_pct,
	b.total_trades, b.created_at`

// PostgresBestSelectionRepository implements BestSelectionRepository for PostgreSQL
type PostgresBestSelectionRepository struct {
	db *database.DB
}

// NewPostgresBestSelectionRepository creates a new best selection repository
func NewPostgresBestSelectionRepository(db *database.DB) BestSelectionRepository {
	return &PostgresBestSelectionRepository{db: db}
}

// Upsert writes a selection, replacing any previous row for the same
// (run, instrument, strategy type) key.
func (r *PostgresBestSelectionRepository) Upsert(ctx context.Context, selection *models.BestSelection) error {
	query := `
		INSERT INTO best_selections (
			run_id, instrument_id, strategy_type_id, selected_result_id,
			algorithm_code, confidence_score, alternatives_considered,
			fast_period, slow_period, signal_period,
			score, sharpe_ratio, total_return_pct, win_rate_pct, total_trades,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (run_id, instrument_id, strategy_type_id) DO UPDATE SET
			selected_result_id = EXCLUDED.selected_result_id,
			algorithm_code = EXCLUDED.algorithm_code,
			confidence_score = EXCLUDED.confidence_score,
			alternatives_considered = EXCLUDED.alternatives_considered,
			fast_period = EXCLUDED.fast_period,
			slow_period = EXCLUDED.slow_period,
			signal_period = EXCLUDED.signal_period,
			score = EXCLUDED.score,
			sharpe_ratio = EXCLUDED.sharpe_ratio,
			total_return_pct = EXCLUDED.total_return_pct,
			win_rate_pct = EXCLUDED.win_rate_pct,
			total_trades = EXCLUDED.total_trades,
			created_at = EXCLUDED.created_at
		RETURNING id
	`
	err := r.db.GetPool().QueryRow(ctx, query,
		selection.RunID, selection.InstrumentID, selection.StrategyTypeID, selection.SelectedResultID,
		selection.AlgorithmCode, selection.ConfidenceScore, selection.AlternativesConsidered,
		selection.FastPeriod, selection.SlowPeriod, selection.SignalPeriod,
		selection.Score, selection.SharpeRatio, selection.TotalReturnPct, selection.WinRatePct, selection.TotalTrades,
		selection.CreatedAt,
	).Scan(&selection.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert best selection: %w", err)
	}
	return nil
}

// GetBest retrieves the best selection for a run. With an instrument filter
// it returns that instrument's pick; without, the single overall-best row
// by confidence then score.
func (r *PostgresBestSelectionRepository) GetBest(ctx context.Context, runID uuid.UUID, instrument string) (*models.BestSelection, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM best_selections b
		JOIN instruments i ON i.id = b.instrument_id
		JOIN strategy_types s ON s.id = b.strategy_type_id
		WHERE b.run_id = $1 AND ($2 = '' OR i.symbol = $2)
		ORDER BY b.confidence_score DESC, b.score DESC
		LIMIT 1
	`, bestSelectionColumns)

	selection := &models.BestSelection{}
	err := r.db.GetPool().QueryRow(ctx, query, runID, instrument).Scan(
		&selection.ID, &selection.RunID, &selection.InstrumentID, &selection.StrategyTypeID,
		&selection.Instrument, &selection.StrategyType, &selection.SelectedResultID,
		&selection.AlgorithmCode, &selection.ConfidenceScore, &selection.AlternativesConsidered,
		&selection.FastPeriod, &selection.SlowPeriod, &selection.SignalPeriod,
		&selection.Score, &selection.SharpeRatio, &selection.TotalReturnPct, &selection.WinRatePct,
		&selection.TotalTrades, &selection.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get best selection: %w", err)
	}
	return selection, nil
}

// GetBestPerInstrument retrieves one row per instrument present in the run,
// keeping the highest-confidence pick when an instrument has several strategies.
func (r *PostgresBestSelectionRepository) GetBestPerInstrument(ctx context.Context, runID uuid.UUID) ([]*models.BestSelection, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT ON (b.instrument_id) %s
		FROM best_selections b
		JOIN instruments i ON i.id = b.instrument_id
		JOIN strategy_types s ON s.id = b.strategy_type_id
		WHERE b.run_id = $1
		ORDER BY b.instrument_id, b.confidence_score DESC, b.score DESC
	`, bestSelectionColumns)

	rows, err := r.db.GetPool().Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query best selections: %w", err)
	}
	defer rows.Close()

	var selections []*models.BestSelection
	for rows.Next() {
		selection := &models.BestSelection{}
		if err := rows.Scan(
			&selection.ID, &selection.RunID, &selection.InstrumentID, &selection.StrategyTypeID,
			&selection.Instrument, &selection.StrategyType, &selection.SelectedResultID,
			&selection.AlgorithmCode, &selection.ConfidenceScore, &selection.AlternativesConsidered,
			&selection.FastPeriod, &selection.SlowPeriod, &selection.SignalPeriod,
			&selection.Score, &selection.SharpeRatio, &selection.TotalReturnPct, &selection.WinRatePct,
			&selection.TotalTrades, &selection.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf(errScanBestSelection, err)
		}
		selections = append(selections, selection)
	}
	return selections, rows.Err()
}
