package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ColeMorton/trading-sub010/internal/database"
	"github.com/ColeMorton/trading-sub010/internal/models"
)

const errScanSweepResult = "failed to scan sweep result: %w"

const sweepResultColumns = `
	r.id, r.run_id, r.instrument_id, r.strategy_type_id,
	i.symbol, s.name,
	r.fast_period, r.slow_period, r.signal_period,
	r.score, r.sharpe_ratio, r.total_return_pct, r.win_rate_pct,
	r.total_trades, r.max_drawdown_pct, r.profit_factor,
	r.metrics, r.created_at`

// PostgresSweepResultRepository implements SweepResultRepository for PostgreSQL
type PostgresSweepResultRepository struct {
	db *database.DB
}

// NewPostgresSweepResultRepository creates a new sweep result repository
func NewPostgresSweepResultRepository(db *database.DB) SweepResultRepository {
	return &PostgresSweepResultRepository{db: db}
}

// InsertBatch inserts a batch of results in one transaction. Result IDs are
// written back onto the models so tag links can reference them.
func (r *PostgresSweepResultRepository) InsertBatch(ctx context.Context, results []*models.SweepResult) error {
	if len(results) == 0 {
		return nil
	}

	query := `
		INSERT INTO sweep_results (
			run_id, instrument_id, strategy_type_id,
			fast_period, slow_period, signal_period,
			score, sharpe_ratio, total_return_pct, win_rate_pct,
			total_trades, max_drawdown_pct, profit_factor,
			metrics, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id
	`

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, result := range results {
			err := tx.QueryRow(ctx, query,
				result.RunID, result.InstrumentID, result.StrategyTypeID,
				result.FastPeriod, result.SlowPeriod, result.SignalPeriod,
				result.Score, result.SharpeRatio, result.TotalReturnPct, result.WinRatePct,
				result.TotalTrades, result.MaxDrawdownPct, result.ProfitFactor,
				result.Metrics, result.CreatedAt,
			).Scan(&result.ID)
			if err != nil {
				return fmt.Errorf("failed to insert sweep result: %w", err)
			}
		}
		return nil
	})
}

// GetByRun retrieves results for a run, score-descending, with the total
// available count for pagination.
func (r *PostgresSweepResultRepository) GetByRun(ctx context.Context, runID uuid.UUID, filter ResultFilter) ([]*models.SweepResult, int, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM sweep_results r
		JOIN instruments i ON i.id = r.instrument_id
		WHERE r.run_id = $1 AND ($2 = '' OR i.symbol = $2)
	`
	var total int
	if err := r.db.GetPool().QueryRow(ctx, countQuery, runID, filter.Instrument).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sweep results: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sweep_results r
		JOIN instruments i ON i.id = r.instrument_id
		JOIN strategy_types s ON s.id = r.strategy_type_id
		WHERE r.run_id = $1 AND ($2 = '' OR i.symbol = $2)
		ORDER BY r.score DESC, r.id ASC
		LIMIT $3 OFFSET $4
	`, sweepResultColumns)

	rows, err := r.db.GetPool().Query(ctx, query, runID, filter.Instrument, limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query sweep results: %w", err)
	}
	defer rows.Close()

	results, err := scanSweepResults(rows)
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// GetRanked retrieves all results for one (run, instrument, strategy type),
// ranked descending by score. This is the Selection Engine's input.
func (r *PostgresSweepResultRepository) GetRanked(ctx context.Context, runID uuid.UUID, instrumentID, strategyTypeID int64) ([]*models.SweepResult, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sweep_results r
		JOIN instruments i ON i.id = r.instrument_id
		JOIN strategy_types s ON s.id = r.strategy_type_id
		WHERE r.run_id = $1 AND r.instrument_id = $2 AND r.strategy_type_id = $3
		ORDER BY r.score DESC, r.id ASC
	`, sweepResultColumns)

	rows, err := r.db.GetPool().Query(ctx, query, runID, instrumentID, strategyTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked results: %w", err)
	}
	defer rows.Close()

	return scanSweepResults(rows)
}

// GetPairs retrieves the distinct (instrument, strategy type) pairs present in a run
func (r *PostgresSweepResultRepository) GetPairs(ctx context.Context, runID uuid.UUID) ([]ResultPair, error) {
	query := `
		SELECT DISTINCT instrument_id, strategy_type_id
		FROM sweep_results
		WHERE run_id = $1
		ORDER BY instrument_id, strategy_type_id
	`
	rows, err := r.db.GetPool().Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query result pairs: %w", err)
	}
	defer rows.Close()

	var pairs []ResultPair
	for rows.Next() {
		var pair ResultPair
		if err := rows.Scan(&pair.InstrumentID, &pair.StrategyTypeID); err != nil {
			return nil, fmt.Errorf("failed to scan result pair: %w", err)
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}

func scanSweepResults(rows pgx.Rows) ([]*models.SweepResult, error) {
	var results []*models.SweepResult
	for rows.Next() {
		result := &models.SweepResult{}
		if err := rows.Scan(
			&result.ID, &result.RunID, &result.InstrumentID, &result.StrategyTypeID,
			&result.Instrument, &result.StrategyType,
			&result.FastPeriod, &result.SlowPeriod, &result.SignalPeriod,
			&result.Score, &result.SharpeRatio, &result.TotalReturnPct, &result.WinRatePct,
			&result.TotalTrades, &result.MaxDrawdownPct, &result.ProfitFactor,
			&result.Metrics, &result.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf(errScanSweepResult, err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
