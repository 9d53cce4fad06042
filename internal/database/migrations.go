package database

import (
	"context"
	"fmt"
)

// schema holds the result-store DDL. Statements are idempotent so Migrate
// can run at every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sweep_runs (
		id UUID PRIMARY KEY,
		job_id UUID NOT NULL,
		grid_snapshot JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS instruments (
		id BIGSERIAL PRIMARY KEY,
		symbol TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS strategy_types (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS sweep_results (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES sweep_runs(id),
		instrument_id BIGINT NOT NULL REFERENCES instruments(id),
		strategy_type_id BIGINT NOT NULL REFERENCES strategy_types(id),
		fast_period INT NOT NULL,
		slow_period INT NOT NULL,
		signal_period INT,
		score DOUBLE PRECISION NOT NULL,
		sharpe_ratio DOUBLE PRECISION NOT NULL,
		total_return_pct DOUBLE PRECISION NOT NULL,
		win_rate_pct DOUBLE PRECISION NOT NULL,
		total_trades INT NOT NULL,
		max_drawdown_pct DOUBLE PRECISION NOT NULL,
		profit_factor DOUBLE PRECISION NOT NULL,
		metrics JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// signal_period is NULL for two-parameter strategies; a plain UNIQUE
	// constraint would treat those rows as distinct, so the index folds
	// NULL to -1, matching the parameter-key encoding.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sweep_results_params
		ON sweep_results (run_id, instrument_id, strategy_type_id, fast_period, slow_period, COALESCE(signal_period, -1))`,
	`CREATE INDEX IF NOT EXISTS idx_sweep_results_run_score
		ON sweep_results (run_id, score DESC)`,
	`CREATE TABLE IF NOT EXISTS metric_type_tags (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS sweep_result_metric_links (
		result_id BIGINT NOT NULL REFERENCES sweep_results(id),
		tag_id BIGINT NOT NULL REFERENCES metric_type_tags(id),
		PRIMARY KEY (result_id, tag_id)
	)`,
	`CREATE TABLE IF NOT EXISTS best_selections (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES sweep_runs(id),
		instrument_id BIGINT NOT NULL REFERENCES instruments(id),
		strategy_type_id BIGINT NOT NULL REFERENCES strategy_types(id),
		selected_result_id BIGINT NOT NULL REFERENCES sweep_results(id),
		algorithm_code TEXT NOT NULL,
		confidence_score DOUBLE PRECISION NOT NULL,
		alternatives_considered INT NOT NULL,
		fast_period INT NOT NULL,
		slow_period INT NOT NULL,
		signal_period INT,
		score DOUBLE PRECISION NOT NULL,
		sharpe_ratio DOUBLE PRECISION NOT NULL,
		total_return_pct DOUBLE PRECISION NOT NULL,
		win_rate_pct DOUBLE PRECISION NOT NULL,
		total_trades INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (run_id, instrument_id, strategy_type_id)
	)`,
}

// Migrate applies the result-store schema
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
