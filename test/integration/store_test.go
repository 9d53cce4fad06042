//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColeMorton/trading-sub010/internal/config"
	"github.com/ColeMorton/trading-sub010/internal/database"
	"github.com/ColeMorton/trading-sub010/internal/models"
	"github.com/ColeMorton/trading-sub010/internal/repository"
)

const skipIntegration = "Skipping integration test in short mode"

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Host:           envOr("TEST_DB_HOST", "localhost"),
		Port:           envIntOr("TEST_DB_PORT", 5432),
		Name:           envOr("TEST_DB_NAME", "sweep_test"),
		User:           envOr("TEST_DB_USER", "test"),
		Password:       envOr("TEST_DB_PASSWORD", "test"),
		SSLMode:        "disable",
		MaxConnections: 5,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.NewDB(ctx, cfg)
	require.NoError(t, err, "failed to connect to test database")
	require.NoError(t, db.Migrate(ctx), "failed to run migrations")
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// TestResultStoreIntegration exercises the full persistence path against a
// real Postgres instance: run creation, reference resolution, batch insert,
// ranked reads, tag links and selection upserts.
func TestResultStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip(skipIntegration)
	}

	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()

	repos, err := repository.NewRepositories(db)
	require.NoError(t, err)

	run := &models.SweepRun{
		ID:           uuid.New(),
		JobID:        uuid.New(),
		GridSnapshot: json.RawMessage(`{"instruments":["AAPL"],"strategies":[{"type":"sma_cross","fast":{"min":5,"max":10,"step":5},"slow":{"min":20,"max":20,"step":1}}]}`),
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repos.SweepRun.Create(ctx, run))

	t.Run("RunRoundTrip", func(t *testing.T) {
		got, err := repos.SweepRun.GetByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.JobID, got.JobID)
		assert.JSONEq(t, string(run.GridSnapshot), string(got.GridSnapshot))

		runs, total, err := repos.SweepRun.List(ctx, 10)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, total, 1)
		assert.NotEmpty(t, runs)
	})

	instrument, err := repos.Instrument.GetOrCreate(ctx, "AAPL")
	require.NoError(t, err)
	strategy, err := repos.StrategyType.GetOrCreate(ctx, models.StrategySMACross)
	require.NoError(t, err)

	t.Run("ReferenceGetOrCreateIsIdempotent", func(t *testing.T) {
		again, err := repos.Instrument.GetOrCreate(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, instrument.ID, again.ID)

		bySymbol, err := repos.Instrument.GetBySymbol(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, instrument.ID, bySymbol.ID)
	})

	results := []*models.SweepResult{
		{
			RunID: run.ID, InstrumentID: instrument.ID, StrategyTypeID: strategy.ID,
			FastPeriod: 5, SlowPeriod: 20,
			Score: 1.8, SharpeRatio: 1.4, TotalReturnPct: 22.5, WinRatePct: 58.0,
			TotalTrades: 31, MaxDrawdownPct: 11.2, ProfitFactor: 1.9,
			Metrics: json.RawMessage(`{"sortino_ratio":1.7}`), CreatedAt: time.Now().UTC(),
		},
		{
			RunID: run.ID, InstrumentID: instrument.ID, StrategyTypeID: strategy.ID,
			FastPeriod: 10, SlowPeriod: 20,
			Score: 1.1, SharpeRatio: 0.9, TotalReturnPct: 12.0, WinRatePct: 51.0,
			TotalTrades: 24, MaxDrawdownPct: 16.8, ProfitFactor: 1.4,
			Metrics: json.RawMessage(`{"sortino_ratio":1.0}`), CreatedAt: time.Now().UTC(),
		},
	}
	require.NoError(t, repos.SweepResult.InsertBatch(ctx, results))

	t.Run("ResultIDsAssignedOnInsert", func(t *testing.T) {
		for _, r := range results {
			assert.NotZero(t, r.ID)
		}
	})

	t.Run("DuplicateParamsRejectedWithNullSignal", func(t *testing.T) {
		dup := []*models.SweepResult{{
			RunID: run.ID, InstrumentID: instrument.ID, StrategyTypeID: strategy.ID,
			FastPeriod: 5, SlowPeriod: 20,
			Score: 2.0, SharpeRatio: 1.5, TotalReturnPct: 25.0, WinRatePct: 60.0,
			TotalTrades: 33, MaxDrawdownPct: 10.0, ProfitFactor: 2.0,
			CreatedAt: time.Now().UTC(),
		}}
		assert.Error(t, repos.SweepResult.InsertBatch(ctx, dup),
			"rows with the same periods and no signal period must collide")
	})

	t.Run("GetByRunPaginatesAndFilters", func(t *testing.T) {
		page, total, err := repos.SweepResult.GetByRun(ctx, run.ID, repository.ResultFilter{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, page, 1)
		assert.Equal(t, 1.8, page[0].Score, "pages are ordered by score descending")

		filtered, total, err := repos.SweepResult.GetByRun(ctx, run.ID, repository.ResultFilter{Instrument: "MSFT", Limit: 10})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, filtered)
	})

	t.Run("GetRankedOrdersByScore", func(t *testing.T) {
		ranked, err := repos.SweepResult.GetRanked(ctx, run.ID, instrument.ID, strategy.ID)
		require.NoError(t, err)
		require.Len(t, ranked, 2)
		assert.Greater(t, ranked[0].Score, ranked[1].Score)
	})

	t.Run("GetPairsListsDistinctScopes", func(t *testing.T) {
		pairs, err := repos.SweepResult.GetPairs(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, instrument.ID, pairs[0].InstrumentID)
		assert.Equal(t, strategy.ID, pairs[0].StrategyTypeID)
	})

	t.Run("TagLinksRoundTrip", func(t *testing.T) {
		tag, err := repos.MetricTag.GetOrCreate(ctx, "trend_following")
		require.NoError(t, err)
		require.NoError(t, repos.MetricTag.Link(ctx, results[0].ID, tag.ID))

		tags, err := repos.MetricTag.GetTagsForResult(ctx, results[0].ID)
		require.NoError(t, err)
		require.Len(t, tags, 1)
		assert.Equal(t, "trend_following", tags[0].Name)
	})

	t.Run("SelectionUpsertAndReads", func(t *testing.T) {
		selection := &models.BestSelection{
			RunID:                  run.ID,
			InstrumentID:           instrument.ID,
			StrategyTypeID:         strategy.ID,
			SelectedResultID:       results[0].ID,
			AlgorithmCode:          "top_2_both_match",
			ConfidenceScore:        100,
			AlternativesConsidered: 2,
			FastPeriod:             5,
			SlowPeriod:             20,
			Score:                  1.8,
			SharpeRatio:            1.4,
			TotalReturnPct:         22.5,
			WinRatePct:             58.0,
			TotalTrades:            31,
			CreatedAt:              time.Now().UTC(),
		}
		require.NoError(t, repos.BestSelection.Upsert(ctx, selection))

		// upserting the same scope replaces, not duplicates
		selection.SelectedResultID = results[1].ID
		selection.AlgorithmCode = "highest_score_fallback"
		selection.ConfidenceScore = 37.5
		require.NoError(t, repos.BestSelection.Upsert(ctx, selection))

		best, err := repos.BestSelection.GetBest(ctx, run.ID, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, results[1].ID, best.SelectedResultID)
		assert.Equal(t, "highest_score_fallback", best.AlgorithmCode)

		perInstrument, err := repos.BestSelection.GetBestPerInstrument(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, perInstrument, 1)
		assert.Equal(t, "AAPL", perInstrument[0].Instrument)
	})

	t.Run("UnknownRunIsNotFound", func(t *testing.T) {
		_, err := repos.SweepRun.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
