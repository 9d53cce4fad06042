// Package main provides a CLI for running a parameter sweep locally,
// without the service, database or HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ColeMorton/trading-sub010/internal/backtest"
	"github.com/ColeMorton/trading-sub010/internal/models"
	"github.com/ColeMorton/trading-sub010/internal/selection"
	"github.com/ColeMorton/trading-sub010/internal/sweep"
)

func main() {
	var (
		instruments = flag.String("instruments", "AAPL", "Comma-separated instrument symbols")
		strategy    = flag.String("strategy", models.StrategySMACross, "Strategy type: sma_cross, ema_cross, macd")
		fastRange   = flag.String("fast", "5:50:5", "Fast period range as min:max:step")
		slowRange   = flag.String("slow", "20:200:20", "Slow period range as min:max:step")
		signalRange = flag.String("signal", "", "Signal period range as min:max:step (macd only)")
		minTrades   = flag.Int("min-trades", 0, "Minimum trade count for a combination to qualify")
		top         = flag.Int("top", 10, "Number of ranked results to print per instrument")
		output      = flag.String("output", "", "Optional path for a JSON report")
	)
	flag.Parse()

	logger := newLogger()
	ctx := context.Background()

	spec := buildSpec(*instruments, *strategy, *fastRange, *slowRange, *signalRange, *minTrades, logger)
	combos := sweep.ExpandGrid(spec)
	if len(combos) == 0 {
		logger.Fatal("Grid expands to zero combinations")
	}

	logger.WithFields(logrus.Fields{
		"instruments":  len(spec.Instruments),
		"combinations": len(combos),
	}).Info("Starting local sweep")

	results := evaluateAll(ctx, combos, *minTrades, logger)
	if len(results) == 0 {
		logger.Fatal("No combination produced a qualifying result")
	}

	selections := selectBest(results, spec, logger)
	printReport(results, selections, spec, *top)

	if *output != "" {
		if err := exportJSON(*output, results, selections); err != nil {
			logger.Fatalf("Failed to write report: %v", err)
		}
		logger.WithField("path", *output).Info("Report written")
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}

func buildSpec(instruments, strategy, fastRange, slowRange, signalRange string, minTrades int, logger *logrus.Logger) models.GridSpec {
	grid := models.StrategyGrid{
		Type: strategy,
		Fast: parseRange(fastRange, logger),
		Slow: parseRange(slowRange, logger),
	}
	if signalRange != "" {
		signal := parseRange(signalRange, logger)
		grid.Signal = &signal
	}

	spec := models.GridSpec{
		Instruments: splitSymbols(instruments),
		Strategies:  []models.StrategyGrid{grid},
		MinTrades:   minTrades,
	}
	if err := spec.Validate(); err != nil {
		logger.Fatalf("Invalid sweep grid: %v", err)
	}
	return spec
}

func parseRange(s string, logger *logrus.Logger) models.ParamRange {
	var r models.ParamRange
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &r.Min, &r.Max, &r.Step); err != nil {
		logger.Fatalf("Invalid range %q, expected min:max:step", s)
	}
	return r
}

func splitSymbols(s string) []string {
	var symbols []string
	for _, part := range strings.Split(s, ",") {
		if symbol := strings.TrimSpace(part); symbol != "" {
			symbols = append(symbols, strings.ToUpper(symbol))
		}
	}
	return symbols
}

func evaluateAll(ctx context.Context, combos []sweep.Combination, minTrades int, logger *logrus.Logger) []*models.SweepResult {
	evaluator := backtest.NewEvaluator(logger)
	runID := uuid.New()

	var results []*models.SweepResult
	for _, combo := range combos {
		evaluation, err := evaluator.Evaluate(ctx, combo, minTrades)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"instrument": combo.Instrument,
				"fast":       combo.FastPeriod,
				"slow":       combo.SlowPeriod,
			}).WithError(err).Debug("Combination skipped")
			continue
		}
		results = append(results, &models.SweepResult{
			RunID:          runID,
			Instrument:     combo.Instrument,
			StrategyType:   combo.StrategyType,
			FastPeriod:     combo.FastPeriod,
			SlowPeriod:     combo.SlowPeriod,
			SignalPeriod:   combo.SignalPeriod,
			Score:          evaluation.Score,
			SharpeRatio:    evaluation.SharpeRatio,
			TotalReturnPct: evaluation.TotalReturnPct,
			WinRatePct:     evaluation.WinRatePct,
			TotalTrades:    evaluation.TotalTrades,
			MaxDrawdownPct: evaluation.MaxDrawdownPct,
			ProfitFactor:   evaluation.ProfitFactor,
			TagNames:       sweep.ParseTags(evaluation.MetricType),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func selectBest(results []*models.SweepResult, spec models.GridSpec, logger *logrus.Logger) []*models.BestSelection {
	engine := selection.NewEngine(logger)

	var selections []*models.BestSelection
	for i, symbol := range spec.Instruments {
		var ranked []*models.SweepResult
		for _, result := range results {
			if result.Instrument == symbol {
				ranked = append(ranked, result)
			}
		}
		if len(ranked) == 0 {
			continue
		}
		best := engine.Select(ranked[0].RunID, int64(i+1), 1, ranked)
		if best == nil {
			continue
		}
		best.Instrument = symbol
		best.StrategyType = spec.Strategies[0].Type
		selections = append(selections, best)
	}
	return selections
}

func printReport(results []*models.SweepResult, selections []*models.BestSelection, spec models.GridSpec, top int) {
	for _, symbol := range spec.Instruments {
		fmt.Printf("\n=== %s ===\n", symbol)
		printed := 0
		for _, result := range results {
			if result.Instrument != symbol || printed >= top {
				continue
			}
			printed++
			fmt.Printf("%2d. fast=%-3d slow=%-3d", printed, result.FastPeriod, result.SlowPeriod)
			if result.SignalPeriod != nil {
				fmt.Printf(" signal=%-3d", *result.SignalPeriod)
			}
			fmt.Printf(" score=%.4f sharpe=%.2f return=%.1f%% trades=%d\n",
				result.Score, result.SharpeRatio, result.TotalReturnPct, result.TotalTrades)
		}
	}

	fmt.Println("\n=== Best Parameters ===")
	for _, best := range selections {
		fmt.Printf("%s: fast=%d slow=%d", best.Instrument, best.FastPeriod, best.SlowPeriod)
		if best.SignalPeriod != nil {
			fmt.Printf(" signal=%d", *best.SignalPeriod)
		}
		fmt.Printf(" (algorithm=%s confidence=%.1f over %d alternatives)\n",
			best.AlgorithmCode, best.ConfidenceScore, best.AlternativesConsidered)
	}
}

func exportJSON(path string, results []*models.SweepResult, selections []*models.BestSelection) error {
	report := map[string]any{
		"results":    results,
		"selections": selections,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
