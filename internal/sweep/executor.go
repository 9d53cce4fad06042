// Package sweep executes parameter-sweep backtest jobs across a bounded
// worker pool, streaming progress and persisting results incrementally.
package sweep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ColeMorton/trading-sub010/internal/config"
	"github.com/ColeMorton/trading-sub010/internal/metrics"
	"github.com/ColeMorton/trading-sub010/internal/models"
	"github.com/ColeMorton/trading-sub010/internal/registry"
	"github.com/ColeMorton/trading-sub010/internal/repository"
	"github.com/ColeMorton/trading-sub010/internal/selection"
)

// Executor runs sweep jobs. One call to Run handles one job from the running
// transition through its terminal state.
type Executor struct {
	registry    registry.Store
	broadcaster Publisher
	persister   *Persister
	results     repository.SweepResultRepository
	selections  repository.BestSelectionRepository
	selector    *selection.Engine
	evaluator   Evaluator

	workers            int
	batchSize          int
	checkpointInterval time.Duration
	logger             *logrus.Logger
}

// Publisher is the progress fan-out surface the executor writes to
type Publisher interface {
	Publish(jobID uuid.UUID, event models.ProgressEvent)
}

// NewExecutor creates an executor wired to the given collaborators
func NewExecutor(
	reg registry.Store,
	broadcaster Publisher,
	persister *Persister,
	repos *repository.Repositories,
	selector *selection.Engine,
	evaluator Evaluator,
	cfg *config.SweepConfig,
	logger *logrus.Logger,
) *Executor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batchSize := cfg.PersistBatchSize
	if batchSize <= 0 {
		batchSize = 250
	}
	interval := cfg.CheckpointInterval()
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Executor{
		registry:           reg,
		broadcaster:        broadcaster,
		persister:          persister,
		results:            repos.SweepResult,
		selections:         repos.BestSelection,
		selector:           selector,
		evaluator:          evaluator,
		workers:            workers,
		batchSize:          batchSize,
		checkpointInterval: interval,
		logger:             logger,
	}
}

// Run executes the job to a terminal state. It is intended to be dispatched
// on its own goroutine per job.
func (e *Executor) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := e.registry.Get(jobID)
	if err != nil {
		return err
	}

	combos := ExpandGrid(job.Grid)
	if len(combos) == 0 {
		_, terr := e.registry.Transition(jobID, models.JobStatusFailed, func(j *models.Job) {
			j.ErrorMessage = models.ErrEmptyGrid.Error()
		})
		if terr != nil {
			return terr
		}
		return models.ErrEmptyGrid
	}

	total := len(combos)
	if _, err := e.registry.Transition(jobID, models.JobStatusRunning, func(j *models.Job) {
		j.TotalCombinations = total
	}); err != nil {
		// cancelled while pending
		if errors.Is(err, models.ErrInvalidTransition) {
			return nil
		}
		return err
	}
	started := time.Now()

	run, err := e.createRun(ctx, jobID, job.Grid)
	if err != nil {
		return e.failJob(jobID, fmt.Errorf("%w: %v", models.ErrPersistence, err))
	}

	completed, failed, persistErr := e.runPool(ctx, jobID, run.ID, job.Grid.MinTrades, combos)

	e.syncCounters(jobID, total, completed, failed)
	metrics.RecordJobDuration(time.Since(started).Seconds())

	if persistErr != nil {
		return e.failJob(jobID, persistErr)
	}

	if e.cancelled(ctx, jobID) {
		_, err := e.registry.Transition(jobID, models.JobStatusCancelled, nil)
		return err
	}

	succeeded := completed - failed
	if succeeded == 0 {
		return e.failJob(jobID, models.ErrNoSuccessfulEvaluations)
	}

	if err := e.runSelection(ctx, run.ID); err != nil {
		return e.failJob(jobID, fmt.Errorf("%w: selection: %v", models.ErrPersistence, err))
	}

	_, err = e.registry.Transition(jobID, models.JobStatusCompleted, nil)
	return err
}

// createRun records the sweep run row with a snapshot of the submitted grid
func (e *Executor) createRun(ctx context.Context, jobID uuid.UUID, grid models.GridSpec) (*models.SweepRun, error) {
	snapshot, err := json.Marshal(grid)
	if err != nil {
		return nil, err
	}
	run := &models.SweepRun{
		ID:           uuid.New(),
		JobID:        jobID,
		GridSnapshot: snapshot,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.persister.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	if _, err := e.registry.Update(jobID, func(j *models.Job) {
		j.RunID = &run.ID
	}); err != nil {
		return nil, err
	}
	return run, nil
}

// runPool distributes combinations across the worker pool and persists
// successes in bounded batches. It returns the completed and failed counts
// and the first persistence error, if any.
func (e *Executor) runPool(ctx context.Context, jobID, runID uuid.UUID, minTrades int, combos []Combination) (int, int, error) {
	total := len(combos)

	var completed, failed atomic.Int64
	limiter := rate.NewLimiter(rate.Every(e.checkpointInterval), 1)

	poolCtx, stopPool := context.WithCancel(ctx)
	defer stopPool()

	work := make(chan Combination)
	resultCh := make(chan *models.SweepResult, e.workers)

	// dispatcher stops feeding once cancellation is observed
	go func() {
		defer close(work)
		for _, combo := range combos {
			if poolCtx.Err() != nil || e.registry.IsCancelRequested(jobID) {
				return
			}
			select {
			case work <- combo:
			case <-poolCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for combo := range work {
				if poolCtx.Err() != nil || e.registry.IsCancelRequested(jobID) {
					return
				}
				result := e.evaluateOne(poolCtx, jobID, runID, minTrades, combo, &completed, &failed)
				e.checkpoint(jobID, limiter, int(completed.Load()), total)
				if result != nil {
					select {
					case resultCh <- result:
					case <-poolCtx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// collector: the single writer path for this run
	var persistErr error
	batch := make([]*models.SweepResult, 0, e.batchSize)
	flush := func() {
		if len(batch) == 0 || persistErr != nil {
			return
		}
		if err := e.persister.Persist(ctx, runID, batch); err != nil {
			persistErr = err
			stopPool()
		}
		batch = batch[:0]
	}
	for result := range resultCh {
		if persistErr != nil {
			continue
		}
		batch = append(batch, result)
		if len(batch) >= e.batchSize {
			flush()
		}
	}
	flush()

	return int(completed.Load()), int(failed.Load()), persistErr
}

// evaluateOne runs a single combination and converts its outcome to a
// result row. Failed evaluations are logged and excluded from persistence.
func (e *Executor) evaluateOne(ctx context.Context, jobID, runID uuid.UUID, minTrades int, combo Combination, completed, failed *atomic.Int64) *models.SweepResult {
	start := time.Now()
	eval, err := e.evaluator.Evaluate(ctx, combo, minTrades)
	completed.Add(1)

	if err != nil {
		failed.Add(1)
		metrics.RecordEvaluation("error", time.Since(start).Seconds())
		e.logger.WithFields(logrus.Fields{
			"job_id":     jobID,
			"instrument": combo.Instrument,
			"strategy":   combo.StrategyType,
			"fast":       combo.FastPeriod,
			"slow":       combo.SlowPeriod,
		}).WithError(err).Warn("Evaluation failed, combination skipped")
		return nil
	}
	metrics.RecordEvaluation("success", time.Since(start).Seconds())

	metricsBag, merr := json.Marshal(eval.Metrics)
	if merr != nil {
		metricsBag = []byte("{}")
	}

	return &models.SweepResult{
		RunID:          runID,
		Instrument:     combo.Instrument,
		StrategyType:   combo.StrategyType,
		FastPeriod:     combo.FastPeriod,
		SlowPeriod:     combo.SlowPeriod,
		SignalPeriod:   combo.SignalPeriod,
		Score:          eval.Score,
		SharpeRatio:    eval.SharpeRatio,
		TotalReturnPct: eval.TotalReturnPct,
		WinRatePct:     eval.WinRatePct,
		TotalTrades:    eval.TotalTrades,
		MaxDrawdownPct: eval.MaxDrawdownPct,
		ProfitFactor:   eval.ProfitFactor,
		Metrics:        metricsBag,
		TagNames:       ParseTags(eval.MetricType),
		CreatedAt:      time.Now().UTC(),
	}
}

// checkpoint publishes a progress event at a bounded cadence
func (e *Executor) checkpoint(jobID uuid.UUID, limiter *rate.Limiter, completed, total int) {
	if !limiter.Allow() {
		return
	}
	percent := progressPercent(completed, total)
	// Publishing inside the mutation keeps the stream ordered with the
	// recorded progress: the job lock serializes concurrent checkpoints
	// and the clamp keeps published percents monotonic.
	_, _ = e.registry.Update(jobID, func(j *models.Job) {
		if completed > j.CompletedCount {
			j.CompletedCount = completed
		}
		if percent > j.ProgressPercent {
			j.ProgressPercent = percent
		}
		e.broadcaster.Publish(jobID, models.ProgressEvent{
			Percent:   j.ProgressPercent,
			Message:   fmt.Sprintf("%d/%d combinations evaluated", j.CompletedCount, total),
			Timestamp: time.Now().UTC(),
		})
	})
}

// syncCounters records the final true counters and progress on the job
func (e *Executor) syncCounters(jobID uuid.UUID, total, completed, failed int) {
	percent := progressPercent(completed, total)
	_, _ = e.registry.Update(jobID, func(j *models.Job) {
		j.CompletedCount = completed
		j.FailedCount = failed
		if percent > j.ProgressPercent {
			j.ProgressPercent = percent
		}
	})
}

// runSelection invokes the selection engine once per (instrument, strategy)
// pair present among the run's results.
func (e *Executor) runSelection(ctx context.Context, runID uuid.UUID) error {
	pairs, err := e.results.GetPairs(ctx, runID)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		ranked, err := e.results.GetRanked(ctx, runID, pair.InstrumentID, pair.StrategyTypeID)
		if err != nil {
			return err
		}
		best := e.selector.Select(runID, pair.InstrumentID, pair.StrategyTypeID, ranked)
		if best == nil {
			continue
		}
		if err := e.selections.Upsert(ctx, best); err != nil {
			return err
		}
		metrics.RecordSelection(best.AlgorithmCode)
	}
	return nil
}

// failJob transitions the job to failed with the error surfaced
func (e *Executor) failJob(jobID uuid.UUID, cause error) error {
	_, terr := e.registry.Transition(jobID, models.JobStatusFailed, func(j *models.Job) {
		j.ErrorMessage = cause.Error()
	})
	if terr != nil {
		return terr
	}
	return cause
}

func (e *Executor) cancelled(ctx context.Context, jobID uuid.UUID) bool {
	return ctx.Err() != nil || e.registry.IsCancelRequested(jobID)
}

func progressPercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return completed * 100 / total
}
