package sweep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ColeMorton/trading-sub010/internal/metrics"
	"github.com/ColeMorton/trading-sub010/internal/models"
	"github.com/ColeMorton/trading-sub010/internal/repository"
)

// Persister resolves reference rows and writes evaluated results to storage
// in bounded batches.
type Persister struct {
	runs        repository.SweepRunRepository
	instruments repository.InstrumentRepository
	strategies  repository.StrategyTypeRepository
	results     repository.SweepResultRepository
	tags        repository.MetricTagRepository
	batchSize   int
	logger      *logrus.Logger
}

// NewPersister creates a persister over the given repositories
func NewPersister(repos *repository.Repositories, batchSize int, logger *logrus.Logger) *Persister {
	if batchSize <= 0 {
		batchSize = 250
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Persister{
		runs:        repos.SweepRun,
		instruments: repos.Instrument,
		strategies:  repos.StrategyType,
		results:     repos.SweepResult,
		tags:        repos.MetricTag,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// CreateRun records the sweep run row for a job before its first result
func (p *Persister) CreateRun(ctx context.Context, run *models.SweepRun) error {
	if err := p.runs.Create(ctx, run); err != nil {
		return fmt.Errorf("%w: creating sweep run: %v", models.ErrPersistence, err)
	}
	return nil
}

// Persist validates and writes a batch of results for a run. A duplicate
// parameter tuple within the batch is an error, not a silent drop. Reference
// rows are resolved get-or-create, results are inserted in bounded
// sub-batches and classification tags are linked afterwards.
func (p *Persister) Persist(ctx context.Context, runID uuid.UUID, batch []*models.SweepResult) error {
	if len(batch) == 0 {
		return nil
	}

	if err := checkBatchUniqueness(batch); err != nil {
		return err
	}

	if err := p.resolveReferences(ctx, batch); err != nil {
		return err
	}

	start := time.Now()
	for offset := 0; offset < len(batch); offset += p.batchSize {
		end := offset + p.batchSize
		if end > len(batch) {
			end = len(batch)
		}
		if err := p.results.InsertBatch(ctx, batch[offset:end]); err != nil {
			return fmt.Errorf("%w: inserting results: %v", models.ErrPersistence, err)
		}
	}
	metrics.RecordResultsPersisted(len(batch), time.Since(start).Seconds())

	if err := p.linkTags(ctx, batch); err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"results": len(batch),
	}).Debug("Persisted result batch")
	return nil
}

// checkBatchUniqueness rejects a batch containing the same parameter tuple
// twice for one instrument and strategy.
func checkBatchUniqueness(batch []*models.SweepResult) error {
	seen := make(map[string]struct{}, len(batch))
	for _, r := range batch {
		key := fmt.Sprintf("%s|%s|%s", r.Instrument, r.StrategyType, r.ParamKey())
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s %s params %s", models.ErrDuplicateResult, r.Instrument, r.StrategyType, r.ParamKey())
		}
		seen[key] = struct{}{}
	}
	return nil
}

// resolveReferences fills instrument and strategy type foreign keys,
// creating reference rows on first sight.
func (p *Persister) resolveReferences(ctx context.Context, batch []*models.SweepResult) error {
	instrumentIDs := make(map[string]int64)
	strategyIDs := make(map[string]int64)

	for _, r := range batch {
		if _, ok := instrumentIDs[r.Instrument]; !ok {
			inst, err := p.instruments.GetOrCreate(ctx, r.Instrument)
			if err != nil {
				return fmt.Errorf("%w: resolving instrument %s: %v", models.ErrPersistence, r.Instrument, err)
			}
			instrumentIDs[r.Instrument] = inst.ID
		}
		if _, ok := strategyIDs[r.StrategyType]; !ok {
			st, err := p.strategies.GetOrCreate(ctx, r.StrategyType)
			if err != nil {
				return fmt.Errorf("%w: resolving strategy type %s: %v", models.ErrPersistence, r.StrategyType, err)
			}
			strategyIDs[r.StrategyType] = st.ID
		}
		r.InstrumentID = instrumentIDs[r.Instrument]
		r.StrategyTypeID = strategyIDs[r.StrategyType]
	}
	return nil
}

// linkTags resolves each result's classification labels against the tag
// vocabulary and writes the join rows. Already-linked pairs are skipped by
// the repository.
func (p *Persister) linkTags(ctx context.Context, batch []*models.SweepResult) error {
	tagIDs := make(map[string]int64)

	for _, r := range batch {
		for _, name := range r.TagNames {
			id, ok := tagIDs[name]
			if !ok {
				tag, err := p.tags.GetOrCreate(ctx, name)
				if err != nil {
					return fmt.Errorf("%w: resolving tag %s: %v", models.ErrPersistence, name, err)
				}
				id = tag.ID
				tagIDs[name] = id
			}
			if err := p.tags.Link(ctx, r.ID, id); err != nil {
				return fmt.Errorf("%w: linking tag %s: %v", models.ErrPersistence, name, err)
			}
		}
	}
	return nil
}

// ParseTags splits a metric-type annotation into normalized tag labels.
// Empty annotations yield no tags.
func ParseTags(annotation string) []string {
	if annotation == "" {
		return nil
	}
	parts := strings.Split(annotation, ",")
	var tags []string
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		tag := strings.ToLower(strings.TrimSpace(part))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
