package sweep

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ColeMorton/trading-sub010/internal/models"
	"github.com/ColeMorton/trading-sub010/internal/repository"
)

// memoryStore is an in-memory stand-in for the Postgres repositories, shared
// by the persister and executor tests.
type memoryStore struct {
	mu sync.Mutex

	runs        []*models.SweepRun
	instruments map[string]int64
	strategies  map[string]int64
	tags        map[string]int64
	links       map[[2]int64]int
	results     []*models.SweepResult
	selections  []*models.BestSelection

	nextResultID int64
	nextRefID    int64

	insertErr error
	runErr    error
	batches   []int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		instruments:  make(map[string]int64),
		strategies:   make(map[string]int64),
		tags:         make(map[string]int64),
		links:        make(map[[2]int64]int),
		nextResultID: 1,
		nextRefID:    1,
	}
}

func (s *memoryStore) repositories() *repository.Repositories {
	return &repository.Repositories{
		SweepRun:      (*fakeRunRepo)(s),
		Instrument:    (*fakeInstrumentRepo)(s),
		StrategyType:  (*fakeStrategyRepo)(s),
		MetricTag:     (*fakeTagRepo)(s),
		SweepResult:   (*fakeResultRepo)(s),
		BestSelection: (*fakeSelectionRepo)(s),
	}
}

func (s *memoryStore) ref(table map[string]int64, name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := table[name]; ok {
		return id
	}
	id := s.nextRefID
	s.nextRefID++
	table[name] = id
	return id
}

type fakeRunRepo memoryStore

func (f *fakeRunRepo) Create(_ context.Context, run *models.SweepRun) error {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runErr != nil {
		return s.runErr
	}
	s.runs = append(s.runs, run)
	return nil
}

func (f *fakeRunRepo) GetByID(_ context.Context, id uuid.UUID) (*models.SweepRun, error) {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeRunRepo) List(_ context.Context, limit int) ([]*models.SweepRun, int, error) {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(s.runs)
	if limit > 0 && limit < total {
		return s.runs[:limit], total, nil
	}
	return s.runs, total, nil
}

type fakeInstrumentRepo memoryStore

func (f *fakeInstrumentRepo) GetOrCreate(_ context.Context, symbol string) (*models.Instrument, error) {
	s := (*memoryStore)(f)
	return &models.Instrument{ID: s.ref(s.instruments, symbol), Symbol: symbol}, nil
}

func (f *fakeInstrumentRepo) GetBySymbol(_ context.Context, symbol string) (*models.Instrument, error) {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.instruments[symbol]; ok {
		return &models.Instrument{ID: id, Symbol: symbol}, nil
	}
	return nil, models.ErrNotFound
}

type fakeStrategyRepo memoryStore

func (f *fakeStrategyRepo) GetOrCreate(_ context.Context, name string) (*models.StrategyType, error) {
	s := (*memoryStore)(f)
	return &models.StrategyType{ID: s.ref(s.strategies, name), Name: name}, nil
}

type fakeTagRepo memoryStore

func (f *fakeTagRepo) GetOrCreate(_ context.Context, name string) (*models.MetricTypeTag, error) {
	s := (*memoryStore)(f)
	return &models.MetricTypeTag{ID: s.ref(s.tags, name), Name: name}, nil
}

func (f *fakeTagRepo) Link(_ context.Context, resultID, tagID int64) error {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[[2]int64{resultID, tagID}]++
	return nil
}

func (f *fakeTagRepo) GetTagsForResult(_ context.Context, resultID int64) ([]*models.MetricTypeTag, error) {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var tags []*models.MetricTypeTag
	for key := range s.links {
		if key[0] != resultID {
			continue
		}
		for name, id := range s.tags {
			if id == key[1] {
				tags = append(tags, &models.MetricTypeTag{ID: id, Name: name})
			}
		}
	}
	return tags, nil
}

type fakeResultRepo memoryStore

func (f *fakeResultRepo) InsertBatch(_ context.Context, results []*models.SweepResult) error {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.batches = append(s.batches, len(results))
	for _, r := range results {
		r.ID = s.nextResultID
		s.nextResultID++
		s.results = append(s.results, r)
	}
	return nil
}

func (f *fakeResultRepo) GetByRun(_ context.Context, runID uuid.UUID, filter repository.ResultFilter) ([]*models.SweepResult, int, error) {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SweepResult
	for _, r := range s.results {
		if r.RunID == runID && (filter.Instrument == "" || r.Instrument == filter.Instrument) {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (f *fakeResultRepo) GetRanked(_ context.Context, runID uuid.UUID, instrumentID, strategyTypeID int64) ([]*models.SweepResult, error) {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SweepResult
	for _, r := range s.results {
		if r.RunID == runID && r.InstrumentID == instrumentID && r.StrategyTypeID == strategyTypeID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeResultRepo) GetPairs(_ context.Context, runID uuid.UUID) ([]repository.ResultPair, error) {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[repository.ResultPair]struct{})
	var pairs []repository.ResultPair
	for _, r := range s.results {
		if r.RunID != runID {
			continue
		}
		pair := repository.ResultPair{InstrumentID: r.InstrumentID, StrategyTypeID: r.StrategyTypeID}
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

type fakeSelectionRepo memoryStore

func (f *fakeSelectionRepo) Upsert(_ context.Context, selection *models.BestSelection) error {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.selections {
		if existing.RunID == selection.RunID &&
			existing.InstrumentID == selection.InstrumentID &&
			existing.StrategyTypeID == selection.StrategyTypeID {
			s.selections[i] = selection
			return nil
		}
	}
	s.selections = append(s.selections, selection)
	return nil
}

func (f *fakeSelectionRepo) GetBest(_ context.Context, runID uuid.UUID, instrument string) (*models.BestSelection, error) {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.BestSelection
	for _, sel := range s.selections {
		if sel.RunID != runID {
			continue
		}
		if instrument != "" && sel.Instrument != instrument {
			continue
		}
		if best == nil || sel.ConfidenceScore > best.ConfidenceScore {
			best = sel
		}
	}
	if best == nil {
		return nil, models.ErrNotFound
	}
	return best, nil
}

func (f *fakeSelectionRepo) GetBestPerInstrument(_ context.Context, runID uuid.UUID) ([]*models.BestSelection, error) {
	s := (*memoryStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	byInstrument := make(map[int64]*models.BestSelection)
	for _, sel := range s.selections {
		if sel.RunID != runID {
			continue
		}
		cur, ok := byInstrument[sel.InstrumentID]
		if !ok || sel.ConfidenceScore > cur.ConfidenceScore {
			byInstrument[sel.InstrumentID] = sel
		}
	}
	var out []*models.BestSelection
	for _, sel := range byInstrument {
		out = append(out, sel)
	}
	return out, nil
}

// capturingPublisher records published events for assertions
type capturingPublisher struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (p *capturingPublisher) Publish(_ uuid.UUID, event models.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) snapshot() []models.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.ProgressEvent, len(p.events))
	copy(out, p.events)
	return out
}

// stubEvaluator delegates to a function so each test controls outcomes
type stubEvaluator struct {
	fn func(ctx context.Context, combo Combination, minTrades int) (*Evaluation, error)
}

func (s *stubEvaluator) Evaluate(ctx context.Context, combo Combination, minTrades int) (*Evaluation, error) {
	return s.fn(ctx, combo, minTrades)
}
