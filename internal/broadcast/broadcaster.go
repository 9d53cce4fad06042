// Package broadcast fans progress events out to per-job subscriber channels.
package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ColeMorton/trading-sub010/internal/metrics"
	"github.com/ColeMorton/trading-sub010/internal/models"
)

// Publisher is the write side used by the sweep executor
type Publisher interface {
	Publish(jobID uuid.UUID, event models.ProgressEvent)
	Close(jobID uuid.UUID, final models.ProgressEvent)
}

// Subscriber is the read side used by the HTTP streaming layer
type Subscriber interface {
	Subscribe(jobID uuid.UUID) (<-chan models.ProgressEvent, func(), error)
}

// topic holds the subscribers and replay state for one job
type topic struct {
	mu       sync.Mutex
	subs     map[int]chan models.ProgressEvent
	nextID   int
	closed   bool
	last     *models.ProgressEvent
	closedAt time.Time
}

// Broadcaster routes progress events from one producer per job to any number
// of subscribers. Channels are buffered; a subscriber that falls behind has
// intermediate events dropped rather than blocking the producer. Terminal
// events are never dropped.
type Broadcaster struct {
	mu     sync.RWMutex
	topics map[uuid.UUID]*topic
	buffer int
	logger *logrus.Logger
}

// NewBroadcaster creates a broadcaster with the given per-subscriber channel
// buffer size.
func NewBroadcaster(buffer int, logger *logrus.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Broadcaster{
		topics: make(map[uuid.UUID]*topic),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new subscriber for a job's progress events. If the
// job already finished, the terminal event is replayed on the returned
// channel before it is closed. The returned func unsubscribes and must be
// called exactly once.
func (b *Broadcaster) Subscribe(jobID uuid.UUID) (<-chan models.ProgressEvent, func(), error) {
	t := b.getOrCreateTopic(jobID)

	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan models.ProgressEvent, b.buffer)

	if t.closed {
		// Late subscriber: replay the terminal event and hand back a
		// closed channel.
		if t.last != nil {
			ch <- *t.last
		}
		close(ch)
		return ch, func() {}, nil
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	metrics.UpdateActiveSubscribers(1)

	unsubscribe := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.subs[id]; !ok {
			return
		}
		delete(t.subs, id)
		close(ch)
		metrics.UpdateActiveSubscribers(-1)
	}
	return ch, unsubscribe, nil
}

// Publish delivers an event to every current subscriber of the job. Events
// published after Close are dropped.
func (b *Broadcaster) Publish(jobID uuid.UUID, event models.ProgressEvent) {
	t := b.getOrCreateTopic(jobID)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.last = &event
	targets := make([]chan models.ProgressEvent, 0, len(t.subs))
	for _, ch := range t.subs {
		targets = append(targets, ch)
	}
	t.mu.Unlock()

	metrics.RecordProgressEvent()
	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			// subscriber buffer full, drop
		}
	}
}

// Close publishes the final terminal event, closes all subscriber channels
// and marks the topic for replay. Close is idempotent.
func (b *Broadcaster) Close(jobID uuid.UUID, final models.ProgressEvent) {
	t := b.getOrCreateTopic(jobID)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.closedAt = time.Now().UTC()
	t.last = &final
	subs := t.subs
	t.subs = map[int]chan models.ProgressEvent{}
	t.mu.Unlock()

	metrics.RecordProgressEvent()
	for _, ch := range subs {
		// The terminal event must reach every subscriber. The topic is
		// closed, so no other sender competes: evict stale checkpoints
		// from a full buffer until the final event fits.
		delivered := false
		for !delivered {
			select {
			case ch <- final:
				delivered = true
			default:
				select {
				case <-ch:
				default:
				}
			}
		}
		close(ch)
		metrics.UpdateActiveSubscribers(-1)
	}

	b.logger.WithFields(logrus.Fields{
		"job_id":      jobID,
		"subscribers": len(subs),
	}).Debug("Progress topic closed")
}

// Prune removes closed topics whose terminal event is older than retention.
// The janitor calls this periodically so replay state does not accumulate
// forever.
func (b *Broadcaster) Prune(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)

	b.mu.Lock()
	var pruned int
	for id, t := range b.topics {
		t.mu.Lock()
		expired := t.closed && t.closedAt.Before(cutoff)
		t.mu.Unlock()
		if expired {
			delete(b.topics, id)
			pruned++
		}
	}
	remaining := len(b.topics)
	b.mu.Unlock()

	metrics.UpdateActiveTopics(float64(remaining))
	if pruned > 0 {
		b.logger.WithField("pruned", pruned).Debug("Pruned closed progress topics")
	}
	return pruned
}

func (b *Broadcaster) getOrCreateTopic(jobID uuid.UUID) *topic {
	b.mu.RLock()
	t, ok := b.topics[jobID]
	b.mu.RUnlock()
	if ok {
		return t
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok = b.topics[jobID]; ok {
		return t
	}
	t = &topic{subs: make(map[int]chan models.ProgressEvent)}
	b.topics[jobID] = t
	metrics.UpdateActiveTopics(float64(len(b.topics)))
	return t
}
