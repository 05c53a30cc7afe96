package live

import (
	"context"
	"sync"

	"github.com/Aaditya-brrt/adminflow/pkg/models"
)

const (
	StepUpdateEvent   = "STEP_UPDATE"
	StatusUpdateEvent = "STATUS_UPDATE"
)

// Event is one real-time update for the viewers of a run.
type Event struct {
	Type   string           `json:"type"`
	RunID  string           `json:"run_id"`
	Step   *models.LiveStep `json:"step,omitempty"`
	Status models.RunStatus `json:"status,omitempty"`
}

// Channel returns the pub/sub channel name for a run.
func Channel(runID string) string {
	return "workflow_run:" + runID
}

// Broadcaster publishes run events to live viewers. Publishing is best
// effort; callers must not fail a run on a broadcast error.
type Broadcaster interface {
	Publish(ctx context.Context, ev Event) error
}

// MemoryBroadcaster fans events out to in-process subscribers. Used in
// tests and in single-node deployments without redis.
type MemoryBroadcaster struct {
	mu   sync.Mutex
	subs map[string][]chan Event
}

func NewMemoryBroadcaster() *MemoryBroadcaster {
	return &MemoryBroadcaster{subs: make(map[string][]chan Event)}
}

// Subscribe returns a buffered channel of events for one run. Events
// published while the buffer is full are dropped for that subscriber.
func (b *MemoryBroadcaster) Subscribe(runID string) <-chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[runID] = append(b.subs[runID], ch)
	b.mu.Unlock()
	return ch
}

func (b *MemoryBroadcaster) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}
