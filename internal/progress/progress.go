// Package progress carries progress events from long-running operations to
// any number of independent subscribers (log, websocket, NATS, status cache).
package progress

import (
	"sort"
	"sync"
	"time"

	"popsim/internal/model"
)

// Pipeline stages, in run order
const (
	StagePrepare      = "prepare"
	StageLoadClusters = "load_clusters"
	StageAllocate     = "allocate"
	StageSelectPanel  = "select_panel"
	StageAgents       = "agents"
	StageReactions    = "reactions"
	StagePollAnswers  = "poll_answers"
	StageBuildResults = "build_results"
	StageStats        = "stats"
	StageSummary      = "summary"
	StagePersist      = "persist"
	StageDone         = "done"
	StageFailed       = "failed"
)

// Event is one progress report. Item names the entity just processed, if any.
type Event struct {
	RunID    string        `json:"runId"`
	Kind     model.RunKind `json:"kind"`
	Stage    string        `json:"stage"`
	Current  int           `json:"current"`
	Total    int           `json:"total"`
	Item     string        `json:"item,omitempty"`
	ResultID string        `json:"resultId,omitempty"`
	Error    string        `json:"error,omitempty"`
	At       time.Time     `json:"at"`
}

// Terminal reports whether the event ends its run
func (e Event) Terminal() bool {
	return e.Stage == StageDone || e.Stage == StageFailed
}

// Handler receives events. It runs inline with generation and must not block.
type Handler func(Event)

// Reporter is what generation code reports progress through
type Reporter interface {
	Report(stage string, current, total int, item string)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(stage string, current, total int, item string)

// Report implements Reporter
func (f ReporterFunc) Report(stage string, current, total int, item string) {
	f(stage, current, total, item)
}

// Nop discards progress
var Nop Reporter = ReporterFunc(func(string, int, int, string) {})

// Bus fans events out to subscribers synchronously, in subscription order
type Bus struct {
	mu   sync.RWMutex
	subs map[int]Handler
	next int
	now  func() time.Time
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]Handler),
		now:  time.Now,
	}
}

// Subscribe registers h and returns a function that removes it
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers e to every subscriber
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = b.now()
	}
	b.mu.RLock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = b.subs[id]
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// ForRun returns a Reporter that stamps events with a run id and kind
func (b *Bus) ForRun(runID string, kind model.RunKind) *RunReporter {
	return &RunReporter{bus: b, runID: runID, kind: kind}
}

// RunReporter publishes one run's events
type RunReporter struct {
	bus   *Bus
	runID string
	kind  model.RunKind
}

// Report implements Reporter
func (r *RunReporter) Report(stage string, current, total int, item string) {
	r.bus.Publish(Event{RunID: r.runID, Kind: r.kind, Stage: stage, Current: current, Total: total, Item: item})
}

// Done publishes the terminal success event naming the stored result
func (r *RunReporter) Done(resultID string, total int) {
	r.bus.Publish(Event{RunID: r.runID, Kind: r.kind, Stage: StageDone, Current: total, Total: total, ResultID: resultID})
}

// Fail publishes the terminal failure event
func (r *RunReporter) Fail(err error) {
	r.bus.Publish(Event{RunID: r.runID, Kind: r.kind, Stage: StageFailed, Error: err.Error()})
}

// Async wraps h so it runs on its own goroutine behind a buffer of size n.
// Non-terminal events are dropped when the buffer is full; terminal events
// always wait for room. stop drains the buffer and waits for h to return.
func Async(h Handler, n int) (Handler, func()) {
	ch := make(chan Event, n)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			h(e)
		}
	}()

	var (
		mu     sync.RWMutex
		closed bool
	)
	wrapped := func(e Event) {
		mu.RLock()
		defer mu.RUnlock()
		if closed {
			return
		}
		if e.Terminal() {
			ch <- e
			return
		}
		select {
		case ch <- e:
		default:
		}
	}
	stop := func() {
		mu.Lock()
		if !closed {
			closed = true
			close(ch)
		}
		mu.Unlock()
		<-done
	}
	return wrapped, stop
}
