package dupreclaim

import (
	"sync"

	"github.com/google/uuid"
)

// eventBuffer is the capacity of a session's event channel
const eventBuffer = 64

// EventKind classifies session events
type EventKind int

const (
	EventProgress EventKind = iota + 1 // Stage counters
	EventComplete                      // Terminal: Records holds the result, possibly empty
	EventFailed                        // Terminal: Err holds the cause
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventComplete:
		return "complete"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one message on a session's channel
type Event struct {
	Kind      EventKind
	SessionID string
	Stage     Stage
	Processed int
	Total     int
	Records   []DuplicateRecord
	Err       error
}

// Terminal reports whether e is the last event of a run
func (e Event) Terminal() bool {
	return e.Kind == EventComplete || e.Kind == EventFailed
}

// Session runs one scan at a time off the caller's goroutine and keeps the
// aggregation of the last completed scan
type Session struct {
	opts Options

	mu       sync.Mutex
	running  bool
	shutdown chan struct{}
	done     chan struct{} // Closed when the current run's worker returns
	stopped  bool
	id       string
	agg      *Aggregation
}

// NewSession creates an idle session
func NewSession(opts Options) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Session{opts: opts}, nil
}

// Start validates roots and launches a scan. The returned channel carries
// progress events in stage order, then exactly one terminal event, and is
// then closed. Invalid roots and a scan already running are reported here
// without starting any work.
//
// The caller must drain the channel unless it calls Cancel. After Cancel the
// worker never blocks: progress events that do not fit the buffer are
// dropped, and so is the terminal event, in which case the channel is closed
// without one. Wait reports that case as ErrInterrupted.
func (s *Session) Start(roots []string) (<-chan Event, error) {
	validRoots, err := ValidateRoots(roots)
	if err != nil {
		return nil, err
	}

	scanner, err := NewScanner(s.opts)
	if err != nil {
		return nil, err
	}
	resolver, err := NewResolver(s.opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}
	s.running = true
	s.stopped = false
	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})
	s.id = uuid.NewString()
	s.agg = nil
	shutdownChan, done, id := s.shutdown, s.done, s.id
	s.mu.Unlock()

	DebugLog("session", "starting session %s on %v", id, validRoots)

	events := make(chan Event, eventBuffer)
	go func() {
		defer close(done)
		s.run(shutdownChan, id, validRoots, scanner, resolver, events)
	}()
	return events, nil
}

func (s *Session) run(shutdownChan <-chan struct{}, id string, roots []string, scanner *Scanner, resolver *Resolver, events chan<- Event) {
	defer close(events)

	progress := ProgressFunc(func(stage Stage, processed, total int) {
		ev := Event{Kind: EventProgress, SessionID: id, Stage: stage, Processed: processed, Total: total}
		select {
		case events <- ev:
		case <-shutdownChan:
		}
	})

	records, err := findDuplicates(shutdownChan, roots, scanner, resolver, progress)

	s.mu.Lock()
	s.running = false
	if err == nil {
		s.agg = NewAggregation(records)
	}
	s.mu.Unlock()

	if err != nil {
		DebugLog("session", "session %s failed: %v", id, err)
		sendTerminal(shutdownChan, events, Event{Kind: EventFailed, SessionID: id, Err: err})
		return
	}

	DebugLog("session", "session %s complete with %d records", id, len(records))
	sendTerminal(shutdownChan, events, Event{Kind: EventComplete, SessionID: id, Records: records})
}

// sendTerminal delivers ev, waiting for the reader unless the run was
// cancelled and the buffer stays full
func sendTerminal(shutdownChan <-chan struct{}, events chan<- Event, ev Event) {
	select {
	case events <- ev:
		return
	case <-shutdownChan:
	}
	select {
	case events <- ev:
	default:
		DebugLog("session", "session %s cancelled with a full buffer, dropping %s event", ev.SessionID, ev.Kind)
	}
}

// Cancel stops the running scan, which then fails with ErrInterrupted
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && !s.stopped {
		s.stopped = true
		close(s.shutdown)
	}
}

// Running reports whether a scan is in flight
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ID returns the identifier of the current or last run
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Aggregation returns the engine built from the last completed scan, or nil
// while a scan is running or after a failed one
func (s *Session) Aggregation() *Aggregation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg
}

// Wait drains events until the terminal one, passing each progress event to
// progress, and returns the terminal event's records
func Wait(events <-chan Event, progress ProgressReporter) ([]DuplicateRecord, error) {
	progress = orNop(progress)
	for ev := range events {
		switch ev.Kind {
		case EventProgress:
			progress.Progress(ev.Stage, ev.Processed, ev.Total)
		case EventFailed:
			return nil, ev.Err
		case EventComplete:
			return ev.Records, nil
		}
	}
	return nil, ErrInterrupted
}
