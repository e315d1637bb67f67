package event

import (
	"iter"
	"sync"
	"sync/atomic"
	"time"
)

type Kind string

const (
	KindStageEntered   Kind = "stage_entered"
	KindToolInvoked    Kind = "tool_invoked"
	KindToolResult     Kind = "tool_result"
	KindStageCompleted Kind = "stage_completed"
	KindFinalOutput    Kind = "final_output"
	KindFailed         Kind = "failed"
)

// Terminal reports whether the kind ends a stream.
func (k Kind) Terminal() bool {
	return k == KindFinalOutput || k == KindFailed
}

// Event is one observable step of a workflow run. Err is never serialized.
type Event struct {
	Seq       int       `json:"seq"`
	Kind      Kind      `json:"kind"`
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Text      string    `json:"text,omitempty"`
	At        time.Time `json:"at"`
	Err       error     `json:"-"`
}

const defaultBuffer = 32

// Stream carries the events of a single run from the producer to one consumer.
// The producer calls Emit and then Finish. Exactly one terminal event is delivered;
// anything emitted after it is dropped. A consumer that stops reading before the
// terminal event must Close the stream, or Wait blocks behind the full buffer.
type Stream struct {
	runID     string
	sessionID string

	ch       chan Event
	closed   chan struct{}
	done     chan struct{}
	consumed atomic.Bool

	closeOnce sync.Once
	doneOnce  sync.Once

	// sendMu orders producers and is held across the blocking send. mu guards the
	// bookkeeping below and is never held while blocked.
	sendMu     sync.Mutex
	mu         sync.Mutex
	seq        int
	terminated bool
	last       Event
	now        func() time.Time
}

func NewStream(runID string, sessionID string) *Stream {
	return &Stream{
		runID:     runID,
		sessionID: sessionID,
		ch:        make(chan Event, defaultBuffer),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

func (s *Stream) RunID() string {
	return s.runID
}

// Emit delivers ev unless the stream already terminated or the consumer closed it.
// It blocks while the buffer is full and the consumer is still reading.
func (s *Stream) Emit(ev Event) bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return false
	}
	s.seq++
	ev.Seq = s.seq
	ev.RunID = s.runID
	ev.SessionID = s.sessionID
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	terminal := ev.Kind.Terminal()
	if terminal {
		s.terminated = true
		s.last = ev
	}
	s.mu.Unlock()

	delivered := false
	select {
	case <-s.closed:
	default:
		select {
		case s.ch <- ev:
			delivered = true
		case <-s.closed:
		}
	}
	if terminal {
		close(s.ch)
	}
	return delivered
}

// Finish marks the run as complete. A run that never emitted a terminal event
// closes the stream without one.
func (s *Stream) Finish() {
	s.sendMu.Lock()
	s.mu.Lock()
	open := !s.terminated
	s.terminated = true
	s.mu.Unlock()
	if open {
		close(s.ch)
	}
	s.sendMu.Unlock()
	s.doneOnce.Do(func() { close(s.done) })
}

// Events yields events in emission order. The sequence can be ranged over once;
// breaking out of the loop closes the stream.
func (s *Stream) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			return
		}
		for ev := range s.ch {
			if !yield(ev) {
				s.Close()
				return
			}
		}
	}
}

// Close stops delivery to the consumer. The run itself keeps going.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Wait blocks until the producer calls Finish.
func (s *Stream) Wait() {
	<-s.done
}

// Done is closed once the producer calls Finish.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Terminal returns the terminal event once the stream has produced one.
func (s *Stream) Terminal() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last.Kind.Terminal()
}
