// Package session runs MRZ scans for hosts that receive OCR frames from a
// camera pipeline.
//
// A Session owns one mrz.Accumulator and makes sure only one frame is applied
// to it at a time. Hosts that deliver frames faster than they are processed
// use Submit, which drops a frame that arrives while another is in flight,
// the same way a camera analyzer skips frames while the recognizer is busy.
// Hosts that already serialize delivery use Process, which waits instead.
//
// A Manager keeps the sessions of a multi-client host, keyed by UUID, and
// evicts sessions that stopped receiving frames.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"mrzscan/internal/logger"
	"mrzscan/internal/mrz"
)

// Event types.
const (
	EventNone     = "none"
	EventProgress = "progress"
	EventResult   = "result"
	EventDropped  = "dropped"
)

// Event is what a session reports for one frame. It is the serialized form
// hosts send back to their clients.
type Event struct {
	Type     string      `json:"type"`
	Progress int         `json:"progress,omitempty"`
	MRZ      string      `json:"mrz,omitempty"`
	Corners  []mrz.Point `json:"corners,omitempty"`
	Fields   *mrz.Fields `json:"fields,omitempty"`
}

// Options configure new sessions.
type Options struct {
	Rules     mrz.Rules
	Extractor mrz.Extractor

	// ParseFields attaches parsed fields to result events.
	ParseFields bool

	// Clock is used for activity timestamps. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultOptions returns options with default accumulator rules.
func DefaultOptions() Options {
	return Options{
		Rules:       mrz.DefaultRules(),
		ParseFields: true,
	}
}

// Stats is a snapshot of a session.
type Stats struct {
	ID            string    `json:"id"`
	Frames        uint64    `json:"frames"`
	Dropped       uint64    `json:"dropped"`
	Results       uint64    `json:"results"`
	BufferedLines int       `json:"buffered_lines"`
	CreatedAt     time.Time `json:"created_at"`
	LastActivity  time.Time `json:"last_activity"`
	Closed        bool      `json:"closed"`
}

// Session is one active scan.
type Session struct {
	id          string
	parseFields bool
	clock       func() time.Time
	createdAt   time.Time
	log         zerolog.Logger

	// mu is held while a frame is applied to acc.
	mu  sync.Mutex
	acc *mrz.Accumulator

	frames       atomic.Uint64
	dropped      atomic.Uint64
	results      atomic.Uint64
	lastActivity atomic.Int64
	closed       atomic.Bool
}

// New creates a session with an empty buffer.
func New(id string, opts Options) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Session{
		id:          id,
		parseFields: opts.ParseFields,
		clock:       clock,
		createdAt:   clock(),
		log:         logger.WithSession("session", id),
		acc:         mrz.NewAccumulator(opts.Rules, opts.Extractor),
	}
	s.lastActivity.Store(s.createdAt.UnixNano())
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Submit applies frame unless another frame is being processed, in which
// case the frame is dropped and an EventDropped event is returned.
func (s *Session) Submit(frame mrz.Frame) (Event, error) {
	if s.closed.Load() {
		return Event{}, ErrSessionClosed
	}

	if !s.mu.TryLock() {
		n := s.dropped.Add(1)
		s.log.Debug().Uint64("dropped", n).Msg("Frame dropped, previous frame still in progress")
		return Event{Type: EventDropped}, nil
	}
	defer s.mu.Unlock()

	return s.apply(frame)
}

// Process applies frame, waiting for any frame in progress to finish.
func (s *Session) Process(frame mrz.Frame) (Event, error) {
	if s.closed.Load() {
		return Event{}, ErrSessionClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(frame)
}

// apply must be called with s.mu held.
func (s *Session) apply(frame mrz.Frame) (Event, error) {
	// Close may have won the race while this frame waited for the lock.
	if s.closed.Load() {
		return Event{}, ErrSessionClosed
	}

	s.frames.Add(1)
	s.lastActivity.Store(s.clock().UnixNano())

	scan := s.acc.Feed(frame)
	s.logScan(scan)

	event := s.event(scan)
	if event.Type == EventResult {
		s.results.Add(1)
	}
	return event, nil
}

func (s *Session) event(scan mrz.Scan) Event {
	switch scan.Output.Kind {
	case mrz.Progress:
		return Event{Type: EventProgress, Progress: scan.Output.Percent}
	case mrz.Result:
		event := Event{
			Type:    EventResult,
			MRZ:     scan.Output.Text,
			Corners: scan.Selection.Corners,
		}
		if s.parseFields {
			fields, err := mrz.Parse(scan.Output.Text)
			if err != nil {
				s.log.Warn().Err(err).Msg("Failed to parse MRZ fields")
			} else {
				event.Fields = fields
			}
		}
		return event
	default:
		return Event{Type: EventNone}
	}
}

func (s *Session) logScan(scan mrz.Scan) {
	for i, t := range scan.Transitions {
		switch t {
		case mrz.ResetCollision, mrz.ResetImplausible:
			s.log.Debug().
				Str("transition", t.String()).
				Str("candidate", scan.Selection.Candidates[i]).
				Msg("MRZ buffer reset")
		}
	}

	ev := s.log.Debug()
	if scan.Output.Kind == mrz.Result {
		ev = s.log.Info()
	}
	ev.Int("candidates", len(scan.Selection.Candidates)).
		Bool("qualified", scan.Selection.Qualified).
		Int("buffer_before", scan.Before).
		Int("buffer_after", scan.After).
		Str("output", scan.Output.Kind.String()).
		Int("progress", scan.Output.Percent).
		Msg("Frame processed")
}

// Reset empties the buffer, e.g. when the user presents another document.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acc.Reset()
}

// Close stops the session. Frames sent afterwards fail with ErrSessionClosed.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.log.Debug().
		Uint64("frames", s.frames.Load()).
		Uint64("dropped", s.dropped.Load()).
		Uint64("results", s.results.Load()).
		Msg("Session closed")
}

// LastActivity is when the session last processed a frame.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Stats returns a snapshot of the session. It waits for a frame in progress.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	buffered := s.acc.State().Len()
	s.mu.Unlock()

	return Stats{
		ID:            s.id,
		Frames:        s.frames.Load(),
		Dropped:       s.dropped.Load(),
		Results:       s.results.Load(),
		BufferedLines: buffered,
		CreatedAt:     s.createdAt,
		LastActivity:  s.LastActivity(),
		Closed:        s.closed.Load(),
	}
}
