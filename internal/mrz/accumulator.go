package mrz

import (
	"fmt"
	"strings"
)

// DefaultPrefixLength is how many leading characters two candidates must
// share to be treated as readings of the same line. It fits the field layout
// of TD1 and TD3 documents and is not an ICAO requirement.
const DefaultPrefixLength = 20

// Progress values reported while a document is accumulating.
const (
	ProgressEmpty        = 5
	ProgressOneLine      = 25
	ProgressTwoLines     = 75
	ProgressImagePending = 90
)

// Rules tune the accumulator.
type Rules struct {
	// PrefixLength is the number of leading characters compared to detect
	// re-reads of a buffered line. Values outside 1..30 fall back to
	// DefaultPrefixLength.
	PrefixLength int

	// RequireNumericLine drops a three-line buffer in which no line starts
	// with two digits. A TD1 second line starts with the birth date, so a
	// buffer without one is most likely noise. This is a heuristic and may
	// reject rare valid documents.
	RequireNumericLine bool
}

// DefaultRules returns the rules used by the scanner unless configured
// otherwise.
func DefaultRules() Rules {
	return Rules{
		PrefixLength:       DefaultPrefixLength,
		RequireNumericLine: true,
	}
}

func (r Rules) prefixLength() int {
	if r.PrefixLength < 1 || r.PrefixLength > TD1LineLength {
		return DefaultPrefixLength
	}
	return r.PrefixLength
}

// Transition describes what a single candidate did to the buffer.
type Transition int

const (
	// Rejected: the candidate was not admitted (wrong length, alphabet, or
	// the buffer is full). The buffer is unchanged.
	Rejected Transition = iota
	// Appended: the candidate was a new line and was added.
	Appended
	// Unchanged: the candidate re-read a buffered line or did not fit the
	// buffered format.
	Unchanged
	// ResetCollision: the candidate shared a prefix with a buffered line of a
	// different length, and the buffer was cleared.
	ResetCollision
	// ResetImplausible: the buffer reached three lines without one starting
	// with two digits, and was cleared.
	ResetImplausible
)

func (t Transition) String() string {
	switch t {
	case Rejected:
		return "rejected"
	case Appended:
		return "appended"
	case Unchanged:
		return "unchanged"
	case ResetCollision:
		return "reset_collision"
	case ResetImplausible:
		return "reset_implausible"
	default:
		return fmt.Sprintf("transition(%d)", int(t))
	}
}

// OutputKind classifies the outcome of a frame.
type OutputKind int

const (
	NoUpdate OutputKind = iota
	Progress
	Result
)

func (k OutputKind) String() string {
	switch k {
	case NoUpdate:
		return "none"
	case Progress:
		return "progress"
	case Result:
		return "result"
	default:
		return fmt.Sprintf("output(%d)", int(k))
	}
}

// Output is the outcome of processing a frame.
type Output struct {
	Kind OutputKind

	// Percent is set for Progress outputs.
	Percent int

	// Text is the finished document for Result outputs: lines in canonical
	// order joined by '\n'.
	Text string
}

func (o Output) String() string {
	switch o.Kind {
	case Progress:
		return fmt.Sprintf("progress(%d)", o.Percent)
	case Result:
		return fmt.Sprintf("result(%q)", o.Text)
	default:
		return o.Kind.String()
	}
}

// State is the accumulator buffer. It is a value: every transition returns a
// new State and never modifies the receiver, so states can be kept, compared
// and replayed freely.
type State struct {
	rules Rules
	lines []string
}

// NewState returns an empty buffer governed by rules.
func NewState(rules Rules) State {
	return State{rules: rules}
}

// Rules returns the rules the state was created with.
func (s State) Rules() Rules {
	return s.rules
}

// Len is the number of buffered lines.
func (s State) Len() int {
	return len(s.lines)
}

// Lines returns a copy of the buffered lines in insertion order.
func (s State) Lines() []string {
	return append([]string(nil), s.lines...)
}

// Format returns the format of the buffered lines, or FormatUnknown for an
// empty buffer.
func (s State) Format() Format {
	if len(s.lines) == 0 {
		return FormatUnknown
	}
	return FormatForLength(len(s.lines[0]))
}

// Reset returns an empty state with the same rules.
func (s State) Reset() State {
	return State{rules: s.rules}
}

func (s State) with(lines []string) State {
	return State{rules: s.rules, lines: lines}
}

// admits reports whether text may be considered with the current buffer size.
func (s State) admits(text string) bool {
	if !IsCandidate(text) {
		return false
	}
	switch len(text) {
	case TD1LineLength:
		return len(s.lines) < FormatTD1.LineCount()
	case TD2LineLength, TD3LineLength:
		return len(s.lines) < FormatTD3.LineCount()
	default:
		return false
	}
}

// Step applies one candidate to the buffer.
func (s State) Step(text string) (State, Transition) {
	if !s.admits(text) {
		return s, Rejected
	}

	n := s.rules.prefixLength()
	prefix := text[:n]

	var shared, collision bool
	for _, line := range s.lines {
		if line[:n] != prefix {
			continue
		}
		shared = true
		if len(line) != len(text) {
			collision = true
		}
	}

	switch {
	case !shared && (len(s.lines) == 0 || len(s.lines[0]) == len(text)):
		lines := make([]string, len(s.lines), len(s.lines)+1)
		copy(lines, s.lines)
		lines = append(lines, text)
		if s.rules.RequireNumericLine && len(lines) == FormatTD1.LineCount() && !anyNumericLeading(lines) {
			return s.Reset(), ResetImplausible
		}
		return s.with(lines), Appended
	case collision:
		return s.Reset(), ResetCollision
	default:
		return s, Unchanged
	}
}

// Fold applies every candidate of a frame in order and returns the final
// state along with the transition caused by each candidate.
func (s State) Fold(candidates []string) (State, []Transition) {
	transitions := make([]Transition, 0, len(candidates))
	for _, text := range candidates {
		var t Transition
		s, t = s.Step(text)
		transitions = append(transitions, t)
	}
	return s, transitions
}

// Complete reports whether the buffer holds a full document.
func (s State) Complete() bool {
	format := s.Format()
	return format != FormatUnknown && len(s.lines) == format.LineCount()
}

// Progress is the progress value for the current buffer size.
func (s State) Progress() int {
	switch len(s.lines) {
	case 0:
		return ProgressEmpty
	case 1:
		return ProgressOneLine
	default:
		return ProgressTwoLines
	}
}

// Finish runs the completion check. A complete buffer whose lines all take a
// distinct role yields a Result and an empty state. If some lines cannot be
// placed, only those lines are dropped and a Progress output is returned. An
// incomplete buffer is returned as is with its Progress.
func (s State) Finish() (State, Output) {
	if !s.Complete() {
		return s, Output{Kind: Progress, Percent: s.Progress()}
	}

	slots, missed := assign(s.Format(), s.lines)
	if len(missed) > 0 {
		kept := make([]string, 0, len(s.lines)-len(missed))
		for i, line := range s.lines {
			if !containsIndex(missed, i) {
				kept = append(kept, line)
			}
		}
		next := s.with(kept)
		return next, Output{Kind: Progress, Percent: next.Progress()}
	}

	return s.Reset(), Output{Kind: Result, Text: strings.Join(slots, "\n")}
}

// Advance folds the candidates of one frame into s and runs the completion
// check.
func Advance(s State, candidates []string) (State, Output) {
	folded, _ := s.Fold(candidates)
	return folded.Finish()
}

func anyNumericLeading(lines []string) bool {
	for _, line := range lines {
		if len(line) >= 2 && isDigit(line[0]) && isDigit(line[1]) {
			return true
		}
	}
	return false
}

func containsIndex(indexes []int, i int) bool {
	for _, idx := range indexes {
		if idx == i {
			return true
		}
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
