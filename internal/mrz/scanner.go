package mrz

// Scan is the result of feeding one frame to an Accumulator.
type Scan struct {
	Output Output

	// Selection is what the extractor picked from the frame. For a Result,
	// Selection.Corners locate the MRZ block in the frame.
	Selection Selection

	// Transitions holds the effect of each candidate, in order.
	Transitions []Transition

	// Before and After are the buffer sizes around this frame.
	Before, After int
}

// Accumulator couples an Extractor with a State for one scan session. It is
// not safe for concurrent use.
type Accumulator struct {
	extractor Extractor
	state     State
}

// NewAccumulator returns an accumulator with an empty buffer.
func NewAccumulator(rules Rules, extractor Extractor) *Accumulator {
	return &Accumulator{
		extractor: extractor,
		state:     NewState(rules),
	}
}

// State returns the current buffer.
func (a *Accumulator) State() State {
	return a.state
}

// Reset empties the buffer.
func (a *Accumulator) Reset() {
	a.state = a.state.Reset()
}

// Feed processes one frame.
//
// A frame without text blocks yields NoUpdate. Otherwise the frame's
// candidates are folded into the buffer and the completion check runs. A
// finished document is held back as ProgressImagePending, with the buffer
// kept full, when the frame reports a pending image or no block in it
// qualified as MRZ, so that a later frame can deliver it together with a
// usable crop region.
func (a *Accumulator) Feed(frame Frame) Scan {
	scan := Scan{Before: a.state.Len()}

	if len(frame.Blocks) == 0 {
		scan.Output = Output{Kind: NoUpdate}
		scan.After = scan.Before
		return scan
	}

	scan.Selection = a.extractor.Extract(frame.Blocks)

	folded, transitions := a.state.Fold(scan.Selection.Candidates)
	scan.Transitions = transitions

	next, out := folded.Finish()
	if out.Kind == Result && (frame.ImagePending || !scan.Selection.Qualified) {
		next = folded
		out = Output{Kind: Progress, Percent: ProgressImagePending}
	}

	a.state = next
	scan.Output = out
	scan.After = next.Len()
	return scan
}
