package mrz

import "strings"

const (
	// minQualifyingLines and minFillerLines describe a block that looks like an
	// MRZ: enough lines, and at least two of them carrying a "<<" filler run.
	minQualifyingLines = 3
	minFillerLines     = 2

	fillerMarker = "<<"
)

// Selection is what the Extractor found in a frame.
type Selection struct {
	// Candidates are the normalized lines to feed to the accumulator, in
	// block order.
	Candidates []string

	// Corners of the qualifying block, for hosts that crop a proof image.
	Corners []Point

	// Qualified is true when some block in the frame looked like an MRZ.
	Qualified bool
}

// Extractor selects MRZ candidate lines from a frame.
//
// By default only the first qualifying block contributes candidates. With
// AllBlocks set, the trailing line run of every block is used and the
// qualifying block only supplies the corner points.
type Extractor struct {
	AllBlocks bool
}

// Extract returns the candidates found in blocks.
func (e Extractor) Extract(blocks []TextBlock) Selection {
	var sel Selection

	for _, block := range blocks {
		if len(block.Lines) == 0 {
			continue
		}

		qualified := qualifies(block)
		if qualified && !sel.Qualified {
			sel.Qualified = true
			sel.Corners = append([]Point(nil), block.Corners...)
		}

		if e.AllBlocks {
			sel.Candidates = append(sel.Candidates, candidates(block)...)
			continue
		}

		if qualified {
			sel.Candidates = candidates(block)
			return sel
		}
	}

	return sel
}

// trailingRun returns the longest run of lines at the end of the block that
// all have the length of the last line.
func trailingRun(lines []TextLine) []TextLine {
	if len(lines) == 0 {
		return nil
	}

	mrzLength := textLength(lines[len(lines)-1].Text)
	start := len(lines) - 1
	for start > 0 && textLength(lines[start-1].Text) == mrzLength {
		start--
	}
	return lines[start:]
}

func candidates(block TextBlock) []string {
	var out []string
	for _, line := range trailingRun(block.Lines) {
		text := Normalize(line.Text)
		if !IsCandidate(text) {
			continue
		}
		out = append(out, text)
	}
	return out
}

func qualifies(block TextBlock) bool {
	if len(block.Lines) < minQualifyingLines {
		return false
	}

	fillers := 0
	for _, line := range block.Lines {
		if strings.Contains(Normalize(line.Text), fillerMarker) {
			fillers++
		}
	}
	return fillers >= minFillerLines
}
