// Package mrz accumulates Machine-Readable Zone lines across OCR frames and
// assembles them into a validated ICAO Doc 9303 MRZ.
//
// A document is scanned over many camera frames and the OCR of any single
// frame is noisy or partial. The package therefore works in two steps:
//
//   - Extractor picks, from one frame's text blocks, the block that most likely
//     holds the MRZ and normalizes its trailing lines into candidates.
//   - State keeps a small buffer of accepted candidates between frames. Each
//     candidate is admitted, ignored, or causes a reset; once the buffer holds a
//     structurally complete set of lines they are classified by role and joined
//     into the final document.
//
// MRZ formats:
//   - TD1: 3 lines of 30 characters (identity cards, e.g. Belgian eID)
//   - TD2: 2 lines of 36 characters (also MRV-B visas)
//   - TD3: 2 lines of 44 characters (passport booklets, also MRV-A visas)
//
// Only A-Z, 0-9 and the filler '<' are allowed in any format.
//
// Nothing in this package synchronizes. A State or Accumulator must be driven
// by a single goroutine; see package session for a serialized wrapper.
package mrz

import "fmt"

// Line lengths of the supported formats.
const (
	TD1LineLength = 30
	TD2LineLength = 36
	TD3LineLength = 44
)

// Format identifies an MRZ layout.
type Format int

const (
	FormatUnknown Format = iota
	FormatTD1
	FormatTD2
	FormatTD3
)

// FormatForLength returns the format whose lines have length n.
func FormatForLength(n int) Format {
	switch n {
	case TD1LineLength:
		return FormatTD1
	case TD2LineLength:
		return FormatTD2
	case TD3LineLength:
		return FormatTD3
	default:
		return FormatUnknown
	}
}

// LineCount is the number of lines a complete document of this format has.
func (f Format) LineCount() int {
	switch f {
	case FormatTD1:
		return 3
	case FormatTD2, FormatTD3:
		return 2
	default:
		return 0
	}
}

// LineLength is the width of every line of this format.
func (f Format) LineLength() int {
	switch f {
	case FormatTD1:
		return TD1LineLength
	case FormatTD2:
		return TD2LineLength
	case FormatTD3:
		return TD3LineLength
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case FormatTD1:
		return "TD1"
	case FormatTD2:
		return "TD2"
	case FormatTD3:
		return "TD3"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	switch string(text) {
	case "TD1":
		*f = FormatTD1
	case "TD2":
		*f = FormatTD2
	case "TD3":
		*f = FormatTD3
	case "unknown", "":
		*f = FormatUnknown
	default:
		return fmt.Errorf("unknown MRZ format %q", string(text))
	}
	return nil
}

// Point is a corner of a recognized region, in image pixel coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TextLine is one line of recognized text.
type TextLine struct {
	Text    string  `json:"text"`
	Corners []Point `json:"corners,omitempty"`
}

// TextBlock is a group of lines the OCR engine recognized as one region.
// Corners, when present, are ordered top-left, top-right, bottom-right,
// bottom-left.
type TextBlock struct {
	Lines   []TextLine `json:"lines"`
	Corners []Point    `json:"corners,omitempty"`
}

// Frame is the OCR output of one camera frame.
type Frame struct {
	Blocks []TextBlock `json:"blocks"`

	// ImagePending is set by hosts that pair the result with a cropped proof
	// image and could not produce one for this frame. A complete document is
	// then held back (reported as ProgressImagePending) until a later frame.
	ImagePending bool `json:"image_pending,omitempty"`
}
