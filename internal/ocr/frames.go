package ocr

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode"

	"mrzscan/internal/mrz"
)

// DecodeFrames reads frames recognized elsewhere from r and calls fn for each
// one in order. The input is either a JSON array of frames or a stream of
// frame objects, one after another.
func DecodeFrames(r io.Reader, fn func(index int, frame mrz.Frame) error) error {
	const op = "DecodeFrames"

	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return WrapOCRError(op, err, "failed to read frames")
	}

	dec := json.NewDecoder(br)
	array := first == '['
	if array {
		if _, err := dec.Token(); err != nil {
			return WrapOCRError(op, ErrInvalidFrame, err.Error())
		}
	}

	for index := 0; ; index++ {
		if array && !dec.More() {
			break
		}

		var frame mrz.Frame
		if err := dec.Decode(&frame); err != nil {
			if !array && errors.Is(err, io.EOF) {
				return nil
			}
			return WrapOCRError(op, ErrInvalidFrame, fmt.Sprintf("frame %d: %v", index, err))
		}
		if err := fn(index, frame); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return WrapOCRError(op, ErrInvalidFrame, fmt.Sprintf("unterminated frame array: %v", err))
	}
	return nil
}

// ReadFrames decodes every frame in r.
func ReadFrames(r io.Reader) ([]mrz.Frame, error) {
	var frames []mrz.Frame
	err := DecodeFrames(r, func(_ int, frame mrz.Frame) error {
		frames = append(frames, frame)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return frames, nil
}

func peekNonSpace(br *bufio.Reader) (rune, error) {
	for {
		r, _, err := br.ReadRune()
		if err != nil {
			return 0, err
		}
		if !unicode.IsSpace(r) {
			return r, br.UnreadRune()
		}
	}
}
