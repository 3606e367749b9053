//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"mrzscan/internal/logger"
	"mrzscan/internal/mrz"
)

// mrzWhitelist restricts Tesseract to the MRZ alphabet plus the space and
// chevron variants the normalizer maps back to '<'.
const mrzWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789<«‹ "

// TesseractFrameSource implements FrameSource with a local Tesseract install.
type TesseractFrameSource struct {
	// gosseract clients are not safe for concurrent use.
	mu     sync.Mutex
	client *gosseract.Client
	log    zerolog.Logger
}

// NewTesseractFrameSource creates a Tesseract client restricted to MRZ characters.
func NewTesseractFrameSource() (*TesseractFrameSource, error) {
	const op = "NewTesseractFrameSource"

	client := gosseract.NewClient()
	if err := client.SetWhitelist(mrzWhitelist); err != nil {
		client.Close()
		return nil, WrapOCRError(op, err, "failed to set character whitelist")
	}

	return &TesseractFrameSource{
		client: client,
		log:    logger.WithComponent("ocr-tesseract"),
	}, nil
}

// RecognizeFrame runs Tesseract on image and groups its words into lines and
// blocks.
func (t *TesseractFrameSource) RecognizeFrame(ctx context.Context, image []byte) (*mrz.Frame, error) {
	const op = "RecognizeFrame"
	startTime := time.Now()

	if err := checkImage(op, image); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, WrapOCRError(op, ErrContextCanceled, err.Error())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(image); err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("set image: %v", err))
	}

	words, err := t.client.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("recognize text: %v", err))
	}

	frame := frameFromTesseract(words)

	t.log.Debug().
		Int("words", len(words)).
		Int("blocks", len(frame.Blocks)).
		Dur("duration", time.Since(startTime)).
		Msg("Tesseract words converted to frame")

	return frame, nil
}

func frameFromTesseract(words []gosseract.BoundingBox) *mrz.Frame {
	type lineKey struct{ block, par, line int }

	frame := &mrz.Frame{}
	blockIndex := map[int]int{}
	lineIndex := map[lineKey]int{}
	var blockPoints [][]mrz.Point
	var linePoints [][][]mrz.Point

	for _, w := range words {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		box := []mrz.Point{
			{X: w.Box.Min.X, Y: w.Box.Min.Y},
			{X: w.Box.Max.X, Y: w.Box.Max.Y},
		}

		bi, ok := blockIndex[w.BlockNum]
		if !ok {
			bi = len(frame.Blocks)
			blockIndex[w.BlockNum] = bi
			frame.Blocks = append(frame.Blocks, mrz.TextBlock{})
			blockPoints = append(blockPoints, nil)
			linePoints = append(linePoints, nil)
		}
		blockPoints[bi] = append(blockPoints[bi], box...)

		block := &frame.Blocks[bi]
		key := lineKey{w.BlockNum, w.ParNum, w.LineNum}
		li, ok := lineIndex[key]
		if !ok {
			li = len(block.Lines)
			lineIndex[key] = li
			block.Lines = append(block.Lines, mrz.TextLine{Text: text})
			linePoints[bi] = append(linePoints[bi], box)
			continue
		}
		block.Lines[li].Text += " " + text
		linePoints[bi][li] = append(linePoints[bi][li], box...)
	}

	for bi := range frame.Blocks {
		frame.Blocks[bi].Corners = rectangle(blockPoints[bi])
		for li := range frame.Blocks[bi].Lines {
			frame.Blocks[bi].Lines[li].Corners = rectangle(linePoints[bi][li])
		}
	}

	return frame
}

// Close releases the Tesseract client.
func (t *TesseractFrameSource) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
