// Package ocr turns OCR provider output into MRZ scan frames.
//
// Each FrameSource recognizes one camera image and returns its text as an
// mrz.Frame: blocks of lines with the corner points the provider reported.
// The scan core never talks to a provider directly.
//
// Engines:
//   - vision: Google Cloud Vision DOCUMENT_TEXT_DETECTION
//   - documentai: Google Document AI OCR processor
//   - tesseract: local Tesseract via gosseract, requires the "tesseract" build tag
//
// Google engines read credentials from the environment:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// Frames that were recognized elsewhere can be read from JSON with ReadFrames.
package ocr

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"

	"mrzscan/internal/mrz"
)

// MaxImageSizeBytes is the largest image accepted by the Google engines (20MB).
const MaxImageSizeBytes = 20 * 1024 * 1024

// FrameSource recognizes the text of a camera image.
type FrameSource interface {
	// RecognizeFrame runs OCR on an encoded image (JPEG, PNG, ...) and
	// returns the text blocks it found.
	RecognizeFrame(ctx context.Context, image []byte) (*mrz.Frame, error)

	// Close releases the provider client.
	Close() error
}

// Settings select and configure a frame source.
type Settings struct {
	Engine string

	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
}

// NewFrameSource creates the frame source for settings.Engine.
func NewFrameSource(ctx context.Context, settings Settings) (FrameSource, error) {
	const op = "NewFrameSource"

	var (
		source FrameSource
		err    error
	)
	switch settings.Engine {
	case "vision", "":
		source, err = NewGoogleVisionFrameSource(ctx)
	case "documentai":
		source, err = NewDocumentAIFrameSource(ctx, DocumentAIConfig{
			ProjectID:        settings.ProjectID,
			Location:         settings.Location,
			ProcessorID:      settings.ProcessorID,
			ProcessorVersion: settings.ProcessorVersion,
		})
	case "tesseract":
		source, err = NewTesseractFrameSource()
	default:
		return nil, WrapOCRError(op, ErrInvalidConfiguration, fmt.Sprintf("unknown engine %q", settings.Engine))
	}
	if err != nil {
		return nil, err
	}
	return source, nil
}

// credentialOptions returns client options for credentials found in the
// environment. An empty result means application default credentials.
func credentialOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}

func checkImage(op string, image []byte) error {
	if len(image) == 0 {
		return WrapOCRError(op, ErrEmptyImage, "")
	}
	if len(image) > MaxImageSizeBytes {
		return WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("image size: %d bytes", len(image)))
	}
	return nil
}

// rectangle returns the four corners of the box spanning points, clockwise
// from the top left.
func rectangle(points []mrz.Point) []mrz.Point {
	if len(points) == 0 {
		return nil
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return []mrz.Point{{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}}
}
