//go:build !tesseract

package ocr

import (
	"context"

	"mrzscan/internal/mrz"
)

// TesseractFrameSource is the stub used when the "tesseract" build tag is
// not set. Rebuild with -tags tesseract to enable it; this requires
// Tesseract and its development headers to be installed.
type TesseractFrameSource struct{}

// NewTesseractFrameSource always fails with ErrEngineNotEnabled.
func NewTesseractFrameSource() (*TesseractFrameSource, error) {
	return nil, WrapOCRError("NewTesseractFrameSource", ErrEngineNotEnabled, "rebuild with -tags tesseract")
}

// RecognizeFrame always fails with ErrEngineNotEnabled.
func (t *TesseractFrameSource) RecognizeFrame(ctx context.Context, image []byte) (*mrz.Frame, error) {
	return nil, WrapOCRError("RecognizeFrame", ErrEngineNotEnabled, "rebuild with -tags tesseract")
}

// Close does nothing.
func (t *TesseractFrameSource) Close() error {
	return nil
}
