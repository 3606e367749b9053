package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"

	"mrzscan/internal/logger"
	"mrzscan/internal/mrz"
)

// GoogleVisionFrameSource implements FrameSource using Google Cloud Vision API.
type GoogleVisionFrameSource struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewGoogleVisionFrameSource creates a frame source with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewGoogleVisionFrameSource(ctx context.Context) (*GoogleVisionFrameSource, error) {
	const op = "NewGoogleVisionFrameSource"

	opts := credentialOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return NewGoogleVisionFrameSourceWithClient(client), nil
}

// NewGoogleVisionFrameSourceWithClient creates a frame source with an explicit client.
func NewGoogleVisionFrameSourceWithClient(client *vision.ImageAnnotatorClient) *GoogleVisionFrameSource {
	return &GoogleVisionFrameSource{
		client: client,
		log:    logger.WithComponent("ocr-vision"),
	}
}

// RecognizeFrame runs document text detection on image.
func (g *GoogleVisionFrameSource) RecognizeFrame(ctx context.Context, image []byte) (*mrz.Frame, error) {
	const op = "RecognizeFrame"
	startTime := time.Now()

	if err := checkImage(op, image); err != nil {
		return nil, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{
						Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION,
					},
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, WrapOCRError(op, ErrContextCanceled, ctx.Err().Error())
		}
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}

	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	imgResp := resp.Responses[0]
	if imgResp.Error != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imgResp.Error.Message))
	}

	frame := frameFromVision(imgResp.FullTextAnnotation)

	g.log.Debug().
		Int("blocks", len(frame.Blocks)).
		Dur("duration", time.Since(startTime)).
		Msg("Vision annotation converted to frame")

	return frame, nil
}

// frameFromVision rebuilds text lines from the symbols of a full text
// annotation. Vision does not report lines; they end where a symbol carries
// an end-of-line break or at the end of a paragraph.
func frameFromVision(ann *visionpb.TextAnnotation) *mrz.Frame {
	frame := &mrz.Frame{}
	if ann == nil {
		return frame
	}

	for _, page := range ann.Pages {
		for _, block := range page.Blocks {
			tb := mrz.TextBlock{Corners: visionCorners(block.BoundingBox)}

			for _, paragraph := range block.Paragraphs {
				var text strings.Builder
				var points []mrz.Point

				flush := func() {
					if text.Len() > 0 {
						tb.Lines = append(tb.Lines, mrz.TextLine{
							Text:    text.String(),
							Corners: rectangle(points),
						})
					}
					text.Reset()
					points = nil
				}

				for _, word := range paragraph.Words {
					points = append(points, visionCorners(word.BoundingBox)...)
					for _, symbol := range word.Symbols {
						text.WriteString(symbol.Text)

						switch detectedBreak(symbol) {
						case visionpb.TextAnnotation_DetectedBreak_SPACE,
							visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
							text.WriteByte(' ')
						case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
							visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
							flush()
						case visionpb.TextAnnotation_DetectedBreak_HYPHEN:
							text.WriteByte('-')
							flush()
						}
					}
				}
				flush()
			}

			if len(tb.Lines) > 0 {
				frame.Blocks = append(frame.Blocks, tb)
			}
		}
	}

	return frame
}

func detectedBreak(symbol *visionpb.Symbol) visionpb.TextAnnotation_DetectedBreak_BreakType {
	if symbol.Property == nil || symbol.Property.DetectedBreak == nil {
		return visionpb.TextAnnotation_DetectedBreak_UNKNOWN
	}
	return symbol.Property.DetectedBreak.Type
}

func visionCorners(poly *visionpb.BoundingPoly) []mrz.Point {
	if poly == nil || len(poly.Vertices) == 0 {
		return nil
	}
	points := make([]mrz.Point, 0, len(poly.Vertices))
	for _, v := range poly.Vertices {
		points = append(points, mrz.Point{X: int(v.X), Y: int(v.Y)})
	}
	return points
}

// Close closes the underlying Vision client.
func (g *GoogleVisionFrameSource) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
