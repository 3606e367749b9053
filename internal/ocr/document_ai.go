package ocr

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"mrzscan/internal/logger"
	"mrzscan/internal/mrz"
)

// DocumentAIConfig selects the Document AI OCR processor.
type DocumentAIConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	Timeout          time.Duration
}

// DocumentAIFrameSource implements FrameSource using a Google Document AI
// OCR processor.
type DocumentAIFrameSource struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIFrameSource creates a frame source for the processor in config.
// Requires: GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID
func NewDocumentAIFrameSource(ctx context.Context, config DocumentAIConfig) (*DocumentAIFrameSource, error) {
	const op = "NewDocumentAIFrameSource"

	if config.ProjectID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	var clientOptions []option.ClientOption

	// Set regional endpoint if not us
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	creds := credentialOptions()
	clientOptions = append(clientOptions, creds...)

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(creds) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return NewDocumentAIFrameSourceWithClient(config, client), nil
}

// NewDocumentAIFrameSourceWithClient creates a frame source with an explicit client.
func NewDocumentAIFrameSourceWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIFrameSource {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &DocumentAIFrameSource{
		client: client,
		config: config,
		log:    logger.WithComponent("ocr-documentai"),
	}
}

// RecognizeFrame sends image to the OCR processor.
func (p *DocumentAIFrameSource) RecognizeFrame(ctx context.Context, image []byte) (*mrz.Frame, error) {
	const op = "RecognizeFrame"
	startTime := time.Now()

	if err := checkImage(op, image); err != nil {
		return nil, err
	}

	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  image,
				MimeType: http.DetectContentType(image),
			},
		},
	}

	resp, err := p.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, p.handleProcessingError(op, err)
	}
	if resp.Document == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}

	frame := frameFromDocument(resp.Document)

	p.log.Debug().
		Int("pages", len(resp.Document.Pages)).
		Int("blocks", len(frame.Blocks)).
		Dur("duration", time.Since(startTime)).
		Msg("Document AI layout converted to frame")

	return frame, nil
}

// processorName constructs the full processor name for Document AI API.
func (p *DocumentAIFrameSource) processorName() string {
	if p.config.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			p.config.ProjectID, p.config.Location, p.config.ProcessorID, p.config.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// handleProcessingError converts Document AI errors to OCR errors.
func (p *DocumentAIFrameSource) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"), strings.Contains(errStr, "PermissionDenied"):
		return WrapOCRError(op, ErrMissingCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "NOT_FOUND"), strings.Contains(errStr, "NotFound"):
		return WrapOCRError(op, ErrInvalidConfiguration, fmt.Sprintf("processor not found: %s", p.config.ProcessorID))
	case strings.Contains(errStr, "DeadlineExceeded") || strings.Contains(errStr, "context deadline exceeded"):
		return WrapOCRError(op, context.DeadlineExceeded, "processing timeout")
	case strings.Contains(errStr, "Canceled") || strings.Contains(errStr, "context canceled"):
		return WrapOCRError(op, ErrContextCanceled, "processing was canceled")
	default:
		return WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// frameFromDocument groups the page lines of doc under the page blocks whose
// text anchors contain them.
func frameFromDocument(doc *documentaipb.Document) *mrz.Frame {
	frame := &mrz.Frame{}
	text := []rune(doc.GetText())

	for _, page := range doc.Pages {
		blocks := make([]mrz.TextBlock, len(page.Blocks))
		for i, block := range page.Blocks {
			blocks[i].Corners = layoutCorners(block.Layout, page.Dimension)
		}

		for _, line := range page.Lines {
			start, ok := anchorStart(line.Layout)
			if !ok {
				continue
			}
			i := blockFor(page.Blocks, start)
			if i < 0 {
				continue
			}
			lineText := strings.TrimRight(anchorText(text, line.Layout), "\r\n")
			if lineText == "" {
				continue
			}
			blocks[i].Lines = append(blocks[i].Lines, mrz.TextLine{
				Text:    lineText,
				Corners: layoutCorners(line.Layout, page.Dimension),
			})
		}

		for _, b := range blocks {
			if len(b.Lines) > 0 {
				frame.Blocks = append(frame.Blocks, b)
			}
		}
	}

	return frame
}

// blockFor returns the index of the block whose text anchor covers offset,
// or -1.
func blockFor(blocks []*documentaipb.Document_Page_Block, offset int64) int {
	for i, block := range blocks {
		for _, seg := range block.GetLayout().GetTextAnchor().GetTextSegments() {
			if offset >= seg.StartIndex && offset < seg.EndIndex {
				return i
			}
		}
	}
	return -1
}

func anchorStart(layout *documentaipb.Document_Page_Layout) (int64, bool) {
	segments := layout.GetTextAnchor().GetTextSegments()
	if len(segments) == 0 {
		return 0, false
	}
	return segments[0].StartIndex, true
}

func anchorText(text []rune, layout *documentaipb.Document_Page_Layout) string {
	var sb strings.Builder
	for _, seg := range layout.GetTextAnchor().GetTextSegments() {
		start, end := seg.StartIndex, seg.EndIndex
		if start < 0 || end > int64(len(text)) || start >= end {
			continue
		}
		sb.WriteString(string(text[start:end]))
	}
	return sb.String()
}

// layoutCorners prefers pixel vertices and falls back to normalized ones
// scaled by the page dimension.
func layoutCorners(layout *documentaipb.Document_Page_Layout, dim *documentaipb.Document_Page_Dimension) []mrz.Point {
	poly := layout.GetBoundingPoly()
	if poly == nil {
		return nil
	}

	if len(poly.Vertices) > 0 {
		points := make([]mrz.Point, 0, len(poly.Vertices))
		for _, v := range poly.Vertices {
			points = append(points, mrz.Point{X: int(v.X), Y: int(v.Y)})
		}
		return points
	}

	if dim == nil || len(poly.NormalizedVertices) == 0 {
		return nil
	}
	points := make([]mrz.Point, 0, len(poly.NormalizedVertices))
	for _, v := range poly.NormalizedVertices {
		points = append(points, mrz.Point{
			X: int(v.X*dim.Width + 0.5),
			Y: int(v.Y*dim.Height + 0.5),
		})
	}
	return points
}

// Close closes the underlying Document AI client.
func (p *DocumentAIFrameSource) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
