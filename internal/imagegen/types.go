package imagegen

import (
	"context"

	"retouch/internal/providers/genai"
)

// EditRequest is a validated, normalized image-edit request ready for dispatch.
type EditRequest struct {
	ImageData string // bare base64, canonical padding
	MIMEType  string
	Prompt    string
	Locale    string
}

// Result is the dispatcher's uniform outcome. On success ImageData holds the
// edited image as bare base64 with MIMEType set. On failure Error carries the
// user-facing message and Err wraps domain.ErrProviderFailure so callers can
// test the failure class with errors.Is.
type Result struct {
	Success   bool
	ImageData string
	MIMEType  string
	Error     string
	Err       error
}

// ModelClient is the slice of the Gemini client the dispatcher depends on.
// It is injected at construction so tests can substitute doubles.
type ModelClient interface {
	EditImage(ctx context.Context, call genai.EditCall) (*genai.EditOutcome, error)
	DescribeImage(ctx context.Context, model string, image genai.InlineImage, instruction string) (string, error)
}
