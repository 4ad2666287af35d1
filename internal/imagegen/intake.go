package imagegen

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Limits bounds what the intake accepts.
type Limits struct {
	MaxBytes       int64
	MaxPromptChars int
}

// DefaultLimits mirrors the service defaults: 10 MiB uploads, 500-char prompts.
func DefaultLimits() Limits {
	return Limits{MaxBytes: 10 << 20, MaxPromptChars: 500}
}

// ValidationError reports bad or missing input. It maps to a 4xx response and
// never reaches the record store.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

var allowedImageTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
	"image/gif":  {},
}

// NewEditRequest validates one uploaded file plus prompt and produces the
// normalized request handed to the dispatcher. The declared content type is
// trusted as-is; sniffing the actual bytes is left to the external service.
func NewEditRequest(data []byte, contentType, prompt string, limits Limits) (*EditRequest, error) {
	if len(data) == 0 {
		return nil, validationf("no file attached")
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if _, ok := allowedImageTypes[mimeType]; !ok {
		return nil, validationf("unsupported file type %q", mimeType)
	}

	if limits.MaxBytes > 0 && int64(len(data)) > limits.MaxBytes {
		return nil, validationf("file too large: limit is %d MB", limits.MaxBytes>>20)
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, validationf("prompt is required")
	}
	if limits.MaxPromptChars > 0 && utf8.RuneCountInString(prompt) > limits.MaxPromptChars {
		return nil, validationf("prompt too long: limit is %d characters", limits.MaxPromptChars)
	}

	return &EditRequest{
		ImageData: base64.StdEncoding.EncodeToString(data),
		MIMEType:  mimeType,
		Prompt:    prompt,
	}, nil
}
