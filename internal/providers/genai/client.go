package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"retouch/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the Gemini generateContent endpoint. It owns
// request framing and the tolerant decoding of the response part variants;
// model selection and fallback ordering stay with the caller.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Sampling carries the generation parameters sent with every call.
type Sampling struct {
	Temperature float64
	TopP        float64
	TopK        int
}

// InlineImage is a base64 payload plus its declared media type.
type InlineImage struct {
	Data     string
	MIMEType string
}

// EditCall describes one attempt against one model.
type EditCall struct {
	Model       string
	Image       InlineImage
	Instruction string
	Sampling    Sampling
}

// EditOutcome is the normalized result of a single generateContent call. A
// nil Image with a nil error means the model answered without an image
// payload; Text then carries whatever explanation it gave.
type EditOutcome struct {
	Image *InlineImage
	Text  string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature        float64  `json:"temperature,omitempty"`
	TopP               float64  `json:"topP,omitempty"`
	TopK               int      `json:"topK,omitempty"`
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with a generous timeout will be created
// because image edits routinely run for tens of seconds.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("genai: api key is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: client,
		logger:     logger,
	}, nil
}

// EditImage asks one model to edit the supplied image. The response parts are
// probed in a fixed priority order: inlineData first, then fileData (fetched),
// and only then is the call considered image-less. Text parts are collected so
// the caller can surface the model's own explanation when it declines.
func (c *Client) EditImage(ctx context.Context, call EditCall) (*EditOutcome, error) {
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: call.Image.MIMEType, Data: call.Image.Data}},
				{Text: call.Instruction},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:        call.Sampling.Temperature,
			TopP:               call.Sampling.TopP,
			TopK:               call.Sampling.TopK,
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, call.Model, payload, &response); err != nil {
		return nil, err
	}

	outcome := &EditOutcome{}
	var texts []string
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			switch {
			case part.InlineData != nil && part.InlineData.Data != "":
				if outcome.Image == nil {
					outcome.Image = &InlineImage{
						Data:     part.InlineData.Data,
						MIMEType: firstNonEmpty(part.InlineData.MimeType, "image/png"),
					}
				}
			case part.FileData != nil && part.FileData.FileURI != "":
				if outcome.Image != nil {
					continue
				}
				data, mime, err := c.downloadFile(ctx, part.FileData.FileURI)
				if err != nil {
					c.logger.Warn().
						Err(err).
						Str("model", call.Model).
						Msg("genai: file part download failed")
					continue
				}
				outcome.Image = &InlineImage{
					Data:     data,
					MIMEType: firstNonEmpty(part.FileData.MimeType, mime, "image/png"),
				}
			case strings.TrimSpace(part.Text) != "":
				texts = append(texts, strings.TrimSpace(part.Text))
			}
		}
	}
	outcome.Text = strings.Join(texts, "\n")

	c.logger.Debug().
		Str("model", call.Model).
		Bool("image", outcome.Image != nil).
		Msg("genai: edit call completed")

	return outcome, nil
}

// DescribeImage sends the image with an analysis instruction and returns the
// first text the model produced. An answer without any text part is not an
// error; the empty string signals an uninformative result.
func (c *Client) DescribeImage(ctx context.Context, model string, image InlineImage, instruction string) (string, error) {
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: image.MIMEType, Data: image.Data}},
				{Text: instruction},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{CandidateCount: 1},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, model, payload, &response); err != nil {
		return "", err
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", nil
}

func (c *Client) invoke(ctx context.Context, model string, payload any, out any) error {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

// downloadFile fetches a fileData URI and returns its bytes re-encoded as
// base64 together with the reported content type.
func (c *Client) downloadFile(ctx context.Context, uri string) (string, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", "", fmt.Errorf("create download request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("download file status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read file: %w", err)
	}
	return encodeBase64(blob), resp.Header.Get("Content-Type"), nil
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
