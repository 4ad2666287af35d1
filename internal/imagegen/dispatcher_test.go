package imagegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"retouch/internal/domain"
	"retouch/internal/providers/genai"
)

type stubResponse struct {
	outcome *genai.EditOutcome
	err     error
}

type stubModelClient struct {
	queue        []stubResponse
	calls        []genai.EditCall
	describeText string
	describeErr  error
	describes    int
}

func (s *stubModelClient) EditImage(ctx context.Context, call genai.EditCall) (*genai.EditOutcome, error) {
	s.calls = append(s.calls, call)
	if len(s.queue) == 0 {
		return &genai.EditOutcome{}, nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next.outcome, next.err
}

func (s *stubModelClient) DescribeImage(ctx context.Context, model string, image genai.InlineImage, instruction string) (string, error) {
	s.describes++
	return s.describeText, s.describeErr
}

func testPromptConfig(models ...string) PromptConfig {
	cfg := DefaultPromptConfig()
	analyze := false
	cfg.AnalyzeFirst = &analyze
	if len(models) > 0 {
		cfg.EditModels = models
	}
	return cfg
}

func testRequest() EditRequest {
	return EditRequest{ImageData: "QUJDRA==", MIMEType: "image/png", Prompt: "make it blue"}
}

func TestDispatchFallsBackToSecondModel(t *testing.T) {
	client := &stubModelClient{queue: []stubResponse{
		{err: errors.New("gemini status 500: internal")},
		{outcome: &genai.EditOutcome{Image: &genai.InlineImage{Data: "ZWRpdGVk", MIMEType: "image/png"}}},
	}}
	d := NewDispatcher(client, testPromptConfig("model-a", "model-b", "model-c"), zerolog.Nop())

	result := d.Dispatch(context.Background(), testRequest())
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.ImageData != "ZWRpdGVk" {
		t.Fatalf("image data mismatch: %q", result.ImageData)
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(client.calls))
	}
	if client.calls[0].Model != "model-a" || client.calls[1].Model != "model-b" {
		t.Fatalf("wrong model order: %q %q", client.calls[0].Model, client.calls[1].Model)
	}
}

func TestDispatchStopsAtFirstImage(t *testing.T) {
	client := &stubModelClient{queue: []stubResponse{
		{outcome: &genai.EditOutcome{Image: &genai.InlineImage{Data: "Zmlyc3Q=", MIMEType: "image/webp"}}},
	}}
	d := NewDispatcher(client, testPromptConfig("model-a", "model-b"), zerolog.Nop())

	result := d.Dispatch(context.Background(), testRequest())
	if !result.Success || result.MIMEType != "image/webp" {
		t.Fatalf("unexpected result: %#v", result)
	}
	if len(client.calls) != 1 {
		t.Fatalf("no further candidates should be tried, got %d calls", len(client.calls))
	}
}

func TestDispatchImagelessAnswerAdvancesChain(t *testing.T) {
	client := &stubModelClient{queue: []stubResponse{
		{outcome: &genai.EditOutcome{Text: "I cannot edit this image"}},
		{outcome: &genai.EditOutcome{Image: &genai.InlineImage{Data: "b2s=", MIMEType: "image/png"}}},
	}}
	d := NewDispatcher(client, testPromptConfig("model-a", "model-b"), zerolog.Nop())

	result := d.Dispatch(context.Background(), testRequest())
	if !result.Success {
		t.Fatalf("expected fallback to produce success: %q", result.Error)
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(client.calls))
	}
}

func TestDispatchExhaustionSurfacesModelText(t *testing.T) {
	client := &stubModelClient{queue: []stubResponse{
		{err: errors.New("gemini status 503: overloaded")},
		{outcome: &genai.EditOutcome{Text: "the request violates policy"}},
	}}
	d := NewDispatcher(client, testPromptConfig("model-a", "model-b"), zerolog.Nop())

	result := d.Dispatch(context.Background(), testRequest())
	if result.Success {
		t.Fatalf("expected failure")
	}
	if result.Error != "the request violates policy" {
		t.Fatalf("error should carry the model's explanation: %q", result.Error)
	}
	if !errors.Is(result.Err, domain.ErrProviderFailure) {
		t.Fatalf("exhaustion must wrap the provider failure sentinel: %v", result.Err)
	}
}

func TestDispatchExhaustionWithoutTextSurfacesLastError(t *testing.T) {
	client := &stubModelClient{queue: []stubResponse{
		{err: errors.New("gemini status 500: internal")},
		{err: errors.New("gemini status 429: quota exhausted")},
	}}
	d := NewDispatcher(client, testPromptConfig("model-a", "model-b"), zerolog.Nop())

	result := d.Dispatch(context.Background(), testRequest())
	if result.Success {
		t.Fatalf("expected failure")
	}
	if result.Error != "gemini status 429: quota exhausted" {
		t.Fatalf("last transport error not surfaced: %q", result.Error)
	}
}

func TestDispatchNormalizesDataURLPayloads(t *testing.T) {
	client := &stubModelClient{queue: []stubResponse{
		{outcome: &genai.EditOutcome{Image: &genai.InlineImage{Data: "data:image/webp;base64,ZWRpdGVk"}}},
	}}
	d := NewDispatcher(client, testPromptConfig("model-a"), zerolog.Nop())

	req := EditRequest{
		ImageData: "data:image/png;base64,QUJDRA",
		MIMEType:  "application/octet-stream",
		Prompt:    "make it blue",
	}
	result := d.Dispatch(context.Background(), req)
	if !result.Success {
		t.Fatalf("unexpected failure: %q", result.Error)
	}
	sent := client.calls[0].Image
	if sent.Data != "QUJDRA==" {
		t.Fatalf("inbound payload not stripped and repadded: %q", sent.Data)
	}
	if sent.MIMEType != "image/png" {
		t.Fatalf("declared media type must win over the fallback: %q", sent.MIMEType)
	}
	if result.ImageData != "ZWRpdGVk" || result.MIMEType != "image/webp" {
		t.Fatalf("returned payload not normalized: %q %q", result.ImageData, result.MIMEType)
	}
}

func TestDispatchExhaustionWithoutTextUsesGenericMessage(t *testing.T) {
	client := &stubModelClient{queue: []stubResponse{
		{outcome: &genai.EditOutcome{}},
		{outcome: &genai.EditOutcome{}},
	}}
	d := NewDispatcher(client, testPromptConfig("model-a", "model-b"), zerolog.Nop())

	result := d.Dispatch(context.Background(), testRequest())
	if result.Success {
		t.Fatalf("expected failure")
	}
	if result.Error == "" {
		t.Fatalf("error message must be non-empty")
	}
}

func TestDispatchFoldsDescriptionIntoInstruction(t *testing.T) {
	cfg := testPromptConfig("model-a")
	analyze := true
	cfg.AnalyzeFirst = &analyze
	client := &stubModelClient{
		describeText: "a red cup on a wooden table",
		queue: []stubResponse{
			{outcome: &genai.EditOutcome{Image: &genai.InlineImage{Data: "b2s=", MIMEType: "image/png"}}},
		},
	}
	d := NewDispatcher(client, cfg, zerolog.Nop())

	result := d.Dispatch(context.Background(), testRequest())
	if !result.Success {
		t.Fatalf("unexpected failure: %q", result.Error)
	}
	if client.describes != 1 {
		t.Fatalf("expected one analysis call, got %d", client.describes)
	}
	instr := client.calls[0].Instruction
	if !strings.Contains(instr, "a red cup on a wooden table") {
		t.Fatalf("description not folded into instruction: %q", instr)
	}
	if !strings.Contains(instr, "Requested change: make it blue") {
		t.Fatalf("user prompt missing from instruction: %q", instr)
	}
}

func TestDispatchAnalysisFailureIsSwallowed(t *testing.T) {
	cfg := testPromptConfig("model-a")
	analyze := true
	cfg.AnalyzeFirst = &analyze
	client := &stubModelClient{
		describeErr: errors.New("gemini status 500"),
		queue: []stubResponse{
			{outcome: &genai.EditOutcome{Image: &genai.InlineImage{Data: "b2s=", MIMEType: "image/png"}}},
		},
	}
	d := NewDispatcher(client, cfg, zerolog.Nop())

	result := d.Dispatch(context.Background(), testRequest())
	if !result.Success {
		t.Fatalf("analysis failure must not block dispatch: %q", result.Error)
	}
	if strings.Contains(client.calls[0].Instruction, "Preserve these properties") {
		t.Fatalf("failed analysis must not leave a description line")
	}
}

func TestDispatchUsesConfiguredSampling(t *testing.T) {
	cfg := testPromptConfig("model-a")
	client := &stubModelClient{queue: []stubResponse{
		{outcome: &genai.EditOutcome{Image: &genai.InlineImage{Data: "b2s=", MIMEType: "image/png"}}},
	}}
	d := NewDispatcher(client, cfg, zerolog.Nop())

	d.Dispatch(context.Background(), testRequest())
	got := client.calls[0].Sampling
	if got.Temperature != 0.2 || got.TopP != 0.8 || got.TopK != 32 {
		t.Fatalf("sampling mismatch: %#v", got)
	}
}

func TestAnalyzeSubstitutesFallbackText(t *testing.T) {
	client := &stubModelClient{describeText: ""}
	d := NewDispatcher(client, testPromptConfig("model-a"), zerolog.Nop())

	text, err := d.Analyze(context.Background(), genai.InlineImage{Data: "b2s=", MIMEType: "image/png"})
	if err != nil {
		t.Fatalf("missing text must not be an error: %v", err)
	}
	if text != "unable to analyze" {
		t.Fatalf("fallback text mismatch: %q", text)
	}
}

func TestAnalyzePropagatesTransportError(t *testing.T) {
	client := &stubModelClient{describeErr: errors.New("connection refused")}
	d := NewDispatcher(client, testPromptConfig("model-a"), zerolog.Nop())

	if _, err := d.Analyze(context.Background(), genai.InlineImage{Data: "b2s=", MIMEType: "image/png"}); err == nil {
		t.Fatalf("transport failure must propagate")
	}
}
