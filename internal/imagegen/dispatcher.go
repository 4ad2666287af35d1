package imagegen

import (
	"context"
	"fmt"
	"strings"

	"retouch/internal/domain"
	"retouch/internal/infra"
	"retouch/internal/providers/genai"
)

const analysisUnavailable = "unable to analyze"

// Dispatcher walks an ordered chain of edit-capable models until one returns
// an image. A transport error or an image-less answer both advance to the
// next candidate; only exhausting the chain produces a failure.
type Dispatcher struct {
	client ModelClient
	cfg    PromptConfig
	logger infra.Logger
}

// NewDispatcher wires the dispatcher with its model client and prompt
// configuration. The client is an explicit dependency so tests can inject
// doubles.
func NewDispatcher(client ModelClient, cfg PromptConfig, logger infra.Logger) *Dispatcher {
	if len(cfg.EditModels) == 0 {
		cfg.EditModels = DefaultPromptConfig().EditModels
	}
	if strings.TrimSpace(cfg.GuardClause) == "" {
		cfg.GuardClause = DefaultPromptConfig().GuardClause
	}
	return &Dispatcher{client: client, cfg: cfg, logger: logger}
}

// Models returns the configured candidate chain, primary first.
func (d *Dispatcher) Models() []string {
	return d.cfg.EditModels
}

// Dispatch runs the fallback chain for one normalized request and reports a
// uniform result. It never returns an error: every failure mode collapses
// into Result{Success: false} with a diagnostic message.
func (d *Dispatcher) Dispatch(ctx context.Context, req EditRequest) Result {
	// Callers may hand over a data URL; the wire format wants bare base64
	// with canonical padding.
	data, mimeType := NormalizeImagePayload(req.ImageData, req.MIMEType)
	image := genai.InlineImage{Data: data, MIMEType: mimeType}

	description := ""
	if d.cfg.AnalyzeFirst == nil || *d.cfg.AnalyzeFirst {
		description = d.describe(ctx, image)
	}
	instruction := BuildInstruction(d.cfg.GuardClause, req.Prompt, description, req.Locale)

	var lastText string
	var lastErr error
	for _, model := range d.cfg.EditModels {
		outcome, err := d.client.EditImage(ctx, genai.EditCall{
			Model:       model,
			Image:       image,
			Instruction: instruction,
			Sampling: genai.Sampling{
				Temperature: d.cfg.Sampling.Temperature,
				TopP:        d.cfg.Sampling.TopP,
				TopK:        d.cfg.Sampling.TopK,
			},
		})
		if err != nil {
			lastErr = err
			d.logger.Warn().
				Err(err).
				Str("model", model).
				Msg("imagegen: edit call failed, trying next candidate")
			continue
		}
		if outcome.Image != nil {
			d.logger.Info().
				Str("model", model).
				Msg("imagegen: edit succeeded")
			payload, payloadMIME := NormalizeImagePayload(outcome.Image.Data, outcome.Image.MIMEType)
			return Result{
				Success:   true,
				ImageData: payload,
				MIMEType:  payloadMIME,
			}
		}
		if text := strings.TrimSpace(outcome.Text); text != "" {
			lastText = text
		}
		d.logger.Warn().
			Str("model", model).
			Msg("imagegen: model answered without an image, trying next candidate")
	}

	// The model's own refusal text is the most useful diagnostic; the last
	// transport error is the next best thing.
	message := lastText
	if message == "" && lastErr != nil {
		message = lastErr.Error()
	}
	if message == "" {
		message = "no image returned by any model"
	}
	return Result{
		Success: false,
		Error:   message,
		Err:     fmt.Errorf("%w: %s", domain.ErrProviderFailure, message),
	}
}

// Analyze obtains a short factual description of the image. A missing text
// part is not an error, just an uninformative answer; transport failures
// propagate to the caller.
func (d *Dispatcher) Analyze(ctx context.Context, image genai.InlineImage) (string, error) {
	text, err := d.client.DescribeImage(ctx, d.cfg.AnalysisModel, image, d.cfg.AnalysisInstruction)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return analysisUnavailable, nil
	}
	return text, nil
}

// describe is the best-effort pre-pass: any failure is logged and swallowed
// so it can never block the edit itself.
func (d *Dispatcher) describe(ctx context.Context, image genai.InlineImage) string {
	text, err := d.Analyze(ctx, image)
	if err != nil {
		d.logger.Debug().
			Err(err).
			Msg("imagegen: analysis pre-pass failed, continuing without it")
		return ""
	}
	if text == analysisUnavailable {
		return ""
	}
	return text
}
