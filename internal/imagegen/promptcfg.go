package imagegen

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SamplingConfig holds the fixed generation parameters. The defaults are
// deliberately low-randomness so the model follows the instruction literally
// instead of diverging creatively.
type SamplingConfig struct {
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	TopK        int     `yaml:"top_k"`
}

// PromptConfig captures the knobs the upstream kept rewriting by hand: which
// models to try in which order, the guard clause, and whether an analysis
// pre-pass runs. It can be overridden from a YAML file.
type PromptConfig struct {
	GuardClause         string         `yaml:"guard_clause"`
	EditModels          []string       `yaml:"edit_models"`
	AnalysisModel       string         `yaml:"analysis_model"`
	AnalyzeFirst        *bool          `yaml:"analyze_first"`
	AnalysisInstruction string         `yaml:"analysis_instruction"`
	Sampling            SamplingConfig `yaml:"sampling"`
}

const defaultGuardClause = "You are editing the provided image. Use it as the base for your output. " +
	"Do not generate a new or unrelated scene. Preserve the subject's identity, " +
	"pose, and overall composition unless the requested change below explicitly " +
	"says otherwise. Apply only the requested change."

const defaultAnalysisInstruction = "Describe this image objectively in one short " +
	"sentence: the main subject, its pose or orientation, and the background. " +
	"Do not speculate or editorialize."

// DefaultPromptConfig returns the built-in prompt configuration.
func DefaultPromptConfig() PromptConfig {
	analyze := true
	return PromptConfig{
		GuardClause: defaultGuardClause,
		EditModels: []string{
			"gemini-2.5-flash-image-preview",
			"gemini-2.0-flash-preview-image-generation",
		},
		AnalysisModel:       "gemini-2.5-flash",
		AnalyzeFirst:        &analyze,
		AnalysisInstruction: defaultAnalysisInstruction,
		Sampling: SamplingConfig{
			Temperature: 0.2,
			TopP:        0.8,
			TopK:        32,
		},
	}
}

// LoadPromptConfig reads a YAML override file and merges it over the
// defaults. An empty path yields the defaults unchanged.
func LoadPromptConfig(path string) (PromptConfig, error) {
	cfg := DefaultPromptConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read prompt config: %w", err)
	}

	var override PromptConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return cfg, fmt.Errorf("parse prompt config: %w", err)
	}

	if strings.TrimSpace(override.GuardClause) != "" {
		cfg.GuardClause = strings.TrimSpace(override.GuardClause)
	}
	if len(override.EditModels) > 0 {
		cfg.EditModels = override.EditModels
	}
	if strings.TrimSpace(override.AnalysisModel) != "" {
		cfg.AnalysisModel = strings.TrimSpace(override.AnalysisModel)
	}
	if override.AnalyzeFirst != nil {
		cfg.AnalyzeFirst = override.AnalyzeFirst
	}
	if strings.TrimSpace(override.AnalysisInstruction) != "" {
		cfg.AnalysisInstruction = strings.TrimSpace(override.AnalysisInstruction)
	}
	if override.Sampling.Temperature > 0 {
		cfg.Sampling.Temperature = override.Sampling.Temperature
	}
	if override.Sampling.TopP > 0 {
		cfg.Sampling.TopP = override.Sampling.TopP
	}
	if override.Sampling.TopK > 0 {
		cfg.Sampling.TopK = override.Sampling.TopK
	}

	return cfg, nil
}
