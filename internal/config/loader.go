package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mockmentor/mockmentor/pkg/types"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"oracle":     {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"},
	"embeddings": {"openai"},
}

// weightSumTolerance absorbs float parsing noise; anything beyond it is a
// genuinely wrong weight set.
const weightSumTolerance = 1e-9

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("oracle", cfg.Oracle.Provider.Name)
	validateProviderName("embeddings", cfg.Embeddings.Name)

	if cfg.Oracle.Provider.Name == "" {
		slog.Warn("no oracle provider configured; scoring will run heuristic-only")
	}
	if cfg.Oracle.Timeout < 0 {
		errs = append(errs, fmt.Errorf("oracle.timeout must not be negative"))
	}

	// Embeddings ↔ storage dimensions
	if cfg.Embeddings.Name != "" && cfg.Storage.EmbeddingDimensions <= 0 {
		slog.Warn("embeddings is configured but storage.embedding_dimensions is not set; the model default will be used")
	}
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; transcripts and reports will not survive a restart")
	}

	// Scoring weights: optional as a whole, but strict once present. A wrong
	// weight set silently skews every overall score, so this fails fast.
	if len(cfg.Scoring.Weights) > 0 {
		sum := 0.0
		for dim, w := range cfg.Scoring.Weights {
			if !dim.IsValid() {
				errs = append(errs, fmt.Errorf("scoring.weights: unknown dimension %q", dim))
				continue
			}
			if w < 0 {
				errs = append(errs, fmt.Errorf("scoring.weights.%s %.4f must not be negative", dim, w))
			}
			sum += w
		}
		for _, dim := range types.AllDimensions() {
			if _, ok := cfg.Scoring.Weights[dim]; !ok {
				errs = append(errs, fmt.Errorf("scoring.weights.%s is required when weights are set", dim))
			}
		}
		if len(cfg.Scoring.Weights) == len(types.AllDimensions()) && math.Abs(sum-1.0) > weightSumTolerance {
			errs = append(errs, fmt.Errorf("scoring.weights must sum to 1.0, got %.6f", sum))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
