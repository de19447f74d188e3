package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key is required for all AI operations.
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity).
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.DirectMaxTokens < 1 || c.DirectMaxTokens > 8192 {
		return fmt.Errorf("%w: direct_max_tokens must be between 1 and 8192, got %d",
			ErrInvalidMaxTokens, c.DirectMaxTokens)
	}

	if c.AugmentedMaxTokens < 1 || c.AugmentedMaxTokens > 8192 {
		return fmt.Errorf("%w: augmented_max_tokens must be between 1 and 8192, got %d",
			ErrInvalidMaxTokens, c.AugmentedMaxTokens)
	}

	// Thresholds all live in [0, 1]: similarities are 1/(1+distance) and the
	// quality score is a convex combination of similarity and diversity.
	thresholds := map[string]float64{
		"similarity_threshold":  c.SimilarityThreshold,
		"rerank_threshold":      c.RerankThreshold,
		"quality_target":        c.QualityTarget,
		"avg_similarity_target": c.AvgSimilarityTarget,
	}
	for name, v := range thresholds {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be between 0.0 and 1.0, got %.2f",
				ErrInvalidThreshold, name, v)
		}
	}

	if c.SearchTopN < 1 || c.SearchTopN > 20 {
		return fmt.Errorf("%w: search_top_n must be between 1 and 20, got %d",
			ErrInvalidSearchBounds, c.SearchTopN)
	}

	if c.MaxSearchIterations < 0 || c.MaxSearchIterations > 5 {
		return fmt.Errorf("%w: max_search_iterations must be between 0 and 5, got %d",
			ErrInvalidSearchBounds, c.MaxSearchIterations)
	}

	if c.HistoryLimit < 1 || c.HistoryLimit > 100 {
		return fmt.Errorf("%w: history_limit must be between 1 and 100, got %d",
			ErrInvalidHistoryLimit, c.HistoryLimit)
	}

	// PostgreSQL configuration.
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	// Warn on the default dev password but don't block local development.
	if c.PostgresPassword == "counsel_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only. The deprecated allow/prefer modes are vulnerable
	// to MITM attacks.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}

	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
