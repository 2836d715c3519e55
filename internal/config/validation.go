package config

import (
	"fmt"
)

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration and returns the first problem found.
// Called by Load; commands rely on this for fail-fast setup errors.
func (c *Config) Validate() error {
	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.validatePostgres(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateQuery()
}

// ValidateAPIKey checks that the Gemini API key is present. Separated from
// Validate so commands that never call the API (load) can skip it.
func (c *Config) ValidateAPIKey() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}
	return nil
}

func (c *Config) validateModels() error {
	for name, value := range map[string]string{
		"convert_model":  c.ConvertModel,
		"enrich_model":   c.EnrichModel,
		"answer_model":   c.AnswerModel,
		"embedder_model": c.EmbedderModel,
	} {
		if value == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidModelName, name)
		}
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.MaxAttempts < 1 || c.MaxAttempts > 10 {
		return fmt.Errorf("%w: max_attempts %d out of range 1-10", ErrInvalidRetry, c.MaxAttempts)
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("%w: retry_base_delay must not be negative", ErrInvalidRetry)
	}
	if c.DocumentWorkers < 1 {
		return fmt.Errorf("%w: document_workers must be at least 1", ErrInvalidRetry)
	}
	if c.MaxChunkSize <= 0 || c.CombineUnderSize <= 0 {
		return fmt.Errorf("%w: sizes must be positive", ErrInvalidChunkSizes)
	}
	if c.CombineUnderSize > c.MaxChunkSize {
		return fmt.Errorf("%w: combine_under_size %d exceeds max_chunk_size %d",
			ErrInvalidChunkSizes, c.CombineUnderSize, c.MaxChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d out of range [0, max_chunk_size)",
			ErrInvalidChunkSizes, c.ChunkOverlap)
	}
	return nil
}

func (c *Config) validateQuery() error {
	if c.EntityPolicy != EntityPolicyAccumulate && c.EntityPolicy != EntityPolicyReplace {
		return fmt.Errorf("%w: %q, must be %q or %q",
			ErrInvalidEntityPolicy, c.EntityPolicy, EntityPolicyAccumulate, EntityPolicyReplace)
	}
	if c.MinOccurrences < 1 {
		return fmt.Errorf("%w: min_occurrences must be at least 1", ErrInvalidLimit)
	}
	if c.UnfilteredLimit < 1 || c.FilteredLimit < 1 {
		return fmt.Errorf("%w: limits must be at least 1", ErrInvalidLimit)
	}
	if c.FilteredLimit < c.UnfilteredLimit {
		return fmt.Errorf("%w: filtered_limit %d below unfiltered_limit %d",
			ErrInvalidLimit, c.FilteredLimit, c.UnfilteredLimit)
	}
	return nil
}
