package config

import (
	"fmt"
	"strings"
)

// validSSLModes are the PostgreSQL SSL modes accepted by libpq/pgx.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration for invalid values.
// Returns the first validation error found, wrapped around a sentinel error
// so callers can use errors.Is().
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}

	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}

	if c.AnswerTopK < 1 || c.AnswerTopK > MaxAnswerTopK {
		return fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidTopK, MaxAnswerTopK, c.AnswerTopK)
	}

	if c.ChunkTargetSize < 200 {
		return fmt.Errorf("%w: target size must be at least 200, got %d", ErrInvalidChunking, c.ChunkTargetSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkTargetSize {
		return fmt.Errorf("%w: overlap must be in [0, target size), got %d", ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("%w: rps must not be negative, got %g", ErrInvalidRateLimit, c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("%w: burst must be at least 1, got %d", ErrInvalidRateLimit, c.RateLimitBurst)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q is not a valid sslmode", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}
