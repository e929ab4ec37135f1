// snapcraftls/snapcraftls_types.go
// Contains core type definitions used throughout the snapcraftls package.
package snapcraftls

import (
	"errors"
	"fmt"
	stdslog "log/slog"
	"strings"
	"time"
)

// =============================================================================
// Configuration Types & Constants
// =============================================================================

const (
	defaultLogLevel           = "info"
	defaultEnableHover        = true
	defaultMemoryCacheTTLSecs = 300             // TTL for cached hover renderings (5 minutes).
	defaultConfigFileName     = "config.json"   // Default config file name.
	configDirName             = "snapcraft-ls"  // Subdirectory name for config/state.
	stateSchemaVersion        = 1               // Used to invalidate persisted state if formats change.
)

// Config holds the active configuration for the language server.
type Config struct {
	LogLevel              string        `json:"log_level"`                // Log level (debug, info, warn, error).
	EnableHover           bool          `json:"enable_hover"`             // Global gate for hover responses.
	SchemaPath            string        `json:"schema_path"`              // Optional path to a snapcraft.json schema; empty uses the bundled copy.
	MemoryCacheTTLSeconds int           `json:"memory_cache_ttl_seconds"` // TTL for memory cache items.
	MemoryCacheTTL        time.Duration `json:"-"`                        // Derived duration, not from file.
}

// FileConfig represents the structure of the JSON config file for unmarshalling.
// Uses pointers to distinguish between unset fields and zero-value fields.
type FileConfig struct {
	LogLevel              *string `json:"log_level"`
	EnableHover           *bool   `json:"enable_hover"`
	SchemaPath            *string `json:"schema_path"`
	MemoryCacheTTLSeconds *int    `json:"memory_cache_ttl_seconds"`
}

// getDefaultConfig returns a new instance of the default configuration.
func getDefaultConfig() Config {
	ttl := time.Duration(defaultMemoryCacheTTLSecs) * time.Second
	return Config{
		LogLevel:              defaultLogLevel,
		EnableHover:           defaultEnableHover,
		SchemaPath:            "",
		MemoryCacheTTLSeconds: defaultMemoryCacheTTLSecs,
		MemoryCacheTTL:        ttl,
	}
}

// Validate checks if configuration values are valid, applying defaults for some fields.
func (c *Config) Validate(logger *stdslog.Logger) error {
	var validationErrors []error
	if logger == nil {
		logger = stdslog.Default()
	}
	tempDefault := getDefaultConfig()

	if c.MemoryCacheTTLSeconds <= 0 {
		logger.Warn("Config validation: memory_cache_ttl_seconds is not positive, applying default.", "configured_value", c.MemoryCacheTTLSeconds, "default", tempDefault.MemoryCacheTTLSeconds)
		c.MemoryCacheTTLSeconds = tempDefault.MemoryCacheTTLSeconds
	}
	// Derive the time.Duration from the seconds value after validation/defaulting.
	c.MemoryCacheTTL = time.Duration(c.MemoryCacheTTLSeconds) * time.Second

	if c.LogLevel == "" {
		logger.Warn("Config validation: log_level is empty, applying default.", "default", defaultLogLevel)
		c.LogLevel = defaultLogLevel
	} else {
		_, err := ParseLogLevel(c.LogLevel)
		if err != nil {
			logger.Warn("Config validation: Invalid log_level found, applying default.", "configured_value", c.LogLevel, "default", defaultLogLevel, "error", err)
			validationErrors = append(validationErrors, fmt.Errorf("invalid log_level '%s': %w", c.LogLevel, err))
			c.LogLevel = defaultLogLevel
		}
	}

	if c.SchemaPath != "" && strings.TrimSpace(c.SchemaPath) == "" {
		validationErrors = append(validationErrors, errors.New("schema_path is whitespace only"))
		c.SchemaPath = ""
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(validationErrors...))
	}
	return nil
}

// =============================================================================
// Classification Types
// =============================================================================

// Position is a 0-based line/character position. Character is a byte offset
// within the line (LSP UTF-16 offsets are converted before classification).
type Position struct {
	Line      int
	Character int
}

// ClassificationKind identifies what kind of documentation a hover resolves to.
type ClassificationKind int

const (
	// KindNone means no tooltip should be shown. It is a normal outcome, not an error.
	KindNone ClassificationKind = iota
	// KindKey is any word token in key position; it links to the project-file reference.
	KindKey
	// KindPlugin is a recognized plugin name in value position under a "plugin" key.
	KindPlugin
	// KindBase is a recognized base name under a "base" or "build-base" key.
	KindBase
	// KindInterface is a recognized interface name nested under a plugs/slots mapping.
	KindInterface
)

// String returns a short label for the kind, used in hover content and logs.
func (k ClassificationKind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindPlugin:
		return "plugin"
	case KindBase:
		return "base"
	case KindInterface:
		return "interface"
	default:
		return "none"
	}
}

// Classification is the result of classifying a hover position. Produced fresh
// per query and consumed immediately; never mutated or cached by the classifier.
type Classification struct {
	Kind ClassificationKind
	Name string // The token under the cursor.
	URL  string // Documentation link; empty for KindNone.

	// Byte-offset range of the token within its line, for highlight ranges.
	StartCol int
	EndCol   int
}
