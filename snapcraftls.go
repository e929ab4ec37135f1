// snapcraftls/snapcraftls.go
// Core service for the snapcraft-ls language server: configuration loading,
// the schema index, the hover pipeline, and its caches.
package snapcraftls

import (
	"errors"
	"fmt"
	stdslog "log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dgraph-io/ristretto"
)

// =============================================================================
// Configuration Loading
// =============================================================================

// LoadConfig loads configuration from standard locations, merges with defaults,
// validates, and attempts to write a default config if needed.
func LoadConfig(logger *stdslog.Logger) (Config, error) {
	if logger == nil {
		logger = stdslog.Default()
	}
	cfg := getDefaultConfig()
	var loadedFromFile bool
	var loadErrors []error
	var configParseError error

	primaryPath, secondaryPath, pathErr := GetConfigPaths(logger)
	if pathErr != nil {
		loadErrors = append(loadErrors, pathErr)
		logger.Warn("Could not determine config paths, using defaults", "error", pathErr)
	}

	if primaryPath != "" {
		logger.Debug("Attempting to load config", "path", primaryPath)
		loaded, loadErr := LoadAndMergeConfig(primaryPath, &cfg, logger)
		if loadErr != nil {
			if strings.Contains(loadErr.Error(), "parsing config file JSON") {
				configParseError = loadErr
			}
			loadErrors = append(loadErrors, fmt.Errorf("loading %s failed: %w", primaryPath, loadErr))
			logger.Warn("Failed to load or merge config", "path", primaryPath, "error", loadErr)
		} else if loaded {
			loadedFromFile = true
			logger.Info("Loaded config", "path", primaryPath)
		}
	}

	primaryNotFoundOrFailed := !loadedFromFile || configParseError != nil
	if primaryNotFoundOrFailed && secondaryPath != "" && secondaryPath != primaryPath {
		logger.Debug("Attempting to load config from secondary path", "path", secondaryPath)
		loaded, loadErr := LoadAndMergeConfig(secondaryPath, &cfg, logger)
		if loadErr != nil {
			if configParseError == nil && strings.Contains(loadErr.Error(), "parsing config file JSON") {
				configParseError = loadErr
			}
			loadErrors = append(loadErrors, fmt.Errorf("loading %s failed: %w", secondaryPath, loadErr))
			logger.Warn("Failed to load or merge config", "path", secondaryPath, "error", loadErr)
		} else if loaded && !loadedFromFile {
			loadedFromFile = true
			logger.Info("Loaded config", "path", secondaryPath)
		}
	}

	loadSucceeded := loadedFromFile && configParseError == nil
	if !loadSucceeded {
		writePath := primaryPath
		if writePath == "" {
			writePath = secondaryPath
		}
		if writePath != "" {
			if configParseError != nil {
				logger.Warn("Existing config file failed to parse. Attempting to write default.", "path", writePath, "error", configParseError)
			} else {
				logger.Info("No valid config file found. Attempting to write default.", "path", writePath)
			}
			if err := WriteDefaultConfig(writePath, getDefaultConfig(), logger); err != nil {
				logger.Warn("Failed to write default config", "path", writePath, "error", err)
				loadErrors = append(loadErrors, fmt.Errorf("writing default config failed: %w", err))
			}
		}
		cfg = getDefaultConfig()
		logger.Info("Using default configuration values.")
	}

	finalCfg := cfg
	if err := finalCfg.Validate(logger); err != nil {
		logger.Warn("Configuration validation adjusted or rejected values.", "error", err)
		loadErrors = append(loadErrors, fmt.Errorf("post-load config validation: %w", err))
	}

	if len(loadErrors) > 0 {
		return finalCfg, fmt.Errorf("%w: %w", ErrConfig, errors.Join(loadErrors...))
	}
	return finalCfg, nil
}

// =============================================================================
// Core Service
// =============================================================================

// Service ties the schema index, configuration, hover cache, and persisted
// state together. It is the single long-lived object behind the LSP server.
type Service struct {
	mu         sync.RWMutex // Protects config; schema index is immutable after construction.
	config     Config
	schema     SchemaIndex
	hoverCache *ristretto.Cache
	hoverKeys  map[DocumentURI][]string // Tracks cache keys per URI for invalidation.
	keysMu     sync.Mutex
	state      *StateStore
	logger     *stdslog.Logger
}

// NewService creates a Service using configuration loaded from standard
// locations. A returned error wrapping ErrConfig is non-fatal: the service is
// usable with the (defaulted) configuration it carries.
func NewService(logger *stdslog.Logger) (*Service, error) {
	if logger == nil {
		logger = stdslog.Default()
	}
	cfg, cfgErr := LoadConfig(logger)
	svc, err := NewServiceWithConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return svc, cfgErr
}

// NewServiceWithConfig creates a Service from an explicit configuration.
// The schema index is loaded here, once, strictly before any hover is served.
func NewServiceWithConfig(config Config, logger *stdslog.Logger) (*Service, error) {
	if logger == nil {
		logger = stdslog.Default()
	}
	if err := config.Validate(logger); err != nil {
		logger.Warn("Service created with adjusted configuration", "error", err)
	}

	schemaData := embeddedSchema
	if config.SchemaPath != "" {
		data, err := os.ReadFile(config.SchemaPath)
		if err != nil {
			// Degrade to the bundled schema rather than failing startup.
			logger.Warn("Failed to read configured schema file, using bundled schema",
				"path", config.SchemaPath, "error", fmt.Errorf("%w: %w", ErrSchemaLoad, err))
		} else {
			schemaData = data
		}
	}
	schema := LoadSchemaIndex(schemaData, logger)

	hoverCache, cacheErr := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 24, // 16MB of rendered hover markdown is plenty.
		BufferItems: 64,
		Metrics:     true,
	})
	if cacheErr != nil {
		logger.Warn("Failed to create ristretto hover cache, hover caching disabled.", "error", cacheErr)
		hoverCache = nil
	}

	return &Service{
		config:     config,
		schema:     schema,
		hoverCache: hoverCache,
		hoverKeys:  make(map[DocumentURI][]string),
		state:      OpenStateStore(logger),
		logger:     logger,
	}, nil
}

// Close releases the hover cache and state store.
func (s *Service) Close() error {
	var closeErrors []error
	if s.hoverCache != nil {
		s.hoverCache.Close()
		s.hoverCache = nil
	}
	if s.state != nil {
		if err := s.state.Close(); err != nil {
			closeErrors = append(closeErrors, err)
		}
	}
	if len(closeErrors) > 0 {
		return errors.Join(closeErrors...)
	}
	return nil
}

// GetCurrentConfig returns a copy of the current configuration.
func (s *Service) GetCurrentConfig() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig validates and applies a new configuration.
func (s *Service) UpdateConfig(newConfig Config) error {
	if err := newConfig.Validate(s.logger); err != nil {
		return err
	}
	s.mu.Lock()
	s.config = newConfig
	s.mu.Unlock()
	s.logger.Info("Service configuration updated",
		"enable_hover", newConfig.EnableHover, "log_level", newConfig.LogLevel)
	return nil
}

// Schema returns the immutable schema index.
func (s *Service) Schema() SchemaIndex {
	return s.schema
}

// State returns the persisted state store.
func (s *Service) State() *StateStore {
	return s.state
}

// =============================================================================
// Hover Pipeline
// =============================================================================

// HoverContent classifies the position and renders the tooltip markdown.
// An empty content string means no tooltip should be shown.
func (s *Service) HoverContent(doc string, pos Position) (string, Classification) {
	c := Classify(doc, pos, s.schema)
	if c.Kind == KindNone {
		return "", c
	}
	return renderHoverContent(c), c
}

// renderHoverContent builds the markdown block shown in the tooltip: the
// bolded token, a category label for schema-recognized names, and the
// documentation link.
func renderHoverContent(c Classification) string {
	var b strings.Builder
	b.WriteString("**")
	b.WriteString(c.Name)
	b.WriteString("**")

	switch c.Kind {
	case KindPlugin:
		b.WriteString(" (plugin)\n\n[Plugin documentation](")
	case KindBase:
		b.WriteString(" (base)\n\n[Base documentation](")
	case KindInterface:
		b.WriteString(" (interface)\n\n[Supported interfaces](")
	case KindKey:
		b.WriteString("\n\n[snapcraft.yaml reference](")
	default:
		return ""
	}
	b.WriteString(c.URL)
	b.WriteString(")")
	return b.String()
}

// =============================================================================
// Hover Cache
// =============================================================================

// HoverCacheKey builds the cache key for a hover query. The document version
// is part of the key, so an edit can never serve stale content.
func HoverCacheKey(uri DocumentURI, version int, pos LSPPosition) string {
	return fmt.Sprintf("hover:%s:%d:%d:%d", uri, version, pos.Line, pos.Character)
}

// GetCachedHover returns a previously rendered hover for the key, if any.
func (s *Service) GetCachedHover(key string) (string, bool) {
	if s.hoverCache == nil {
		return "", false
	}
	v, found := s.hoverCache.Get(key)
	if !found {
		return "", false
	}
	content, ok := v.(string)
	if !ok {
		s.logger.Error("Hover cache type assertion failed", "cache_key", key, "actual_type", fmt.Sprintf("%T", v))
		return "", false
	}
	return content, true
}

// SetCachedHover stores rendered hover content for the key.
func (s *Service) SetCachedHover(uri DocumentURI, key, content string) {
	if s.hoverCache == nil {
		return
	}
	cost := int64(len(content))
	if cost <= 0 {
		cost = 1
	}
	ttl := s.GetCurrentConfig().MemoryCacheTTL
	if !s.hoverCache.SetWithTTL(key, content, cost, ttl) {
		s.logger.Debug("Hover cache set rejected", "cache_key", key)
		return
	}
	s.keysMu.Lock()
	s.hoverKeys[uri] = append(s.hoverKeys[uri], key)
	s.keysMu.Unlock()
}

// InvalidateHoverCacheForURI drops all cached hovers for a document. Called on
// didChange and didClose; version-scoped keys make this belt and braces, but
// it keeps dead entries from occupying cache budget until their TTL.
func (s *Service) InvalidateHoverCacheForURI(uri DocumentURI) {
	if s.hoverCache == nil {
		return
	}
	s.keysMu.Lock()
	keys := s.hoverKeys[uri]
	delete(s.hoverKeys, uri)
	s.keysMu.Unlock()
	for _, key := range keys {
		s.hoverCache.Del(key)
	}
	if len(keys) > 0 {
		s.logger.Debug("Invalidated hover cache entries", "uri", uri, "count", len(keys))
	}
}

// HoverCacheMetrics exposes ristretto metrics for expvar publishing.
func (s *Service) HoverCacheMetrics() *ristretto.Metrics {
	if s.hoverCache == nil {
		return nil
	}
	return s.hoverCache.Metrics
}

// HoverCacheEnabled reports whether hover caching is active.
func (s *Service) HoverCacheEnabled() bool {
	return s.hoverCache != nil
}
