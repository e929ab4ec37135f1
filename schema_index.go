// snapcraftls/schema_index.go
// Builds the immutable name index from the generated snapcraft.json schema.
package snapcraftls

import (
	_ "embed"
	"encoding/json"
	"log/slog"
)

// The bundled schema is generated by cmd/snapcraft-schema-sync and used when
// no schema_path is configured.
//
//go:embed schemas/snapcraft.json
var embeddedSchema []byte

// SchemaIndex holds the three name sets extracted from the schema: interface
// names, plugin names, and base names. It is built once at startup and never
// mutated, so it is safe to share across concurrent hover queries without
// locking. An all-empty index is valid and simply disables plugin/base/
// interface recognition.
type SchemaIndex struct {
	interfaces map[string]struct{}
	plugins    map[string]struct{}
	bases      map[string]struct{}
}

// schemaDocument mirrors only the schema paths the index reads:
//
//	properties.slots.propertyNames.enum   -> interface names
//	$defs.Part.properties.plugin.enum     -> plugin names
//	properties.base.enum                  -> base names
type schemaDocument struct {
	Properties struct {
		Slots struct {
			PropertyNames struct {
				Enum []string `json:"enum"`
			} `json:"propertyNames"`
		} `json:"slots"`
		Base struct {
			Enum []string `json:"enum"`
		} `json:"base"`
	} `json:"properties"`
	Defs struct {
		Part struct {
			Properties struct {
				Plugin struct {
					Enum []string `json:"enum"`
				} `json:"plugin"`
			} `json:"properties"`
		} `json:"Part"`
	} `json:"$defs"`
}

// LoadSchemaIndex parses the schema document and extracts the name sets.
// Failure is never fatal: a malformed document, or a document missing any of
// the expected paths, yields empty sets for the affected categories and the
// hover feature degrades gracefully. No error propagates to callers.
func LoadSchemaIndex(data []byte, logger *slog.Logger) SchemaIndex {
	if logger == nil {
		logger = slog.Default()
	}
	idx := SchemaIndex{
		interfaces: make(map[string]struct{}),
		plugins:    make(map[string]struct{}),
		bases:      make(map[string]struct{}),
	}

	var doc schemaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("Failed to parse schema document, hover recognition sets are empty", "error", err)
		return idx
	}

	for _, name := range doc.Properties.Slots.PropertyNames.Enum {
		idx.interfaces[name] = struct{}{}
	}
	for _, name := range doc.Defs.Part.Properties.Plugin.Enum {
		idx.plugins[name] = struct{}{}
	}
	for _, name := range doc.Properties.Base.Enum {
		idx.bases[name] = struct{}{}
	}

	if len(idx.interfaces) == 0 {
		logger.Warn("Schema document has no interface names (properties.slots.propertyNames.enum missing or empty)")
	}
	if len(idx.plugins) == 0 {
		logger.Warn("Schema document has no plugin names ($defs.Part.properties.plugin.enum missing or empty)")
	}
	if len(idx.bases) == 0 {
		logger.Warn("Schema document has no base names (properties.base.enum missing or empty)")
	}
	logger.Info("Schema index loaded",
		"interfaces", len(idx.interfaces),
		"plugins", len(idx.plugins),
		"bases", len(idx.bases))
	return idx
}

// IsInterface reports whether name is a known interface name.
func (s SchemaIndex) IsInterface(name string) bool {
	_, ok := s.interfaces[name]
	return ok
}

// IsPlugin reports whether name is a known plugin name.
func (s SchemaIndex) IsPlugin(name string) bool {
	_, ok := s.plugins[name]
	return ok
}

// IsBase reports whether name is a known base name.
func (s SchemaIndex) IsBase(name string) bool {
	_, ok := s.bases[name]
	return ok
}

// Counts returns the set sizes, for logging and metrics.
func (s SchemaIndex) Counts() (interfaces, plugins, bases int) {
	return len(s.interfaces), len(s.plugins), len(s.bases)
}
