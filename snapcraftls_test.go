// snapcraftls/snapcraftls_test.go
package snapcraftls

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newTestService builds a Service with the bundled schema, keeping all
// filesystem side effects inside the test's temp directory.
func newTestService(t *testing.T) *Service {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	svc, err := NewServiceWithConfig(getDefaultConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewServiceWithConfig() error = %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

// ============================================================================
// Configuration
// ============================================================================

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantErr      bool
		wantLogLevel string
		wantTTLSecs  int
	}{
		{
			name:         "defaults pass unchanged",
			cfg:          getDefaultConfig(),
			wantErr:      false,
			wantLogLevel: "info",
			wantTTLSecs:  defaultMemoryCacheTTLSecs,
		},
		{
			name:         "invalid log level is reported and defaulted",
			cfg:          Config{LogLevel: "verbose", EnableHover: true, MemoryCacheTTLSeconds: 60},
			wantErr:      true,
			wantLogLevel: "info",
			wantTTLSecs:  60,
		},
		{
			name:         "empty log level is defaulted silently",
			cfg:          Config{LogLevel: "", EnableHover: true, MemoryCacheTTLSeconds: 60},
			wantErr:      false,
			wantLogLevel: "info",
			wantTTLSecs:  60,
		},
		{
			name:         "non-positive ttl is defaulted silently",
			cfg:          Config{LogLevel: "debug", EnableHover: true, MemoryCacheTTLSeconds: -5},
			wantErr:      false,
			wantLogLevel: "debug",
			wantTTLSecs:  defaultMemoryCacheTTLSecs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(testLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
			if tt.cfg.LogLevel != tt.wantLogLevel {
				t.Errorf("LogLevel after Validate() = %q, want %q", tt.cfg.LogLevel, tt.wantLogLevel)
			}
			if tt.cfg.MemoryCacheTTLSeconds != tt.wantTTLSecs {
				t.Errorf("MemoryCacheTTLSeconds after Validate() = %d, want %d", tt.cfg.MemoryCacheTTLSeconds, tt.wantTTLSecs)
			}
		})
	}
}

func TestLoadAndMergeConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is not an error", func(t *testing.T) {
		cfg := getDefaultConfig()
		loaded, err := LoadAndMergeConfig(filepath.Join(dir, "missing.json"), &cfg, testLogger())
		if err != nil {
			t.Fatalf("LoadAndMergeConfig() error = %v", err)
		}
		if loaded {
			t.Error("LoadAndMergeConfig() loaded = true for missing file")
		}
	})

	t.Run("set fields override defaults, unset fields survive", func(t *testing.T) {
		path := filepath.Join(dir, "config.json")
		content := `{"log_level": "debug", "enable_hover": false}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing config fixture: %v", err)
		}
		cfg := getDefaultConfig()
		loaded, err := LoadAndMergeConfig(path, &cfg, testLogger())
		if err != nil || !loaded {
			t.Fatalf("LoadAndMergeConfig() = (%v, %v), want (true, nil)", loaded, err)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.EnableHover {
			t.Error("EnableHover = true, want false")
		}
		if cfg.MemoryCacheTTLSeconds != defaultMemoryCacheTTLSecs {
			t.Errorf("MemoryCacheTTLSeconds = %d, want default %d", cfg.MemoryCacheTTLSeconds, defaultMemoryCacheTTLSecs)
		}
	})

	t.Run("malformed file reports a parse error", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		if err := os.WriteFile(path, []byte(`{"log_level": `), 0644); err != nil {
			t.Fatalf("writing config fixture: %v", err)
		}
		cfg := getDefaultConfig()
		loaded, err := LoadAndMergeConfig(path, &cfg, testLogger())
		if !loaded {
			t.Error("LoadAndMergeConfig() loaded = false, want true (file existed)")
		}
		if err == nil || !strings.Contains(err.Error(), "parsing config file JSON") {
			t.Errorf("LoadAndMergeConfig() error = %v, want JSON parse error", err)
		}
	})
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	if err := WriteDefaultConfig(path, getDefaultConfig(), testLogger()); err != nil {
		t.Fatalf("WriteDefaultConfig() error = %v", err)
	}
	cfg := getDefaultConfig()
	cfg.LogLevel = "overwritten"
	loaded, err := LoadAndMergeConfig(path, &cfg, testLogger())
	if err != nil || !loaded {
		t.Fatalf("round-trip LoadAndMergeConfig() = (%v, %v), want (true, nil)", loaded, err)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("LogLevel after round trip = %q, want %q", cfg.LogLevel, defaultLogLevel)
	}
}

// ============================================================================
// Hover Rendering
// ============================================================================

func TestRenderHoverContent(t *testing.T) {
	tests := []struct {
		name string
		c    Classification
		want string
	}{
		{
			name: "key",
			c:    Classification{Kind: KindKey, Name: "version", URL: ReferenceBaseURL + "#version"},
			want: "**version**\n\n[snapcraft.yaml reference](" + ReferenceBaseURL + "#version)",
		},
		{
			name: "plugin",
			c:    Classification{Kind: KindPlugin, Name: "go", URL: PluginsBaseURL + "go-plugin/"},
			want: "**go** (plugin)\n\n[Plugin documentation](" + PluginsBaseURL + "go-plugin/)",
		},
		{
			name: "base",
			c:    Classification{Kind: KindBase, Name: "core24", URL: BasesBaseURL + "#core24"},
			want: "**core24** (base)\n\n[Base documentation](" + BasesBaseURL + "#core24)",
		},
		{
			name: "interface",
			c:    Classification{Kind: KindInterface, Name: "network", URL: InterfacesIndexURL},
			want: "**network** (interface)\n\n[Supported interfaces](" + InterfacesIndexURL + ")",
		},
		{
			name: "none renders empty",
			c:    Classification{Kind: KindNone},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderHoverContent(tt.c); got != tt.want {
				t.Errorf("renderHoverContent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestServiceHoverContent(t *testing.T) {
	svc := newTestService(t)

	doc := "name: my-snap\nbase: core24\n"
	content, c := svc.HoverContent(doc, Position{Line: 1, Character: 8})
	if c.Kind != KindBase || c.Name != "core24" {
		t.Fatalf("HoverContent() classification = %+v, want base core24", c)
	}
	if !strings.Contains(content, BasesBaseURL+"#core24") {
		t.Errorf("HoverContent() = %q, missing base link", content)
	}

	content, c = svc.HoverContent(doc, Position{Line: 0, Character: 13})
	if content != "" || c.Kind != KindNone {
		t.Errorf("HoverContent() on line end = (%q, %+v), want empty", content, c)
	}
}

// ============================================================================
// Hover Cache
// ============================================================================

func TestHoverCacheKey(t *testing.T) {
	key := HoverCacheKey("file:///p/snapcraft.yaml", 7, LSPPosition{Line: 3, Character: 12})
	want := "hover:file:///p/snapcraft.yaml:7:3:12"
	if key != want {
		t.Errorf("HoverCacheKey() = %q, want %q", key, want)
	}
}

func TestServiceHoverCache(t *testing.T) {
	svc := newTestService(t)
	if !svc.HoverCacheEnabled() {
		t.Fatal("hover cache unexpectedly disabled")
	}

	uri := DocumentURI("file:///p/snapcraft.yaml")
	key := HoverCacheKey(uri, 1, LSPPosition{Line: 0, Character: 2})
	svc.SetCachedHover(uri, key, "rendered content")
	svc.hoverCache.Wait() // Ristretto sets are buffered.

	got, found := svc.GetCachedHover(key)
	if !found || got != "rendered content" {
		t.Fatalf("GetCachedHover() = (%q, %v), want cached content", got, found)
	}

	svc.InvalidateHoverCacheForURI(uri)
	svc.hoverCache.Wait()
	if _, found := svc.GetCachedHover(key); found {
		t.Error("GetCachedHover() found entry after invalidation")
	}

	// Invalidating an unknown URI is a no-op.
	svc.InvalidateHoverCacheForURI("file:///unknown")
}

// ============================================================================
// State Store
// ============================================================================

func TestStateStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state", "state.db")

	store := openStateStoreAt(dbPath, testLogger())
	if !store.Enabled() {
		t.Fatal("state store failed to open")
	}
	if store.WelcomeShown() {
		t.Error("WelcomeShown() = true on fresh store")
	}
	if err := store.MarkWelcomeShown(); err != nil {
		t.Fatalf("MarkWelcomeShown() error = %v", err)
	}
	if !store.WelcomeShown() {
		t.Error("WelcomeShown() = false after marking")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// The flag survives a restart.
	reopened := openStateStoreAt(dbPath, testLogger())
	defer reopened.Close()
	if !reopened.WelcomeShown() {
		t.Error("WelcomeShown() = false after reopen")
	}
}

func TestStateStoreDegraded(t *testing.T) {
	store := &StateStore{logger: testLogger()}
	if store.Enabled() {
		t.Error("Enabled() = true for store without database")
	}
	if store.WelcomeShown() {
		t.Error("WelcomeShown() = true for degraded store")
	}
	if err := store.MarkWelcomeShown(); err != nil {
		t.Errorf("MarkWelcomeShown() error = %v for degraded store, want nil", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v for degraded store, want nil", err)
	}
}

// ============================================================================
// Position Conversion
// ============================================================================

func TestLspPositionToLineCol(t *testing.T) {
	content := []byte("name: my-snap\nsummary: café \U0001F680\nparts:\n")

	tests := []struct {
		name     string
		pos      LSPPosition
		wantLine int
		wantCol  int
		wantErr  bool
	}{
		{"start of file", LSPPosition{Line: 0, Character: 0}, 0, 0, false},
		{"ascii offset", LSPPosition{Line: 0, Character: 6}, 0, 6, false},
		{"after two-byte rune", LSPPosition{Line: 1, Character: 13}, 1, 14, false},
		{"after surrogate pair", LSPPosition{Line: 1, Character: 16}, 1, 19, false},
		{"clamped past line end", LSPPosition{Line: 0, Character: 99}, 0, 13, false},
		{"line after last content line", LSPPosition{Line: 3, Character: 0}, 3, 0, false},
		{"line well past end", LSPPosition{Line: 10, Character: 0}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, col, err := LspPositionToLineCol(content, tt.pos)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LspPositionToLineCol() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if line != tt.wantLine || col != tt.wantCol {
				t.Errorf("LspPositionToLineCol() = (%d, %d), want (%d, %d)", line, col, tt.wantLine, tt.wantCol)
			}
		})
	}
}

func TestByteColToUTF16(t *testing.T) {
	line := []byte("café \U0001F680 x")

	tests := []struct {
		name    string
		byteCol int
		want    uint32
	}{
		{"start", 0, 0},
		{"ascii run", 3, 3},
		{"after two-byte rune", 5, 4},
		{"after surrogate pair", 10, 7},
		{"clamped past end", 99, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ByteColToUTF16(line, tt.byteCol)
			if err != nil {
				t.Fatalf("ByteColToUTF16() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ByteColToUTF16(%d) = %d, want %d", tt.byteCol, got, tt.want)
			}
		})
	}
}

// ============================================================================
// Document URI Matching
// ============================================================================

func TestIsSnapcraftDocument(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"file:///home/dev/project/snap/snapcraft.yaml", true},
		{"file:///home/dev/project/snapcraft.yml", true},
		{"file:///home/dev/project/Snapcraft.YAML", true},
		{"file:///home/dev/project/other.yaml", false},
		{"file:///home/dev/snapcraft.yaml.bak", false},
		{"file:///snapcraft.yaml", true},
		{"://bad-uri", false},
	}
	for _, tt := range tests {
		if got := IsSnapcraftDocument(DocumentURI(tt.uri)); got != tt.want {
			t.Errorf("IsSnapcraftDocument(%q) = %v, want %v", tt.uri, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"WARN", false},
		{" warning ", false},
		{"error", false},
		{"trace", true},
		{"", true},
	}
	for _, tt := range tests {
		if _, err := ParseLogLevel(tt.in); (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}
