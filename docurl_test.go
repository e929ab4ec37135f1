// snapcraftls/docurl_test.go
package snapcraftls

import (
	"errors"
	"testing"
)

func TestPropertyDocURL(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"name", ReferenceBaseURL + "#name"},
		{"build-base", ReferenceBaseURL + "#build-base"},
		{"grade", ReferenceBaseURL + "#grade"},
	}
	for _, tt := range tests {
		if got := PropertyDocURL(tt.key); got != tt.want {
			t.Errorf("PropertyDocURL(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestPluginDocURL(t *testing.T) {
	tests := []struct {
		plugin string
		want   string
	}{
		{"go", PluginsBaseURL + "go-plugin/"},
		{"python", PluginsBaseURL + "python-plugin/"},
		// The .NET plugin page is named dotnet-plugin for both spellings.
		{"dotnet", PluginsBaseURL + "dotnet-plugin/"},
		{".net", PluginsBaseURL + "dotnet-plugin/"},
	}
	for _, tt := range tests {
		if got := PluginDocURL(tt.plugin); got != tt.want {
			t.Errorf("PluginDocURL(%q) = %q, want %q", tt.plugin, got, tt.want)
		}
	}
}

func TestBaseDocURL(t *testing.T) {
	if got, want := BaseDocURL("core24"), BasesBaseURL+"#core24"; got != want {
		t.Errorf("BaseDocURL(core24) = %q, want %q", got, want)
	}
}

func TestCategoryDocURL(t *testing.T) {
	tests := []struct {
		category string
		want     string
		wantErr  bool
	}{
		{"reference", ReferenceBaseURL, false},
		{"plugins", PluginsBaseURL, false},
		{"bases", BasesBaseURL, false},
		{"interfaces", InterfacesIndexURL, false},
		{"bogus", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := CategoryDocURL(tt.category)
		if (err != nil) != tt.wantErr {
			t.Errorf("CategoryDocURL(%q) error = %v, wantErr %v", tt.category, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownCategory) {
			t.Errorf("CategoryDocURL(%q) error = %v, want ErrUnknownCategory", tt.category, err)
		}
		if got != tt.want {
			t.Errorf("CategoryDocURL(%q) = %q, want %q", tt.category, got, tt.want)
		}
	}
}
