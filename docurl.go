// snapcraftls/docurl.go
// Pure documentation URL builders for the Snapcraft reference site.
package snapcraftls

import "fmt"

// Documentation URL templates. These track the published Snapcraft docs
// layout; the schema sync tool scrapes the same pages.
const (
	// ReferenceBaseURL is the snapcraft.yaml project-file reference page.
	ReferenceBaseURL = "https://documentation.ubuntu.com/snapcraft/stable/reference/project-file/snapcraft-yaml/"
	// PluginsBaseURL is the plugins reference index.
	PluginsBaseURL = "https://documentation.ubuntu.com/snapcraft/stable/reference/plugins/"
	// BasesBaseURL is the bases reference page.
	BasesBaseURL = "https://documentation.ubuntu.com/snapcraft/stable/reference/bases/"
	// InterfacesIndexURL lists all supported interfaces. Interface docs are not
	// split per-interface, so every interface hover links here.
	InterfacesIndexURL = "https://snapcraft.io/docs/supported-interfaces"
)

// pluginURLAliases maps plugin names whose documentation path does not follow
// the "<name>-plugin/" convention. The docs site names the .NET plugin page
// "dotnet-plugin" while the schema accepts both spellings. Any future irregular
// plugin name gets an entry here; this is a lookup table, not a computed rule.
var pluginURLAliases = map[string]string{
	".net":   "dotnet",
	"dotnet": "dotnet",
}

// PropertyDocURL returns the reference-page anchor link for a snapcraft.yaml
// key. The key is appended verbatim; callers pass the raw token text.
func PropertyDocURL(key string) string {
	return ReferenceBaseURL + "#" + key
}

// PluginDocURL returns the documentation page for a plugin name.
func PluginDocURL(plugin string) string {
	if alias, ok := pluginURLAliases[plugin]; ok {
		plugin = alias
	}
	return PluginsBaseURL + plugin + "-plugin/"
}

// BaseDocURL returns the bases-page anchor link for a base name.
func BaseDocURL(base string) string {
	return BasesBaseURL + "#" + base
}

// CategoryDocURL resolves a documentation category name, as used by the
// open-documentation command, to its index page.
func CategoryDocURL(category string) (string, error) {
	switch category {
	case "reference":
		return ReferenceBaseURL, nil
	case "plugins":
		return PluginsBaseURL, nil
	case "bases":
		return BasesBaseURL, nil
	case "interfaces":
		return InterfacesIndexURL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
}
