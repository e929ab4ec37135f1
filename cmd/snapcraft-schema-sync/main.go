// Command snapcraft-schema-sync refreshes the name enums in the bundled
// snapcraft.json schema from the published documentation pages. It rewrites
// only the enum arrays the language server reads (plugin names, base names,
// interface names) and leaves the rest of the schema untouched.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	snapcraftls "github.com/nooreldeensalah/snapcraft-ls"
)

// Sanity thresholds: each documentation page is expected to list at least this
// many names. Falling below one means the page layout changed and the scrape
// is garbage; the tool fails rather than gutting the schema.
const (
	minPlugins    = 15
	minBases      = 5
	minInterfaces = 150
)

var (
	// Plugin doc pages are linked as ".../<name>-plugin/" (historically
	// "<name>_plugin"); the capture is the plugin name.
	pluginLinkRe = regexp.MustCompile(`(?:^|/)([a-z0-9_.-]+)[-_]plugin/?$`)
	// Base names as they appear in the bases page tables.
	baseNameRe = regexp.MustCompile(`^(core\d*|bare|devel)$`)
	// Interface names as they appear in the supported-interfaces table.
	interfaceNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)
)

func main() {
	schemaPath := flag.String("schema", "schemas/snapcraft.json", "Path to the schema file to update")
	outPath := flag.String("o", "", "Output path (defaults to the input schema path)")
	timeout := flag.Duration("timeout", 30*time.Second, "HTTP timeout per documentation page")
	logLevelFlag := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logLevel, parseErr := snapcraftls.ParseLogLevel(*logLevelFlag)
	if parseErr != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if *outPath == "" {
		*outPath = *schemaPath
	}

	client := &http.Client{Timeout: *timeout}

	plugins, err := scrapePlugins(client, snapcraftls.PluginsBaseURL)
	if err != nil {
		logger.Error("Failed to scrape plugin names", "url", snapcraftls.PluginsBaseURL, "error", err)
		os.Exit(1)
	}
	if len(plugins) < minPlugins {
		logger.Error("Too few plugin names scraped, refusing to update schema", "count", len(plugins), "minimum", minPlugins)
		os.Exit(1)
	}

	bases, err := scrapeBases(client, snapcraftls.BasesBaseURL)
	if err != nil {
		logger.Error("Failed to scrape base names", "url", snapcraftls.BasesBaseURL, "error", err)
		os.Exit(1)
	}
	if len(bases) < minBases {
		logger.Error("Too few base names scraped, refusing to update schema", "count", len(bases), "minimum", minBases)
		os.Exit(1)
	}

	interfaces, err := scrapeInterfaces(client, snapcraftls.InterfacesIndexURL)
	if err != nil {
		logger.Error("Failed to scrape interface names", "url", snapcraftls.InterfacesIndexURL, "error", err)
		os.Exit(1)
	}
	if len(interfaces) < minInterfaces {
		logger.Error("Too few interface names scraped, refusing to update schema", "count", len(interfaces), "minimum", minInterfaces)
		os.Exit(1)
	}

	logger.Info("Scraped documentation pages",
		"plugins", len(plugins), "bases", len(bases), "interfaces", len(interfaces))

	original, err := os.ReadFile(*schemaPath)
	if err != nil {
		logger.Error("Failed to read schema file", "path", *schemaPath, "error", err)
		os.Exit(1)
	}

	updated, err := rewriteSchema(original, plugins, bases, interfaces)
	if err != nil {
		logger.Error("Failed to rewrite schema", "error", err)
		os.Exit(1)
	}

	if bytes.Equal(bytes.TrimSpace(original), bytes.TrimSpace(updated)) && *outPath == *schemaPath {
		logger.Info("Schema already up to date, nothing written", "path", *schemaPath)
		return
	}
	if err := os.WriteFile(*outPath, updated, 0644); err != nil {
		logger.Error("Failed to write schema file", "path", *outPath, "error", err)
		os.Exit(1)
	}
	logger.Info("Schema updated", "path", *outPath)
}

// fetchDocument GETs the URL and parses the response body as HTML.
func fetchDocument(client *http.Client, url string) (*html.Node, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s failed: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetching %s returned status %d", url, resp.StatusCode)
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s failed: %w", url, err)
	}
	return doc, nil
}

// scrapePlugins extracts plugin names from the hrefs of the plugins index.
// Doc slugs historically used underscores where plugin names use hyphens, so
// underscores are normalized.
func scrapePlugins(client *http.Client, url string) ([]string, error) {
	doc, err := fetchDocument(client, url)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "a" {
			return
		}
		for _, attr := range n.Attr {
			if attr.Key != "href" {
				continue
			}
			href := strings.TrimSuffix(attr.Val, "/")
			if m := pluginLinkRe.FindStringSubmatch(href); m != nil {
				seen[strings.ReplaceAll(m[1], "_", "-")] = struct{}{}
			}
		}
	})
	return sortedKeys(seen), nil
}

// scrapeBases extracts base names from the table cells of the bases page.
func scrapeBases(client *http.Client, url string) ([]string, error) {
	doc, err := fetchDocument(client, url)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || (n.Data != "td" && n.Data != "th") {
			return
		}
		text := strings.TrimSpace(nodeText(n))
		if baseNameRe.MatchString(text) {
			seen[text] = struct{}{}
		}
	})
	return sortedKeys(seen), nil
}

// scrapeInterfaces extracts interface names from the first column of the
// supported-interfaces tables. The first cell of each row holds the name,
// usually wrapped in a link or code element.
func scrapeInterfaces(client *http.Client, url string) ([]string, error) {
	doc, err := fetchDocument(client, url)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "tr" {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || c.Data != "td" {
				continue
			}
			text := strings.TrimSpace(nodeText(c))
			if interfaceNameRe.MatchString(text) {
				seen[text] = struct{}{}
			}
			break // First data cell only.
		}
	})
	return sortedKeys(seen), nil
}

// rewriteSchema replaces the enum arrays the language server reads, leaving
// every other field of the schema document intact:
//
//	properties.base.enum                        -> bases
//	properties.build-base.enum                  -> bases plus "devel"
//	properties.plugs.propertyNames.enum         -> interfaces
//	properties.slots.propertyNames.enum         -> interfaces
//	$defs.Part.properties.plugin.enum           -> plugins
func rewriteSchema(data []byte, plugins, bases, interfaces []string) ([]byte, error) {
	var schema map[string]any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber() // Preserve numeric literals verbatim.
	if err := decoder.Decode(&schema); err != nil {
		return nil, fmt.Errorf("parsing schema JSON failed: %w", err)
	}

	buildBases := bases
	if !contains(bases, "devel") {
		buildBases = append(append([]string{}, bases...), "devel")
		sort.Strings(buildBases)
	}

	if err := setEnum(schema, bases, "properties", "base"); err != nil {
		return nil, err
	}
	if err := setEnum(schema, buildBases, "properties", "build-base"); err != nil {
		return nil, err
	}
	if err := setEnum(schema, plugins, "$defs", "Part", "properties", "plugin"); err != nil {
		return nil, err
	}
	for _, direction := range []string{"plugs", "slots"} {
		if err := setEnum(schema, interfaces, "properties", direction, "propertyNames"); err != nil {
			return nil, err
		}
	}

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling schema JSON failed: %w", err)
	}
	return append(out, '\n'), nil
}

// setEnum walks the nested object path and replaces its "enum" array.
func setEnum(schema map[string]any, values []string, path ...string) error {
	node := schema
	for _, key := range path {
		child, ok := node[key].(map[string]any)
		if !ok {
			return fmt.Errorf("schema path %s is missing or not an object at %q", strings.Join(path, "."), key)
		}
		node = child
	}
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	node["enum"] = enum
	return nil
}

// walk applies fn to every node of the parsed document, depth first.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// nodeText concatenates the text content beneath a node.
func nodeText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
