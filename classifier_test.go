// snapcraftls/classifier_test.go
package snapcraftls

import (
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

// testSchemaJSON is a trimmed schema carrying a handful of names from each set.
const testSchemaJSON = `{
	"properties": {
		"base": {"enum": ["bare", "core22", "core24"]},
		"slots": {"propertyNames": {"enum": ["network", "network-bind", "home", "gpio"]}}
	},
	"$defs": {
		"Part": {"properties": {"plugin": {"enum": ["go", "python", "dotnet", "nil"]}}}
	}
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIndex(t *testing.T) SchemaIndex {
	t.Helper()
	idx := LoadSchemaIndex([]byte(testSchemaJSON), testLogger())
	if interfaces, plugins, bases := idx.Counts(); interfaces == 0 || plugins == 0 || bases == 0 {
		t.Fatalf("test schema did not load: interfaces=%d plugins=%d bases=%d", interfaces, plugins, bases)
	}
	return idx
}

func TestClassify(t *testing.T) {
	idx := testIndex(t)

	partDoc := strings.Join([]string{
		"name: my-snap",          // 0
		"base: core24",           // 1
		"build-base: core22",     // 2
		"parts:",                 // 3
		"  my-part:",             // 4
		"    plugin: go",         // 5
		"    source: .",          // 6
		"    dotnet-thing: true", // 7
	}, "\n")

	plugsDoc := strings.Join([]string{
		"plugs:",                    // 0
		"  network:",                // 1
		"    interface: network",    // 2
		"slots:",                    // 3
		"  home:",                   // 4
		"apps:",                     // 5
		"  app:",                    // 6
		"    plugs:",                // 7
		"      - network-bind",      // 8
		"network: not-a-plug-entry", // 9
	}, "\n")

	tests := []struct {
		name string
		doc  string
		pos  Position
		want Classification
	}{
		{
			name: "key token links to reference anchor",
			doc:  partDoc,
			pos:  Position{Line: 0, Character: 2},
			want: Classification{Kind: KindKey, Name: "name", URL: ReferenceBaseURL + "#name", StartCol: 0, EndCol: 4},
		},
		{
			name: "nested key token links to reference anchor",
			doc:  partDoc,
			pos:  Position{Line: 6, Character: 5},
			want: Classification{Kind: KindKey, Name: "source", URL: ReferenceBaseURL + "#source", StartCol: 4, EndCol: 10},
		},
		{
			name: "plugin value resolves to plugin page",
			doc:  partDoc,
			pos:  Position{Line: 5, Character: 12},
			want: Classification{Kind: KindPlugin, Name: "go", URL: PluginsBaseURL + "go-plugin/", StartCol: 12, EndCol: 14},
		},
		{
			name: "cursor just past token end still selects it",
			doc:  partDoc,
			pos:  Position{Line: 5, Character: 14},
			want: Classification{Kind: KindPlugin, Name: "go", URL: PluginsBaseURL + "go-plugin/", StartCol: 12, EndCol: 14},
		},
		{
			name: "base value resolves to bases anchor",
			doc:  partDoc,
			pos:  Position{Line: 1, Character: 8},
			want: Classification{Kind: KindBase, Name: "core24", URL: BasesBaseURL + "#core24", StartCol: 6, EndCol: 12},
		},
		{
			name: "build-base value resolves to bases anchor",
			doc:  partDoc,
			pos:  Position{Line: 2, Character: 13},
			want: Classification{Kind: KindBase, Name: "core22", URL: BasesBaseURL + "#core22", StartCol: 12, EndCol: 18},
		},
		{
			name: "unknown plugin value yields nothing",
			doc:  "    plugin: bogus",
			pos:  Position{Line: 0, Character: 13},
			want: Classification{Kind: KindNone},
		},
		{
			name: "base name under unrelated key yields nothing",
			doc:  "    plugin: core24",
			pos:  Position{Line: 0, Character: 13},
			want: Classification{Kind: KindNone},
		},
		{
			name: "interface key nested under plugs",
			doc:  plugsDoc,
			pos:  Position{Line: 1, Character: 3},
			want: Classification{Kind: KindInterface, Name: "network", URL: InterfacesIndexURL, StartCol: 2, EndCol: 9},
		},
		{
			name: "interface key nested under slots",
			doc:  plugsDoc,
			pos:  Position{Line: 4, Character: 4},
			want: Classification{Kind: KindInterface, Name: "home", URL: InterfacesIndexURL, StartCol: 2, EndCol: 6},
		},
		{
			name: "interface list item under app plugs",
			doc:  plugsDoc,
			pos:  Position{Line: 8, Character: 10},
			want: Classification{Kind: KindInterface, Name: "network-bind", URL: InterfacesIndexURL, StartCol: 8, EndCol: 20},
		},
		{
			name: "interface value of nearest interface key",
			doc:  plugsDoc,
			pos:  Position{Line: 2, Character: 16},
			want: Classification{Kind: KindInterface, Name: "network", URL: InterfacesIndexURL, StartCol: 15, EndCol: 22},
		},
		{
			name: "interface-named key outside plugs or slots yields nothing",
			doc:  plugsDoc,
			pos:  Position{Line: 9, Character: 3},
			want: Classification{Kind: KindNone},
		},
		{
			name: "same indent as plugs is a sibling, not nested",
			doc:  "plugs:\nnetwork: x",
			pos:  Position{Line: 1, Character: 3},
			want: Classification{Kind: KindNone},
		},
		{
			name: "cursor on whitespace yields nothing",
			doc:  partDoc,
			pos:  Position{Line: 3, Character: 6},
			want: Classification{Kind: KindNone},
		},
		{
			name: "line past end of document yields nothing",
			doc:  partDoc,
			pos:  Position{Line: 99, Character: 0},
			want: Classification{Kind: KindNone},
		},
		{
			name: "character past end of line yields nothing",
			doc:  partDoc,
			pos:  Position{Line: 0, Character: 99},
			want: Classification{Kind: KindNone},
		},
		{
			name: "negative position yields nothing",
			doc:  partDoc,
			pos:  Position{Line: -1, Character: 0},
			want: Classification{Kind: KindNone},
		},
		{
			name: "crlf document still classifies",
			doc:  "base: core24\r\nplugs:\r\n  gpio:\r\n",
			pos:  Position{Line: 2, Character: 3},
			want: Classification{Kind: KindInterface, Name: "gpio", URL: InterfacesIndexURL, StartCol: 2, EndCol: 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.doc, tt.pos, idx)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Classify() = %+v, want %+v", got, tt.want)
			}
			// Classification must be stable for identical inputs.
			again := Classify(tt.doc, tt.pos, idx)
			if !reflect.DeepEqual(got, again) {
				t.Errorf("Classify() not deterministic: first %+v, second %+v", got, again)
			}
		})
	}
}

func TestClassifyScanBound(t *testing.T) {
	idx := testIndex(t)

	buildDoc := func(fillerLines int) (string, Position) {
		lines := []string{"plugs:"}
		for i := 0; i < fillerLines; i++ {
			lines = append(lines, "  # filler")
		}
		lines = append(lines, "  network:")
		return strings.Join(lines, "\n"), Position{Line: len(lines) - 1, Character: 3}
	}

	t.Run("section within scan range matches", func(t *testing.T) {
		doc, pos := buildDoc(40)
		got := Classify(doc, pos, idx)
		if got.Kind != KindInterface {
			t.Errorf("Classify() kind = %v, want %v", got.Kind, KindInterface)
		}
	})

	t.Run("section beyond scan range does not match", func(t *testing.T) {
		doc, pos := buildDoc(60)
		got := Classify(doc, pos, idx)
		if got.Kind != KindNone {
			t.Errorf("Classify() kind = %v, want %v", got.Kind, KindNone)
		}
	})
}

func TestWordAt(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		col       int
		wantToken string
		wantStart int
		wantEnd   int
	}{
		{"start of token", "plugin: go", 0, "plugin", 0, 6},
		{"inside token", "plugin: go", 3, "plugin", 0, 6},
		{"just past token end", "plugin: go", 6, "plugin", 0, 6},
		{"second token", "plugin: go", 8, "go", 8, 10},
		{"hyphenated token", "build-base: core22", 5, "build-base", 0, 10},
		{"underscore token", "my_key: v", 2, "my_key", 0, 6},
		{"on separator", "a:  b", 3, "", 0, 0},
		{"empty line", "", 0, "", 0, 0},
		{"dot splits tokens", "plugin: .net", 9, "net", 9, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, start, end := wordAt(tt.line, tt.col)
			if token != tt.wantToken || start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("wordAt(%q, %d) = (%q, %d, %d), want (%q, %d, %d)",
					tt.line, tt.col, token, start, end, tt.wantToken, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
