// snapcraftls/classifier.go
// The hover classifier: decides what documentation link (if any) a cursor
// position inside a snapcraft.yaml document resolves to.
package snapcraftls

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxStructureScanLines bounds the upward scan for an enclosing plugs/slots
// mapping. A section further above the cursor than this is treated as absent.
const maxStructureScanLines = 50

// Classify determines the documentation target for the token at pos inside
// doc. The classification order is fixed: key-position tokens resolve to a
// property link, except interface names, which resolve against the enclosing
// plugs/slots structure; value-position tokens are checked as plugin, then
// base, then interface, first match wins. Interface names only match when the
// position is nested under a plugs or slots mapping. Every failure mode
// (position outside the document, cursor not on a token, unknown value)
// resolves to KindNone.
//
// Classify is pure: identical inputs always yield identical results.
func Classify(doc string, pos Position, idx SchemaIndex) Classification {
	lines := splitLines(doc)
	if pos.Line < 0 || pos.Line >= len(lines) || pos.Character < 0 {
		return Classification{Kind: KindNone}
	}
	line := lines[pos.Line]
	if pos.Character > len(line) {
		return Classification{Kind: KindNone}
	}

	token, start, end := wordAt(line, pos.Character)
	if token == "" {
		return Classification{Kind: KindNone}
	}

	// Key vs. value: the first ':' on the line is the divider. No colon, or a
	// cursor strictly before it, means the token is a key occurrence.
	colon := strings.IndexByte(line, ':')
	if colon == -1 || pos.Character < colon {
		// Interface names appear in key position under a plugs/slots mapping
		// ("plugs:\n  network:"). They resolve to the interfaces index when
		// nested there, and to nothing at all otherwise; an interface-named
		// key outside plugs/slots must not be mislabeled as a property.
		if idx.IsInterface(token) {
			if isUnderPlugsOrSlots(lines, pos.Line) {
				return Classification{Kind: KindInterface, Name: token, URL: InterfacesIndexURL, StartCol: start, EndCol: end}
			}
			return Classification{Kind: KindNone}
		}
		return Classification{
			Kind:     KindKey,
			Name:     token,
			URL:      PropertyDocURL(token),
			StartCol: start,
			EndCol:   end,
		}
	}

	governingKey := strings.TrimSpace(line[:colon])

	switch {
	case governingKey == "plugin" && idx.IsPlugin(token):
		return Classification{Kind: KindPlugin, Name: token, URL: PluginDocURL(token), StartCol: start, EndCol: end}
	case (governingKey == "base" || governingKey == "build-base") && idx.IsBase(token):
		return Classification{Kind: KindBase, Name: token, URL: BaseDocURL(token), StartCol: start, EndCol: end}
	case idx.IsInterface(token) && isUnderPlugsOrSlots(lines, pos.Line):
		return Classification{Kind: KindInterface, Name: token, URL: InterfacesIndexURL, StartCol: start, EndCol: end}
	}
	return Classification{Kind: KindNone}
}

// isUnderPlugsOrSlots reports whether the given line is nested under a
// "plugs:" or "slots:" mapping key. It scans upward from the line (inclusive)
// for at most maxStructureScanLines lines; the nearest matching line wins, and
// nesting requires the cursor line to be indented strictly deeper than the
// matched line. This is an indentation heuristic, not a YAML parse: it is the
// documented behavior, including its misses on pathological documents.
func isUnderPlugsOrSlots(lines []string, line int) bool {
	if line < 0 || line >= len(lines) {
		return false
	}
	cursorIndent := indentWidth(lines[line])

	scanned := 0
	for i := line; i >= 0 && scanned < maxStructureScanLines; i-- {
		scanned++
		candidate := lines[i]
		trimmed := strings.TrimLeft(candidate, " \t")
		if strings.HasPrefix(trimmed, "plugs:") || strings.HasPrefix(trimmed, "slots:") {
			return cursorIndent > len(candidate)-len(trimmed)
		}
	}
	return false
}

// wordAt returns the maximal token containing byte column col on the line,
// along with its byte-offset range. Tokens are runs of letters, digits,
// underscores, and hyphens. A cursor sitting immediately after a token's last
// character still selects that token. Returns an empty token if the column
// touches no token.
func wordAt(line string, col int) (token string, start, end int) {
	i := 0
	for i < len(line) {
		r, size := utf8.DecodeRuneInString(line[i:])
		if !isWordRune(r) {
			i += size
			continue
		}
		runStart := i
		for i < len(line) {
			r, size = utf8.DecodeRuneInString(line[i:])
			if !isWordRune(r) {
				break
			}
			i += size
		}
		if runStart <= col && col <= i {
			return line[runStart:i], runStart, i
		}
		if runStart > col {
			break
		}
	}
	return "", 0, 0
}

func isWordRune(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// indentWidth returns the number of leading whitespace bytes on the line.
func indentWidth(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// splitLines splits document text on '\n', tolerating CRLF endings.
func splitLines(doc string) []string {
	lines := strings.Split(doc, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
