package note

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ExtensionRule maps note titles matching TitleRegex to a file extension.
type ExtensionRule struct {
	TitleRegex string
	Extension  string
}

type compiledRule struct {
	pattern   *regexp.Regexp
	extension string
}

// Namer derives workspace filenames from note titles.
type Namer struct {
	rules []compiledRule
}

// keyGroup matches a parenthesized group; the last one in a filename is the key.
var keyGroup = regexp.MustCompile(`\((.*?)\)`)

// NewNamer compiles the extension rules. Rules are tried in order and the
// first matching title regex wins.
func NewNamer(rules []ExtensionRule) (*Namer, error) {
	n := &Namer{}

	for i, r := range rules {
		re, err := regexp.Compile(r.TitleRegex)
		if err != nil {
			return nil, fmt.Errorf("note: title_extension_map[%d]: %w", i, err)
		}

		n.rules = append(n.rules, compiledRule{pattern: re, extension: strings.TrimPrefix(r.Extension, ".")})
	}

	return n, nil
}

// Filename returns "<sanitized title> (<key>)<.ext>" for n.
func (nm *Namer) Filename(n *Note) string {
	title := n.Title()

	var ext string

	for _, r := range nm.rules {
		if r.pattern.MatchString(title) {
			ext = "." + r.extension
			break
		}
	}

	// Leading dots would make the buffer a hidden file, which the workspace
	// ignores.
	name := strings.TrimLeft(sanitize(title), ".")
	if strings.TrimSpace(name) == "" {
		name = untitled
	}

	return name + " (" + n.Key + ")" + ext
}

// sanitize keeps only filename-safe ASCII characters. Accented letters are
// decomposed first so "café" becomes "cafe" rather than "caf".
func sanitize(title string) string {
	var b strings.Builder

	for _, r := range norm.NFKD.String(title) {
		if isFilenameSafe(r) {
			b.WriteRune(r)
		}
	}

	return b.String()
}

func isFilenameSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case strings.ContainsRune("-_.() ", r):
		return true
	default:
		return false
	}
}

// KeyFromFilename extracts the key embedded in a derived filename: the
// contents of the last parenthesized group. Returns "" when there is none.
func KeyFromFilename(name string) string {
	groups := keyGroup.FindAllStringSubmatch(name, -1)
	if len(groups) == 0 {
		return ""
	}

	return groups[len(groups)-1][1]
}
