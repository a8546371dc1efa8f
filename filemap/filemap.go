// Package filemap resolves CP/M guest filenames to host paths and decides
// whether a given file should be treated as TEXT or BINARY.
//
// Resolution order, per an ordered rule list built from `.cfg` entries, is:
// pattern list, then a secondary map of late-bound names (renames), then a
// lowercased listing of the current directory, then the name as-is.
package filemap

import (
	"os"
	"path/filepath"
	"strings"
)

// Mode selects how a resolved file's content is translated between host
// and guest.
type Mode int

const (
	// Auto infers TEXT/BINARY from the file extension.
	Auto Mode = iota
	// Text enables EOL translation and sticky ^Z-on-read.
	Text
	// Binary disables any translation.
	Binary
)

// textExtensions are the extensions AUTO mode treats as TEXT.
var textExtensions = map[string]bool{
	"TXT": true,
	"ASM": true,
	"MAC": true,
	"PAS": true,
	"C":   true,
	"H":   true,
	"DOC": true,
	"BAS": true,
	"SUB": true,
	"PRN": true,
}

// Rule is a single guest-pattern-to-host-path mapping, as read from a
// `.cfg` file: the pattern matches a guest name exactly or, when it ends
// in `*`, as a prefix; `?` and inner `*` are not wildcards.
type Rule struct {
	Pattern string
	Host    string
	Mode    Mode
}

// FileMap holds the ordered rule list, the secondary (rename) map, and the
// directory searched as a last resort.
type FileMap struct {
	rules     []Rule
	secondary map[string]string
	Dir       string
}

// New creates a file map rooted at dir (normally the current directory).
func New(dir string) *FileMap {
	return &FileMap{
		secondary: make(map[string]string),
		Dir:       dir,
	}
}

// AddRule appends a pattern → host-path mapping, in priority order.
func (fm *FileMap) AddRule(pattern, host string, mode Mode) {
	fm.rules = append(fm.rules, Rule{Pattern: Normalize(pattern), Host: host, Mode: mode})
}

// SetSecondary records a late-bound guest name → host path association,
// used after a rename.
func (fm *FileMap) SetSecondary(name, host string) {
	fm.secondary[Normalize(name)] = host
}

// Normalize uppercases a name and strips surrounding whitespace, the
// canonical guest-name projection used for comparisons everywhere in this
// package.
func Normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// matchPattern reports whether name (already normalized) satisfies pattern,
// which may end in a trailing "*" wildcard over the name portion.
func matchPattern(pattern, name string) bool {
	if pattern == name {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// Resolve maps a guest filename to a host path, the translation mode to
// use, and whether a candidate was found at all.
func (fm *FileMap) Resolve(name string) (host string, mode Mode, found bool) {
	norm := Normalize(name)

	for _, r := range fm.rules {
		if matchPattern(r.Pattern, norm) {
			return r.Host, modeFor(r.Mode, norm), true
		}
	}

	if h, ok := fm.secondary[norm]; ok {
		return h, modeFor(Auto, norm), true
	}

	if entries, err := os.ReadDir(fm.Dir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if Normalize(e.Name()) == norm {
				return filepath.Join(fm.Dir, e.Name()), modeFor(Auto, norm), true
			}
		}
	}

	return filepath.Join(fm.Dir, name), modeFor(Auto, norm), false
}

// modeFor resolves an AUTO mode selector against a normalized name's
// extension; non-AUTO selectors pass through unchanged.
func modeFor(m Mode, normalizedName string) Mode {
	if m != Auto {
		return m
	}
	ext := ""
	if i := strings.LastIndex(normalizedName, "."); i >= 0 {
		ext = normalizedName[i+1:]
	}
	if textExtensions[ext] {
		return Text
	}
	return Binary
}
