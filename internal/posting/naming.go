// internal/posting/naming.go
package posting

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/user/postclaw/internal/types"
)

// UnlabeledName is the final fallback when no label can be derived.
const UnlabeledName = "unlabeled"

// venueIdiom matches "<Name> <venue-type-suffix>" phrases in free text,
// e.g. "Blue Door Cafe" or "Golden Lion Pub".
var venueIdiom = regexp.MustCompile(
	`\b((?:[A-Z][A-Za-z'&-]*\s+){1,3})(Cafe|Café|Coffee|Restaurant|Bar|Bakery|Bistro|Diner|Pub|Grill|Tavern|Kitchen|Brewery|Pizzeria|Deli)\b`,
)

// stopWords are generic terms that do not identify a venue on their own.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"some": true, "my": true, "our": true, "their": true, "local": true,
	"new": true, "nice": true, "little": true, "small": true, "great": true,
}

// Extractor produces a label candidate from a session, or "" when it has
// nothing to offer.
type Extractor func(*types.Session) string

// extractors is the ranked fallback chain for label derivation.
var extractors = []Extractor{
	func(s *types.Session) string { return s.ResolvedLabel },
	func(s *types.Session) string { return s.RawLabel },
	extractVenueFromText,
	func(s *types.Session) string { return s.Category },
}

// DeriveLabel walks the extractor chain and returns the first non-empty
// candidate, falling back to UnlabeledName.
func DeriveLabel(sess *types.Session) string {
	for _, extract := range extractors {
		if label := strings.TrimSpace(extract(sess)); label != "" {
			return label
		}
	}
	return UnlabeledName
}

// extractVenueFromText scans the narrative and supplement for a venue idiom,
// discarding matches whose name part is nothing but stop words.
func extractVenueFromText(sess *types.Session) string {
	for _, text := range []string{sess.Narrative, sess.Supplement} {
		for _, m := range venueIdiom.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(m[1])
			if genericName(name) {
				continue
			}
			return name + " " + m[2]
		}
	}
	return ""
}

func genericName(name string) bool {
	for _, word := range strings.Fields(name) {
		if !stopWords[strings.ToLower(word)] {
			return false
		}
	}
	return true
}

// DateDigits converts a YYYY-MM-DD date to its 8-digit directory prefix.
func DateDigits(date string) string {
	return strings.ReplaceAll(date, "-", "")
}

// sanitizeLabel strips characters that are hostile in a directory name.
func sanitizeLabel(label string) string {
	label = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '\x00':
			return -1
		}
		return r
	}, label)
	return strings.TrimSpace(label)
}

// ResolveDirName returns a collision-free directory name under base for the
// given date and label. The candidate is "<date>(<label>)"; on collision the
// smallest unused numeric suffix is appended, deterministically: "_2", "_3",
// and so on.
func ResolveDirName(base, dateDigits, label string) (string, error) {
	label = sanitizeLabel(label)
	if label == "" {
		label = UnlabeledName
	}

	candidate := fmt.Sprintf("%s(%s)", dateDigits, label)
	name := candidate
	for n := 2; ; n++ {
		if _, err := os.Stat(filepath.Join(base, name)); err != nil {
			if os.IsNotExist(err) {
				return name, nil
			}
			return "", fmt.Errorf("stat candidate dir: %w", err)
		}
		name = fmt.Sprintf("%s_%d", candidate, n)
	}
}
