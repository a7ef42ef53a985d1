package release

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageNames converts track language tags ("en", "fra", "pt-BR") into
// English display names, dropping duplicates and tags that do not parse.
func LanguageNames(tags []string) []string {
	names := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		parsed, err := language.Parse(tag)
		if err != nil {
			continue
		}
		name := display.English.Languages().Name(parsed)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// HasLanguage reports whether any track tag resolves to the wanted base
// language ("en" matches "en", "en-US", "eng").
func HasLanguage(tags []string, want string) bool {
	wanted, err := language.Parse(strings.TrimSpace(want))
	if err != nil {
		return false
	}
	wantBase, _ := wanted.Base()
	for _, tag := range tags {
		parsed, err := language.Parse(strings.TrimSpace(tag))
		if err != nil {
			continue
		}
		base, _ := parsed.Base()
		if base == wantBase {
			return true
		}
	}
	return false
}
