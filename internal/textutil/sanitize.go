package textutil

import "strings"

var titleScrubber = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeTitle makes a release title safe for use as a directory name.
// Path separators and drive punctuation become dashes, the remaining
// reserved characters are dropped, and surrounding whitespace is trimmed.
func SanitizeTitle(title string) string {
	return strings.TrimSpace(titleScrubber.Replace(strings.TrimSpace(title)))
}
