package download

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// illegal filename characters across the filesystems we save to
var illegalFilenameChars = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "", "?", "",
	"\"", "'", "<", "(", ">", ")", "|", "-",
)

// BuildFilename produces the deterministic filename for a resolved track.
// The same track, quality and conversion flag always yield the same name,
// so retries and conflict checks line up with earlier attempts.
func BuildFilename(track Track, quality Quality, convertFormat bool) string {
	base := fmt.Sprintf("%s - %s", sanitizeName(track.Artist), sanitizeName(track.Title))
	if base == " - " {
		base = sanitizeName(track.ID)
	}
	return fmt.Sprintf("%s [%s].%s", base, quality, extension(quality, convertFormat))
}

func extension(quality Quality, convertFormat bool) string {
	if convertFormat {
		return "mp3"
	}
	switch quality {
	case QualityLossless, QualityMax:
		return "flac"
	default:
		return "m4a"
	}
}

// sanitizeName folds accents to their base letters and strips characters
// that are unsafe in filenames.
func sanitizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	cleaned := illegalFilenameChars.Replace(folded)
	return strings.Join(strings.Fields(cleaned), " ")
}
