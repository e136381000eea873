package importer

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// colons become dashes, the usual library convention for subtitles.
var colons = strings.NewReplacer(": ", " - ", ":", "-")

var multiDot = regexp.MustCompile(`\.{2,}`)

// SanitizeFilename makes a title safe to use as a single path element on
// common filesystems. Separators and reserved characters become spaces.
func SanitizeFilename(name string) string {
	name = colons.Replace(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == 0:
			return -1
		case unicode.IsControl(r), strings.ContainsRune(`<>"/\|?*`, r):
			return ' '
		}
		return r
	}, name)
	name = multiDot.ReplaceAllString(name, ".")
	name = strings.Join(strings.Fields(name), " ")
	return strings.Trim(name, " .")
}

// ValidatePath returns ErrPathTraversal unless path is root or lies beneath it.
func ValidatePath(path, root string) error {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrPathTraversal
	}
	return nil
}
