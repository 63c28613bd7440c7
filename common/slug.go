package common

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	ErrEmptySlug = errors.New("slug cannot be empty")
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify produces a URL-safe slug from input, falling back to fallback when
// input reduces to nothing. Run slugs are derived from source file names.
func Slugify(input, fallback string) (string, error) {
	slug := slugify(input)
	if slug == "" {
		slug = slugify(fallback)
	}
	if slug == "" {
		return "", ErrEmptySlug
	}
	return slug, nil
}

func slugify(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	slug := nonSlugChars.ReplaceAllString(lower, "-")
	return strings.Trim(slug, "-")
}

// TestFileName derives the conventional test file name for a source file:
// "handler.go" becomes "handler_test.go", "utils.py" becomes "utils_test.py".
// Files without an extension get a plain "_test" suffix.
func TestFileName(sourceName string) string {
	base := filepath.Base(sourceName)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = "generated"
	}
	return stem + "_test" + ext
}
