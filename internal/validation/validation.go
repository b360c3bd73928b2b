package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/kjstillabower/disaster-alert/internal/cache"
)

// Bounds applied to location names, in runes.
const (
	MinLocationLen = 2
	MaxLocationLen = 64
)

var (
	ErrLocationEmpty        = errors.New("location is required")
	ErrLocationLength       = errors.New("location length out of range")
	ErrLocationInvalidChars = errors.New("location contains invalid characters")
)

// ValidateLocation trims a city name and checks it can be substituted into the source URL and used
// as a cache key. Letters (any script), marks, digits, spaces, hyphens, apostrophes and dots are
// allowed, e.g. "Balneário Camboriú" or "Herval d'Oeste". Returns the trimmed name.
func ValidateLocation(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrLocationEmpty
	}
	if n := len([]rune(s)); n < MinLocationLen || n > MaxLocationLen {
		return "", fmt.Errorf("%w: %d characters, want %d-%d", ErrLocationLength, n, MinLocationLen, MaxLocationLen)
	}
	for _, c := range s {
		if !isAllowedLocationRune(c) {
			return "", fmt.Errorf("%w: %q", ErrLocationInvalidChars, c)
		}
	}
	return s, nil
}

// ValidateLocations validates every entry of a configured list and rejects entries that map to the
// same cache key ("Porto Belo", "porto-belo"), since they would share one cache entry.
func ValidateLocations(locations []string) ([]string, error) {
	out := make([]string, 0, len(locations))
	seen := make(map[string]string, len(locations))
	for _, loc := range locations {
		v, err := ValidateLocation(loc)
		if err != nil {
			return nil, fmt.Errorf("location %q: %w", loc, err)
		}
		key := cache.Key(v)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("location %q duplicates %q", loc, prev)
		}
		seen[key] = v
		out = append(out, v)
	}
	return out, nil
}

func isAllowedLocationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '\'', '.':
		return true
	}
	return false
}
