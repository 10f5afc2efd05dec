package engine

import (
	"github.com/jwebster45206/branch-engine/pkg/textfilter"
)

// MaxNameLength is the longest player name in runes.
const MaxNameLength = 20

// NormalizeName prepares raw input for Start. It composes the text to NFC,
// collapses whitespace and caps the length. An empty result is ErrInvalidName.
func NormalizeName(raw string) (string, error) {
	name := textfilter.Truncate(textfilter.Normalize(raw), MaxNameLength)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}
