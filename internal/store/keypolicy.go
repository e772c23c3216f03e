package store

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// AttrExternalID is the attribute holding the stable external identifier
// (student number, badge id) used for enrollment merging.
const AttrExternalID = "external_id"

// KeyPolicy derives the merge key Enroll uses to decide whether a new
// enrollment belongs to an existing identity or creates a new record.
type KeyPolicy func(displayName string, attrs map[string]string) string

// ExternalIDKey keys on the external_id attribute. Identities without an
// external id fall back to the normalized display name.
func ExternalIDKey(displayName string, attrs map[string]string) string {
	if id := strings.TrimSpace(attrs[AttrExternalID]); id != "" {
		return "ext:" + id
	}
	return DisplayNameKey(displayName, attrs)
}

// DisplayNameKey keys on the normalized display name only. Legacy mode:
// two people sharing a name merge into one record, so prefer
// ExternalIDKey wherever a stable identifier exists.
func DisplayNameKey(displayName string, _ map[string]string) string {
	return "name:" + NormalizeDisplayName(displayName)
}

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeDisplayName normalizes a name for comparison (lowercase, no
// diacritics, collapsed whitespace, spaces for dashes).
func NormalizeDisplayName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}
