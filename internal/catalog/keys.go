package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"seasonbot/internal/services"
)

// KeyPrefix namespaces season keys so they cannot collide with other
// start payloads or callback data.
const KeyPrefix = "season_"

// Telegram caps both callback data and start payloads at 64 bytes. The
// longest callback built from a key is "admin_view_<key>".
const (
	maxCallbackData = 64
	longestPrefix   = "admin_view_"
	MaxKeyLength    = maxCallbackData - len(longestPrefix)
)

// Normalize derives the season key and display title from an admin-supplied
// name. Whitespace runs become underscores, diacritics are folded for the
// key, and the title keeps the original letters with underscores shown as
// spaces.
func Normalize(name string) (key, title string, err error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return "", "", services.Wrap(services.ErrValidation, "catalog", "normalize", "season name is required", nil)
	}
	slug := strings.Join(strings.Fields(name), "_")
	title = strings.ReplaceAll(slug, "_", " ")

	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, slug)
	if err != nil {
		return "", "", services.Wrap(services.ErrValidation, "catalog", "normalize", "fold season name", err)
	}
	for _, r := range folded {
		if !isKeyRune(r) {
			return "", "", services.Wrap(services.ErrValidation, "catalog", "normalize",
				fmt.Sprintf("season name may only use latin letters, digits, spaces, '-' and '_' (got %q)", r), nil)
		}
	}

	key = KeyPrefix + folded
	if len(key) > MaxKeyLength {
		return "", "", services.Wrap(services.ErrValidation, "catalog", "normalize",
			fmt.Sprintf("season name too long (%d bytes, max %d)", len(folded), MaxKeyLength-len(KeyPrefix)), nil)
	}
	return key, title, nil
}

// IsSeasonKey reports whether value looks like a key produced by Normalize.
func IsSeasonKey(value string) bool {
	rest, ok := strings.CutPrefix(value, KeyPrefix)
	if !ok || rest == "" || len(value) > MaxKeyLength {
		return false
	}
	for _, r := range rest {
		if !isKeyRune(r) {
			return false
		}
	}
	return true
}

// KeyFromInput accepts either a full key or the name it was derived from.
func KeyFromInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if IsSeasonKey(input) {
		return input, nil
	}
	key, _, err := Normalize(input)
	return key, err
}

// DeepLink is the start link that delivers a season directly.
func DeepLink(botUsername, key string) string {
	return "https://t.me/" + strings.TrimPrefix(botUsername, "@") + "?start=" + key
}

// ChannelURL returns the public link for a channel handle. Numeric ids have
// no public link.
func ChannelURL(channelID string) (string, bool) {
	handle, ok := strings.CutPrefix(strings.TrimSpace(channelID), "@")
	if !ok || handle == "" {
		return "", false
	}
	return "https://t.me/" + handle, true
}

func isKeyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	default:
		return false
	}
}
