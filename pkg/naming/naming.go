package naming

import (
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxNameBytes = 255

var (
	reservedChars   = regexp.MustCompile(`[/?<>\\:*|"]`)
	controlChars    = regexp.MustCompile(`[\x{0000}-\x{001f}\x{0080}-\x{009f}]`)
	relativeName    = regexp.MustCompile(`^\.+$`)
	windowsReserved = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\..*)?$`)
	windowsTrailing = regexp.MustCompile(`[. ]+$`)
)

// Sanitize turns a client supplied filename into a display name that is
// safe to store and show: path separators, reserved and control characters
// are removed, relative and device names are dropped, and the result is
// capped at 255 bytes.
func Sanitize(name string) string {
	name = strings.ToValidUTF8(name, "")
	name = reservedChars.ReplaceAllString(name, "")
	name = controlChars.ReplaceAllString(name, "")
	name = relativeName.ReplaceAllString(name, "")
	name = windowsReserved.ReplaceAllString(name, "")
	name = windowsTrailing.ReplaceAllString(name, "")
	return truncate(name, maxNameBytes)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// MediaType guesses a media type from the extension of name using a
// bundled table. It returns the empty string when the extension is unknown.
func MediaType(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	return extensionTypes[strings.ToLower(ext)]
}

// Essence strips parameters such as charset from a media type.
func Essence(mediaType string) string {
	if mediaType == "" {
		return ""
	}
	essence, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	return essence
}
