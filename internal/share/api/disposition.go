package api

import (
	"mime"
	"strings"
)

// ContentDisposition builds an attachment header for name. Names outside
// ASCII get an underscored filename fallback plus the exact name as an
// RFC 5987 filename* value.
func ContentDisposition(name string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '_'
		}
		return r
	}, name)

	header := mime.FormatMediaType("attachment", map[string]string{"filename": fallback})
	if fallback != name {
		encoded := mime.FormatMediaType("attachment", map[string]string{"filename": name})
		header += strings.TrimPrefix(encoded, "attachment")
	}
	return header
}
