package utils

import (
	"strings"
	"unicode"
)

// Slugify 转为 URL 安全的小写短横线形式，"Math-U-See" + "Demme" -> "math-u-see-demme"
func Slugify(parts ...string) string {
	var b strings.Builder
	dash := false
	for _, p := range parts {
		for _, r := range strings.ToLower(p) {
			switch {
			case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
				b.WriteRune(r)
				dash = false
			case r == '&':
				if b.Len() > 0 && !dash {
					b.WriteByte('-')
				}
				b.WriteString("and")
				dash = false
			default:
				if b.Len() > 0 && !dash {
					b.WriteByte('-')
					dash = true
				}
			}
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
