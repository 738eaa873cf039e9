package transport

import (
	"strings"
	"unicode"
)

// FormatPairingCode splits a pairing code into dash-separated groups of four,
// e.g. "ABCD1234" becomes "ABCD-1234".
func FormatPairingCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range []rune(code) {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizePhone keeps only the digits of a phone number.
func SanitizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}
