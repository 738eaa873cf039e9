package normalize

import "strings"

// NormalizeID reduces a device-scoped identity "user_agent:device@server" to
// "user@server". Identities without a numeric device part are only trimmed.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)

	at := strings.IndexByte(id, '@')
	if at < 0 {
		return id
	}
	user, server := id[:at], id[at+1:]

	colon := strings.IndexByte(user, ':')
	if colon < 0 || !isDigits(user[colon+1:]) {
		return id
	}
	user = user[:colon]
	if underscore := strings.IndexByte(user, '_'); underscore >= 0 {
		user = user[:underscore]
	}

	return user + "@" + server
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
