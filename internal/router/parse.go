package router

import (
	"strings"
	"unicode"

	"chatgate/pkg/models"
)

// Parse extracts a command from text that starts with prefix. The name is the
// first token after the prefix, lower-cased; the rest is the remainder. A bare
// prefix parses to an empty name.
func Parse(text, prefix string) (models.Command, bool) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return models.Command{}, false
	}

	body := strings.TrimSpace(text[len(prefix):])
	name, remainder := body, ""
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		name, remainder = body[:i], strings.TrimSpace(body[i:])
	}

	return models.Command{
		Name:          strings.ToLower(name),
		RawArgs:       strings.Fields(remainder),
		RemainderText: remainder,
	}, true
}
