// Package sanitize strips markup from free text that reaches the console from
// outside, such as email subjects. Anything shaped like a tag is dropped, so it
// is not suitable for address fields.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text removes every HTML element from s and returns plain text with entities
// decoded and surrounding space trimmed. The result is not HTML-safe.
func Text(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<>&") {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(html.UnescapeString(getPolicy().Sanitize(s)))
}
