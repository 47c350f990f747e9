// Package sanitize strips markup from user-supplied plain-text fields before
// they are stored. Names end up in e-mails and admin listings, so anything
// that looks like HTML is removed rather than escaped.
package sanitize

import (
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the shared strict policy: no elements, no attributes.
// Initialized once via sync.Once.
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

// Name returns s with all HTML removed, control characters dropped and
// whitespace runs collapsed to a single space.
func Name(s string) string {
	if s == "" {
		return ""
	}
	cleaned := getPolicy().Sanitize(s)

	// StrictPolicy escapes what it keeps; names are stored as plain text.
	cleaned = unescaper.Replace(cleaned)

	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

var unescaper = strings.NewReplacer(
	"&amp;", "&",
	"&#39;", "'",
	"&#34;", `"`,
	"&quot;", `"`,
)
