package filter

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// defaultLocale is the language tag backing the shared default Intl
// collator. Undetermined/root collation gives a reasonable
// locale-neutral default ordering; a container wanting a specific
// locale constructs its own comparator via NewCollator and threads it
// through a custom ObjectFilter evaluation rather than mutating shared
// package state.
var defaultLocale = language.Und

// NewCollator returns a comparator function usable in place of the
// package's default Intl collator, for callers that need a specific
// locale rather than the shared default.
func NewCollator(locale language.Tag) func(a, b string) int {
	c := collate.New(locale)
	return c.CompareString
}
