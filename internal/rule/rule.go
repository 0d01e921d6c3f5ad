// Package rule implements the substrate shared by the Clusterer and
// Pseudonymizer rule types: a common Rule interface, an indexed Rule
// Tree, and directory-based rule-file enumeration/validation.
package rule

import "logprep-go/internal/filter"

// Rule is the minimal contract every processor-specific rule type
// satisfies. Equality/hash-by-content (as in the original Python
// implementation's __eq__/__hash__) is expressed here as a canonical
// content key instead, the idiomatic Go substitute for a hash/eq pair.
type Rule interface {
	Filter() filter.Expression
	// Key returns a canonical, content-derived string: two rules with the
	// same filter and the same action configuration produce the same key.
	Key() string
}
