package clusterer

import "logprep-go/internal/signature"

// TestResult is one (actual, expected) pair produced by a rule self-test.
// A rule without declared tests contributes a nil slice under its key,
// the "rule has no tests" placeholder from the original implementation.
type TestResult struct {
	Actual   string
	Expected string
}

// TestRules runs every declared (raw, expected) self-test pair through
// ApplySignatureRule for its own rule, keyed by rule content key. This is
// the read-only self-test runner described in SPEC_FULL.md §7/§9,
// grounded on the original implementation's `test_rules`.
func TestRules(rules []*Rule) map[string][]TestResult {
	out := make(map[string][]TestResult, len(rules))
	for _, r := range rules {
		if len(r.tests) == 0 {
			out[r.Key()] = nil
			continue
		}
		results := make([]TestResult, 0, len(r.tests))
		for _, tc := range r.tests {
			actual := signature.ApplySignatureRule(r.sigRule, tc.Raw)
			results = append(results, TestResult{Actual: actual, Expected: tc.Expected})
		}
		out[r.Key()] = results
	}
	return out
}
