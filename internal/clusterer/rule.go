package clusterer

import (
	"encoding/json"

	"logprep-go/internal/filter"
	"logprep-go/internal/processor"
	"logprep-go/internal/regexmap"
	"logprep-go/internal/rule"
	"logprep-go/internal/signature"
)

// RuleTest is one (raw, expected) self-test pair declared in a rule file.
type RuleTest struct {
	Raw      string
	Expected string
}

// Rule is a Clusterer rule: a filter plus a single ordered signature
// rewrite step. SPEC_FULL.md §3 "Rule (Clusterer)".
type Rule struct {
	filterExpr filter.Expression
	sigRule    signature.Rule
	pattern    string
	tests      []RuleTest
}

func (r *Rule) Filter() filter.Expression { return r.filterExpr }

func (r *Rule) Key() string {
	return r.filterExpr.String() + "|" + r.pattern + "|" + r.sigRule.Repl
}

// SignatureRule returns the rewrite step this rule contributes to the
// Signature Engine's chain.
func (r *Rule) SignatureRule() signature.Rule { return r.sigRule }

var _ rule.Rule = (*Rule)(nil)

type ruleTestEntry struct {
	Raw    string `json:"raw"`
	Result string `json:"result"`
}

// LoadRulesFromDirectories loads and compiles Clusterer rules from each
// directory in order, within a directory by lexicographic file name then
// intra-file order (SPEC_FULL.md §3, §4.6).
func LoadRulesFromDirectories(dirs []string, mapping *regexmap.Mapping) ([]*Rule, error) {
	var out []*Rule
	for _, dir := range dirs {
		files, err := rule.ListRuleFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			raw, err := rule.DecodeRuleFile(file)
			if err != nil {
				return nil, err
			}
			for i, obj := range raw {
				if err := rule.CheckTopLevelKeys(file, i, obj, []string{"filter", "pattern", "repl"}, []string{"tests"}); err != nil {
					return nil, err
				}
				r, err := decodeClustererRule(file, i, obj, mapping)
				if err != nil {
					return nil, err
				}
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func decodeClustererRule(file string, index int, obj map[string]json.RawMessage, mapping *regexmap.Mapping) (*Rule, error) {
	var filterSrc, pattern, repl string
	if err := json.Unmarshal(obj["filter"], &filterSrc); err != nil {
		return nil, &processor.InvalidRuleDefinition{File: file, Index: index, Msg: "malformed filter: " + err.Error()}
	}
	if err := json.Unmarshal(obj["pattern"], &pattern); err != nil {
		return nil, &processor.InvalidRuleDefinition{File: file, Index: index, Msg: "malformed pattern: " + err.Error()}
	}
	if err := json.Unmarshal(obj["repl"], &repl); err != nil {
		return nil, &processor.InvalidRuleDefinition{File: file, Index: index, Msg: "malformed repl: " + err.Error()}
	}

	var testEntries []ruleTestEntry
	if raw, ok := obj["tests"]; ok {
		if err := json.Unmarshal(raw, &testEntries); err != nil {
			return nil, &processor.InvalidRuleDefinition{File: file, Index: index, Msg: "malformed tests: " + err.Error()}
		}
	}

	expr, err := filter.Parse(filterSrc)
	if err != nil {
		return nil, &processor.InvalidRuleDefinition{File: file, Index: index, Msg: "invalid filter: " + err.Error()}
	}

	re, _, err := mapping.Resolve(pattern)
	if err != nil {
		return nil, &processor.InvalidRuleDefinition{File: file, Index: index, Msg: "invalid pattern: " + err.Error()}
	}

	tests := make([]RuleTest, 0, len(testEntries))
	for _, te := range testEntries {
		tests = append(tests, RuleTest{Raw: te.Raw, Expected: te.Result})
	}

	return &Rule{
		filterExpr: expr,
		sigRule:    signature.Rule{Pattern: re, Repl: repl},
		pattern:    pattern,
		tests:      tests,
	}, nil
}
