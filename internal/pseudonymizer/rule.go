package pseudonymizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"logprep-go/internal/filter"
	"logprep-go/internal/processor"
	"logprep-go/internal/regexmap"
	"logprep-go/internal/rule"
)

// FieldPattern is one (dotted_path, regex) entry from a rule's
// "pseudonymize" map, in declaration order.
type FieldPattern struct {
	Path  string
	Regex *regexp.Regexp
}

// Rule is a Pseudonymizer rule: a Filter plus an ordered set of field
// patterns, with a subset of those paths routed through the URL pathway.
type Rule struct {
	file        string
	filterExpr  filter.Expression
	filterSrc   string
	fields      []FieldPattern
	urlFields   map[string]bool
	description string
}

var _ rule.Rule = (*Rule)(nil)

// Filter implements rule.Rule.
func (r *Rule) Filter() filter.Expression { return r.filterExpr }

// Key implements rule.Rule: content-based identity derived from the
// filter and the field patterns (with their url_fields membership).
func (r *Rule) Key() string {
	key := r.filterExpr.String()
	for _, fp := range r.fields {
		key += "|" + fp.Path + "=" + fp.Regex.String()
		if r.urlFields[fp.Path] {
			key += " (url)"
		}
	}
	return key
}

// Fields returns the rule's field patterns in declared order.
func (r *Rule) Fields() []FieldPattern { return r.fields }

// IsURLField reports whether dotted_path is in this rule's url_fields set.
func (r *Rule) IsURLField(path string) bool { return r.urlFields[path] }

// LoadRulesFromDirectories loads Pseudonymizer rules from dirs in the
// order given (callers pass specific dirs then generic dirs separately to
// preserve SPEC_FULL.md §4.4's specific-then-generic ordering), resolving
// RE_* keywords against mapping.
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
				if err := rule.CheckTopLevelKeys(file, i, obj,
					[]string{"filter", "pseudonymize"},
					[]string{"url_fields", "description"}); err != nil {
					return nil, err
				}
				r, err := decodePseudonymizerRule(file, i, obj, mapping)
				if err != nil {
					return nil, err
				}
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func decodePseudonymizerRule(file string, index int, obj map[string]json.RawMessage, mapping *regexmap.Mapping) (*Rule, error) {
	var filterSrc string
	if err := json.Unmarshal(obj["filter"], &filterSrc); err != nil {
		return nil, &processor.InvalidRuleDefinition{File: file, Index: index, Msg: "malformed filter: " + err.Error()}
	}
	expr, err := filter.Parse(filterSrc)
	if err != nil {
		return nil, &processor.InvalidRuleDefinition{File: file, Index: index, Msg: "invalid filter: " + err.Error()}
	}

	fieldOrder, fieldKeywords, err := orderedStringObject(obj["pseudonymize"])
	if err != nil {
		return nil, &processor.InvalidRuleDefinition{File: file, Index: index, Msg: "invalid pseudonymize: " + err.Error()}
	}

	fields := make([]FieldPattern, 0, len(fieldOrder))
	for _, path := range fieldOrder {
		re, _, err := mapping.Resolve(fieldKeywords[path])
		if err != nil {
			return nil, &processor.InvalidRuleDefinition{File: file, Index: index, Msg: fmt.Sprintf("field %q: %v", path, err)}
		}
		fields = append(fields, FieldPattern{Path: path, Regex: re})
	}

	var urlFieldList []string
	if raw, ok := obj["url_fields"]; ok {
		if err := json.Unmarshal(raw, &urlFieldList); err != nil {
			return nil, &processor.InvalidRuleDefinition{File: file, Index: index, Msg: "malformed url_fields: " + err.Error()}
		}
	}
	urlFields := make(map[string]bool, len(urlFieldList))
	for _, p := range urlFieldList {
		if _, ok := fieldKeywords[p]; !ok {
			return nil, &processor.InvalidRuleDefinition{File: file, Index: index, Msg: fmt.Sprintf("url_fields entry %q not in pseudonymize", p)}
		}
		urlFields[p] = true
	}

	var description string
	if raw, ok := obj["description"]; ok {
		_ = json.Unmarshal(raw, &description)
	}

	return &Rule{
		file:        file,
		filterExpr:  expr,
		filterSrc:   filterSrc,
		fields:      fields,
		urlFields:   urlFields,
		description: description,
	}, nil
}

// orderedStringObject decodes a JSON object of string->string entries,
// preserving source key order (encoding/json's map decoding does not).
func orderedStringObject(raw json.RawMessage) ([]string, map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("missing pseudonymize object")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected a JSON object")
	}

	var order []string
	values := map[string]string{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected string key")
		}
		var val string
		if err := dec.Decode(&val); err != nil {
			return nil, nil, fmt.Errorf("field %q: expected string value: %w", key, err)
		}
		order = append(order, key)
		values[key] = val
	}
	return order, values, nil
}
