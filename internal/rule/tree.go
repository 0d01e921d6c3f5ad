package rule

import (
	"fmt"

	"logprep-go/internal/filter"
	"logprep-go/internal/processor"
)

// Tree is an indexed collection of rules of a single processor type.
// Matching does not require evaluating every rule's filter against every
// event: rules whose filter reduces to a top-level conjunction of
// FieldEquals checks are indexed by (path, value); everything else
// (disjunctive or negated filters) falls back to always-considered linear
// scan. See SPEC_FULL.md §4.1.
type Tree[R Rule] struct {
	rules       []R
	byField     map[string]map[string][]int
	fallbackIdx []int
}

// NewTree returns an empty Tree.
func NewTree[R Rule]() *Tree[R] {
	return &Tree[R]{byField: map[string]map[string][]int{}}
}

// Insert adds a rule, preserving insertion order for subsequent Match
// calls.
func (t *Tree[R]) Insert(r R) {
	idx := len(t.rules)
	t.rules = append(t.rules, r)

	conjuncts, ok := filter.TopLevelEqualsConjuncts(r.Filter())
	if !ok || len(conjuncts) == 0 {
		t.fallbackIdx = append(t.fallbackIdx, idx)
		return
	}
	for path, value := range conjuncts {
		byValue, present := t.byField[path]
		if !present {
			byValue = map[string][]int{}
			t.byField[path] = byValue
		}
		byValue[value] = append(byValue[value], idx)
	}
}

// Len reports the number of rules held by the tree.
func (t *Tree[R]) Len() int { return len(t.rules) }

// Match returns the rules whose filter evaluates true against e, in
// insertion order. Deterministic for a fixed rule set and event.
func (t *Tree[R]) Match(e processor.Event) []R {
	candidates := make(map[int]struct{})
	for path, byValue := range t.byField {
		v, ok := e.Get(path)
		if !ok {
			continue
		}
		s := fmt.Sprint(v)
		for _, idx := range byValue[s] {
			candidates[idx] = struct{}{}
		}
	}
	for _, idx := range t.fallbackIdx {
		candidates[idx] = struct{}{}
	}

	out := make([]R, 0, len(candidates))
	for i, r := range t.rules {
		if _, ok := candidates[i]; !ok {
			continue
		}
		if r.Filter().Eval(e) {
			out = append(out, r)
		}
	}
	return out
}
