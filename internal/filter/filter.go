// Package filter implements the Filter Expression: an immutable,
// side-effect-free predicate tree evaluated against an event, plus a
// parser for its Lucene-like surface syntax.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Getter is the narrow read surface a Filter Expression needs from an
// event, satisfied directly by *event.Event without either package
// importing the other.
type Getter interface {
	Get(path string) (any, bool)
}

// Expression is a node in the Filter Expression tree. All implementations
// are immutable and side-effect-free.
type Expression interface {
	Eval(e Getter) bool
	// String renders a canonical, order-preserving textual form, used as
	// part of a Rule's content key (see internal/rule).
	String() string
}

// And requires every child to evaluate true.
type And struct{ Children []Expression }

func (a *And) Eval(e Getter) bool {
	for _, c := range a.Children {
		if !c.Eval(e) {
			return false
		}
	}
	return true
}

func (a *And) String() string {
	parts := make([]string, len(a.Children))
	for i, c := range a.Children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// Or requires at least one child to evaluate true.
type Or struct{ Children []Expression }

func (o *Or) Eval(e Getter) bool {
	for _, c := range o.Children {
		if c.Eval(e) {
			return true
		}
	}
	return false
}

func (o *Or) String() string {
	parts := make([]string, len(o.Children))
	for i, c := range o.Children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// Not negates its child.
type Not struct{ Child Expression }

func (n *Not) Eval(e Getter) bool { return !n.Child.Eval(e) }
func (n *Not) String() string     { return "NOT " + n.Child.String() }

// FieldEquals matches when the dotted path's string value equals Value.
// Non-string leaves are compared via their string form (matching the
// Lucene-like surface syntax, which only carries string literals).
type FieldEquals struct {
	Path  string
	Value string
}

func (f *FieldEquals) Eval(e Getter) bool {
	v, ok := e.Get(f.Path)
	if !ok {
		return false
	}
	return fmt.Sprint(v) == f.Value
}

func (f *FieldEquals) String() string { return fmt.Sprintf("%s: %s", f.Path, f.Value) }

// FieldMatches matches when the dotted path's string value matches Regex.
type FieldMatches struct {
	Path    string
	Regex   *regexp.Regexp
	Pattern string // source, kept for String()/content-key rendering
}

func (f *FieldMatches) Eval(e Getter) bool {
	v, ok := e.Get(f.Path)
	if !ok {
		return false
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	return f.Regex.MatchString(s)
}

func (f *FieldMatches) String() string { return fmt.Sprintf("%s: /%s/", f.Path, f.Pattern) }

// TopLevelEqualsConjuncts returns the FieldEquals nodes that are
// unconditionally required for expr to hold — i.e. expr is exactly an And
// of such nodes, or a single such node. Used by the Rule Tree (internal/rule)
// to index rules without full linear evaluation. Returns ok=false when expr
// is disjunctive, negated, or otherwise not reducible to a pure top-level
// conjunction of equals-checks.
func TopLevelEqualsConjuncts(expr Expression) (map[string]string, bool) {
	switch n := expr.(type) {
	case *FieldEquals:
		return map[string]string{n.Path: n.Value}, true
	case *And:
		out := map[string]string{}
		for _, c := range n.Children {
			m, ok := TopLevelEqualsConjuncts(c)
			if !ok {
				return nil, false
			}
			for k, v := range m {
				out[k] = v
			}
		}
		return out, true
	default:
		return nil, false
	}
}
