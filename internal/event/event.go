// Package event represents pipeline events as a tagged-value tree and
// provides dotted-path access into that tree.
//
// An Event wraps a decoded JSON document: interior nodes are
// map[string]any, leaves are string, float64, bool, or nil. Mutation is
// in place; key ordering is never observable.
package event

import (
	"encoding/json"
	"strings"
)

// Event is a mutable, nested key/value document.
type Event struct {
	root map[string]any
}

// New wraps an existing map as an Event. The map is used directly, not
// copied.
func New(root map[string]any) *Event {
	if root == nil {
		root = map[string]any{}
	}
	return &Event{root: root}
}

// Parse decodes a JSON document into an Event.
func Parse(raw []byte) (*Event, error) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	return New(root), nil
}

// Root returns the underlying map, for callers that need to serialize the
// whole event (e.g. the pipeline driver).
func (e *Event) Root() map[string]any {
	return e.root
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// Get returns the value at a dotted path and whether it was present.
func (e *Event) Get(path string) (any, bool) {
	return getPath(e.root, splitPath(path))
}

func getPath(node any, segs []string) (any, bool) {
	if len(segs) == 0 {
		return node, true
	}
	m, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}
	child, present := m[segs[0]]
	if !present {
		return nil, false
	}
	return getPath(child, segs[1:])
}

// GetString returns the value at a dotted path as a string. Returns
// ("", false) if the path is absent, null, or not a string.
func (e *Event) GetString(path string) (string, bool) {
	v, ok := e.Get(path)
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set writes a value at a dotted path, creating intermediate maps as
// needed. Returns false if an intermediate segment is already a non-map
// value (the path cannot be created).
func (e *Event) Set(path string, value any) bool {
	return setPath(e.root, splitPath(path), value)
}

func setPath(node map[string]any, segs []string, value any) bool {
	if len(segs) == 1 {
		node[segs[0]] = value
		return true
	}
	next, present := node[segs[0]]
	if !present {
		child := map[string]any{}
		node[segs[0]] = child
		return setPath(child, segs[1:], value)
	}
	child, ok := next.(map[string]any)
	if !ok {
		return false
	}
	return setPath(child, segs[1:], value)
}

// Has reports whether a dotted path is present, regardless of value
// (including present-but-null).
func (e *Event) Has(path string) bool {
	_, ok := getPathPresence(e.root, splitPath(path))
	return ok
}

func getPathPresence(node any, segs []string) (any, bool) {
	if len(segs) == 0 {
		return node, true
	}
	m, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}
	child, present := m[segs[0]]
	if !present {
		return nil, false
	}
	return getPathPresence(child, segs[1:])
}

// Tags returns the string items of event.tags (non-string items are
// skipped), or nil if tags is absent or not a list.
func (e *Event) Tags() []string {
	v, ok := e.Get("tags")
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// HasTag reports whether event.tags contains the given tag.
func (e *Event) HasTag(tag string) bool {
	for _, t := range e.Tags() {
		if t == tag {
			return true
		}
	}
	return false
}
