// Package regexmap loads the regex-mapping file (keyword -> regex source)
// and resolves RE_* keyword references used by rule files at load time.
package regexmap

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"logprep-go/internal/processor"
)

// Mapping is a loaded, compiled regex mapping.
type Mapping struct {
	compiled map[string]*regexp.Regexp
	sources  map[string]string
}

// Load reads a YAML file of keyword -> regex-source pairs and compiles
// every entry eagerly, so a malformed mapping fails at startup rather
// than lazily during event processing.
func Load(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &processor.ConfigurationError{Msg: "cannot read regex mapping " + path, Cause: err}
	}
	var sources map[string]string
	if err := yaml.Unmarshal(data, &sources); err != nil {
		return nil, &processor.ConfigurationError{Msg: "malformed regex mapping " + path, Cause: err}
	}
	compiled := make(map[string]*regexp.Regexp, len(sources))
	for keyword, pattern := range sources {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &processor.ConfigurationError{Msg: "invalid regex for keyword " + keyword, Cause: err}
		}
		compiled[keyword] = re
	}
	return &Mapping{compiled: compiled, sources: sources}, nil
}

// Resolve turns a rule-declared pattern reference into a compiled regex.
// A reference is either a literal inline regex source, or an RE_*
// keyword that must be present in the mapping. Unresolved keyword
// references are a fatal InvalidRuleDefinition at rule-load time
// (SPEC_FULL.md §4.6), so the caller is expected to wrap this error with
// file/rule-index context.
func (m *Mapping) Resolve(ref string) (*regexp.Regexp, string, error) {
	if strings.HasPrefix(ref, "RE_") {
		re, ok := m.compiled[ref]
		if !ok {
			return nil, "", &processor.ConfigurationError{Msg: "unresolved regex keyword " + ref}
		}
		return re, m.sources[ref], nil
	}
	re, err := regexp.Compile(ref)
	if err != nil {
		return nil, "", &processor.ConfigurationError{Msg: "invalid inline regex " + ref, Cause: err}
	}
	return re, ref, nil
}
