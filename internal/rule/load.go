package rule

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"logprep-go/internal/processor"
)

// ListRuleFiles enumerates *.json files directly under dir in
// lexicographic order, per SPEC_FULL.md §4.6.
func ListRuleFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &processor.ConfigurationError{Msg: "cannot read rule directory " + dir, Cause: err}
	}
	var files []string
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		if filepath.Ext(ent.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, ent.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// DecodeRuleFile reads one rule file and decodes it as a JSON array of
// raw rule objects, preserving intra-file order. Each element is returned
// undecoded (json.RawMessage) so the caller can apply its own
// processor-specific schema and top-level-key validation.
func DecodeRuleFile(path string) ([]map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &processor.InvalidRuleFile{File: path, Cause: err}
	}
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &processor.InvalidRuleFile{File: path, Cause: err}
	}
	return raw, nil
}

// CheckTopLevelKeys enforces that a rule object's keys are exactly the
// required set plus a subset of the optional set — no missing required
// key, no unrecognized extra key. SPEC_FULL.md §4.6: "Missing or extra
// top-level keys ⇒ InvalidRuleDefinition."
func CheckTopLevelKeys(file string, index int, obj map[string]json.RawMessage, required, optional []string) error {
	allowed := make(map[string]bool, len(required)+len(optional))
	for _, k := range required {
		allowed[k] = true
	}
	for _, k := range optional {
		allowed[k] = true
	}
	for k := range obj {
		if !allowed[k] {
			return &processor.InvalidRuleDefinition{File: file, Index: index, Msg: "unknown top-level key " + k}
		}
	}
	for _, k := range required {
		if _, ok := obj[k]; !ok {
			return &processor.InvalidRuleDefinition{File: file, Index: index, Msg: "missing required top-level key " + k}
		}
	}
	return nil
}
