// Package pseudonymizer implements the Pseudonymizer processor: per-field
// regex-directed pseudonymization with a time-bounded dedup cache and a
// URL-aware substructure pathway.
package pseudonymizer

import (
	"crypto/rsa"
	"fmt"
	"regexp"
	"strings"
	"time"

	"logprep-go/internal/pseudonymizer/urlpath"
	"logprep-go/internal/processor"
	"logprep-go/internal/regexmap"
	"logprep-go/internal/rule"
)

const defaultPseudonymsTopic = "pseudonyms"

// fullMarkerRe matches a field value that is *exactly* one pseudonym
// marker and nothing else — the "fully replaced" condition that locks a
// field out of further rule application (SPEC_FULL.md §4.4).
var fullMarkerRe = regexp.MustCompile(`^<pseudonym:[0-9a-f]{64}>$`)

func wrapMarker(hash string) string { return "<pseudonym:" + hash + ">" }

// Config is the Pseudonymizer's static configuration, loaded at startup.
// Field names mirror SPEC_FULL.md §6's configuration schema.
type Config struct {
	PseudonymsTopic     string
	PubkeyAnalyst       string
	PubkeyDepseudo      string
	HashSalt            string
	SpecificRules       []string
	GenericRules        []string
	RegexMapping        string
	MaxCachedPseudonyms int
	MaxCachingDays      int
	// TLDListPath is accepted for configuration-schema compatibility
	// (SPEC_FULL.md §6) but unused: golang.org/x/net/publicsuffix ships its
	// own compiled public-suffix table rather than loading one at runtime.
	TLDListPath string

	// now is injectable for cache-window tests; nil means time.Now.
	now func() time.Time
}

// Pseudonymizer mutates matched string fields into pseudonym markers and
// emits Pseudonym Records for newly-seen cleartext. One instance owns one
// pair of rule trees and one cache; not shared across goroutines
// (SPEC_FULL.md §5).
type Pseudonymizer struct {
	processor.Base

	cfg     Config
	salt    []byte
	mapping *regexmap.Mapping

	specificTree *rule.Tree[*Rule]
	genericTree  *rule.Tree[*Rule]

	analystPub  *rsa.PublicKey
	depseudoPub *rsa.PublicKey

	cache *Cache

	// pendingErrors accumulates *processor.ProcessingError values raised
	// by the last Process call. Single-threaded use only (SPEC_FULL.md
	// §5), same as the rest of this type.
	pendingErrors []error

	// cacheHits/cacheMisses count Pseudonym Cache outcomes across the
	// last Process call, for the caller to fold into its own metrics.
	cacheHits   int
	cacheMisses int
}

// New constructs a Pseudonymizer. Setup must be called before Process.
func New(cfg Config) *Pseudonymizer {
	if cfg.PseudonymsTopic == "" {
		cfg.PseudonymsTopic = defaultPseudonymsTopic
	}
	return &Pseudonymizer{cfg: cfg}
}

// Setup loads the regex mapping, both rule trees, the two public keys, and
// initializes the Pseudonym Cache. Any failure here is fatal at startup
// (SPEC_FULL.md §7).
func (p *Pseudonymizer) Setup() error {
	mapping, err := regexmap.Load(p.cfg.RegexMapping)
	if err != nil {
		return err
	}
	p.mapping = mapping

	specificRules, err := LoadRulesFromDirectories(p.cfg.SpecificRules, mapping)
	if err != nil {
		return err
	}
	specificTree := rule.NewTree[*Rule]()
	for _, r := range specificRules {
		specificTree.Insert(r)
	}
	p.specificTree = specificTree

	genericRules, err := LoadRulesFromDirectories(p.cfg.GenericRules, mapping)
	if err != nil {
		return err
	}
	genericTree := rule.NewTree[*Rule]()
	for _, r := range genericRules {
		genericTree.Insert(r)
	}
	p.genericTree = genericTree

	analystPub, err := LoadPublicKey(p.cfg.PubkeyAnalyst)
	if err != nil {
		return err
	}
	p.analystPub = analystPub

	depseudoPub, err := LoadPublicKey(p.cfg.PubkeyDepseudo)
	if err != nil {
		return err
	}
	p.depseudoPub = depseudoPub

	p.salt = []byte(p.cfg.HashSalt)
	p.cache = NewCache(p.cfg.MaxCachedPseudonyms, time.Duration(p.cfg.MaxCachingDays)*24*time.Hour, p.cfg.now)
	return nil
}

// pseudoCtx threads the per-Process mutable state (the event being
// mutated, and the accumulating record list) through field processing
// without making every helper a Pseudonymizer method with a long
// parameter list.
type pseudoCtx struct {
	p       *Pseudonymizer
	e       processor.Event
	emitted *[]Record

	// field is the path of the rule field currently being processed, for
	// attributing a pendingErrors entry raised deeper in the pipeline.
	field string
}

// pseudonymizeValue is the shared hash → cache → (maybe emit) → wrap
// pipeline used by every pathway (plain field, URL sub-element).
// SPEC_FULL.md §4.4 "Hashing and encryption" / "Cache interaction".
func (c *pseudoCtx) pseudonymizeValue(raw string) string {
	if raw == "" {
		return raw
	}
	hash := Hash(c.p.salt, raw)
	fresh := c.p.cache.CheckAndInsert(hash)
	if fresh {
		c.p.cacheHits++
	} else {
		c.p.cacheMisses++
	}
	if !fresh {
		origin, err := EncryptOrigin(c.p.analystPub, c.p.depseudoPub, raw)
		if err == nil {
			rec := Record{Pseudonym: hash, Origin: origin}
			if ts, ok := c.e.GetString("@timestamp"); ok {
				rec.Timestamp = ts
			}
			*c.emitted = append(*c.emitted, rec)
		} else {
			// Encryption failure is a ProcessingError-class anomaly: the
			// substitution still proceeds (field is still pseudonymized),
			// but no record can be emitted for this occurrence.
			c.p.pendingErrors = append(c.p.pendingErrors, &processor.ProcessingError{Field: c.field, Cause: err})
		}
	}
	return wrapMarker(hash)
}

// processPlainField applies re to value per SPEC_FULL.md §4.4 steps 3-4:
// every match is replaced; for a capture-less regex the whole match is one
// pseudonym, for a regex with capture groups each group is pseudonymized
// independently and non-captured text inside the match is preserved
// verbatim. Grounded on the original implementation's observed behavior
// (partial whole-field matches, multi-group matches with gaps) rather than
// a coarser "replace entire field" reading.
func (c *pseudoCtx) processPlainField(value string, re *regexp.Regexp) string {
	matches := re.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return value
	}
	var b strings.Builder
	last := 0
	groups := re.NumSubexp()
	for _, idx := range matches {
		matchStart, matchEnd := idx[0], idx[1]
		b.WriteString(value[last:matchStart])
		if groups == 0 {
			b.WriteString(c.pseudonymizeValue(value[matchStart:matchEnd]))
		} else {
			pos := matchStart
			for g := 1; g <= groups; g++ {
				gs, ge := idx[2*g], idx[2*g+1]
				if gs < 0 {
					continue
				}
				b.WriteString(value[pos:gs])
				b.WriteString(c.pseudonymizeValue(value[gs:ge]))
				pos = ge
			}
			b.WriteString(value[pos:matchEnd])
		}
		last = matchEnd
	}
	b.WriteString(value[last:])
	return b.String()
}

var urlTokenRe = regexp.MustCompile(`\S+`)

// processURLField implements the URL Pathway (SPEC_FULL.md §4.5): scan
// whitespace-separated tokens, route URL-looking ones through parse +
// independent sub-element pseudonymization + rebuild, and run the rule's
// own regex over everything else.
func (c *pseudoCtx) processURLField(value string, re *regexp.Regexp) string {
	spans := urlTokenRe.FindAllStringIndex(value, -1)
	if len(spans) == 0 {
		return value
	}
	var b strings.Builder
	last := 0
	for _, span := range spans {
		start, end := span[0], span[1]
		b.WriteString(value[last:start])
		token := value[start:end]
		if urlpath.LooksLikeURL(token) {
			if parts, err := urlpath.Parse(token); err == nil {
				b.WriteString(c.rebuildURLToken(parts))
			} else {
				// Parse failure on a URL-looking token falls back to
				// whole-field (whole-token) pseudonymization.
				b.WriteString(c.pseudonymizeValue(token))
			}
		} else {
			b.WriteString(c.processPlainField(token, re))
		}
		last = end
	}
	b.WriteString(value[last:])
	return b.String()
}

func (c *pseudoCtx) rebuildURLToken(parts *urlpath.Parts) string {
	userinfoP := parts.Userinfo
	if parts.HasUserinfo {
		userinfoP = c.pseudonymizeValue(parts.Userinfo)
	}
	subdomainP := parts.Subdomain
	if parts.HasSubdomain {
		subdomainP = c.pseudonymizeValue(parts.Subdomain)
	}
	pathP := parts.Path
	if parts.HasPath {
		pathP = c.pseudonymizeValue(parts.Path)
	}
	var queryP []urlpath.QueryPair
	for _, qp := range parts.Query {
		queryP = append(queryP, urlpath.QueryPair{Key: qp.Key, Value: c.pseudonymizeValue(qp.Value)})
	}
	fragmentP := parts.Fragment
	if parts.HasFragment {
		fragmentP = c.pseudonymizeValue(parts.Fragment)
	}
	return urlpath.Rebuild(parts, userinfoP, subdomainP, pathP, queryP, fragmentP)
}

func (c *pseudoCtx) applyRule(r *Rule, locked map[string]bool) {
	for _, fp := range r.Fields() {
		if locked[fp.Path] {
			continue
		}
		val, present := c.e.GetString(fp.Path)
		if !present {
			continue
		}
		c.field = fp.Path
		var newVal string
		if r.IsURLField(fp.Path) {
			newVal = c.processURLField(val, fp.Regex)
		} else {
			newVal = c.processPlainField(val, fp.Regex)
		}
		if newVal != val {
			c.e.Set(fp.Path, newVal)
		}
		if fullMarkerRe.MatchString(newVal) {
			locked[fp.Path] = true
		}
	}
}

// Process implements SPEC_FULL.md §4.4: specific rules first, then
// generic, in each class's insertion order; a field fully replaced by an
// earlier rule is not revisited.
func (p *Pseudonymizer) Process(e processor.Event) (records []any, topic string, ok bool) {
	p.Base.Count()
	p.pendingErrors = nil
	p.cacheHits, p.cacheMisses = 0, 0

	locked := map[string]bool{}
	var emitted []Record
	ctx := &pseudoCtx{p: p, e: e, emitted: &emitted}

	for _, r := range p.specificTree.Match(e) {
		ctx.applyRule(r, locked)
	}
	for _, r := range p.genericTree.Match(e) {
		ctx.applyRule(r, locked)
	}

	if len(emitted) == 0 {
		return nil, "", false
	}
	out := make([]any, len(emitted))
	for i, rec := range emitted {
		out[i] = rec
	}
	return out, p.cfg.PseudonymsTopic, true
}

// Errors returns the *processor.ProcessingError values raised by the most
// recent Process call (e.g. an encryption failure that still allowed the
// field substitution to proceed but left a record unemitted). Callers
// drain this after each Process call to log and count the anomaly per
// SPEC_FULL.md §7's log-and-continue policy.
func (p *Pseudonymizer) Errors() []error {
	return p.pendingErrors
}

// CacheStats reports the Pseudonym Cache hit/miss counts from the most
// recent Process call, for the caller to fold into its own metrics.
func (p *Pseudonymizer) CacheStats() (hits, misses int) {
	return p.cacheHits, p.cacheMisses
}

// Describe returns a short human-readable processor description.
func (p *Pseudonymizer) Describe() string {
	specific, generic := 0, 0
	if p.specificTree != nil {
		specific = p.specificTree.Len()
	}
	if p.genericTree != nil {
		generic = p.genericTree.Len()
	}
	return fmt.Sprintf("pseudonymizer (specific_rules=%d, generic_rules=%d, topic=%s)", specific, generic, p.cfg.PseudonymsTopic)
}

// ShutDown releases held resources. Idempotent — the Pseudonymizer holds
// no resources that need explicit release beyond the in-memory cache,
// which needs no teardown.
func (p *Pseudonymizer) ShutDown() {}

var _ processor.Processor = (*Pseudonymizer)(nil)
