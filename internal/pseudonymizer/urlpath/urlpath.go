// Package urlpath implements the URL Decomposer: splitting a URL into
// structurally-preserved parts (scheme, registrable domain, TLD, port,
// structural separators) and independently-pseudonymizable parts
// (userinfo, subdomain, path, query values, fragment).
package urlpath

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// QueryPair is one ordered query-string key/value pair. Order is
// preserved so rebuilt URLs are stable.
type QueryPair struct {
	Key   string
	Value string
}

// Parts is the decomposed form of a URL. Optional parts carry a Has* flag
// next to their value rather than relying on Go zero values, since an
// empty string is a legitimate value for some parts (e.g. an empty
// fragment after "#").
type Parts struct {
	Scheme            string
	HasScheme         bool
	Userinfo          string
	HasUserinfo       bool
	Subdomain         string
	HasSubdomain      bool
	RegistrableDomain string
	Port              string
	HasPort           bool
	// HasSlash records whether the source URL carried a "/" after the
	// host[:port] at all, independent of whether any content followed it
	// — "https://h" has neither, "https://h/" has HasSlash but no Path
	// content, "https://h/x" has both.
	HasSlash bool
	Path     string
	HasPath  bool
	Query    []QueryPair
	Fragment string
	HasFragment bool
}

// Parse decomposes rawURL into Parts. Scheme is optional: a schemeless
// input is accepted only when its host starts with "www." or has a
// recognized public suffix, to avoid misparsing arbitrary text as a URL
// (SPEC_FULL.md §9).
func Parse(rawURL string) (*Parts, error) {
	candidate := rawURL
	hadScheme := strings.Contains(rawURL, "://")
	if !hadScheme {
		candidate = "//" + rawURL
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, &url.Error{Op: "parse", URL: rawURL, Err: errNoHost}
	}

	host := u.Hostname()
	asciiHost, err := idna.Lookup.ToASCII(host)
	if err != nil {
		asciiHost = host
	}
	registrable, suffixErr := publicsuffix.EffectiveTLDPlusOne(asciiHost)
	if suffixErr != nil {
		// Not a recognized public-suffix domain (e.g. "localhost"): treat
		// the whole host as the registrable domain with no subdomain.
		registrable = host
	}

	if !hadScheme {
		// Design-note ambiguity resolution (SPEC_FULL.md §9): without a
		// scheme, require a leading "www." or a recognized public-suffix
		// label to call this a URL at all; otherwise it's plain text.
		if !strings.HasPrefix(host, "www.") && suffixErr != nil {
			return nil, &url.Error{Op: "parse", URL: rawURL, Err: errNoHost}
		}
	}

	parts := &Parts{RegistrableDomain: registrable}
	if hadScheme {
		parts.Scheme = u.Scheme
		parts.HasScheme = true
	}
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			parts.Userinfo = u.User.Username() + ":" + pw
		} else {
			parts.Userinfo = u.User.Username()
		}
		parts.HasUserinfo = true
	}
	if sub := strings.TrimSuffix(host, registrable); sub != "" {
		parts.Subdomain = strings.TrimSuffix(sub, ".")
		parts.HasSubdomain = true
	}
	if port := u.Port(); port != "" {
		parts.Port = port
		parts.HasPort = true
	}
	if rawPath := u.EscapedPath(); rawPath != "" {
		parts.HasSlash = true
		if p := strings.TrimPrefix(rawPath, "/"); p != "" {
			parts.Path = p
			parts.HasPath = true
		}
	}
	if rawQuery := u.RawQuery; rawQuery != "" {
		// url.Values has no stable order; recover source order by
		// scanning rawQuery directly instead of decoding into a map.
		parts.Query = orderedQueryPairs(rawQuery)
	}
	if u.Fragment != "" || strings.Contains(candidate, "#") {
		parts.Fragment = u.Fragment
		parts.HasFragment = true
	}

	return parts, nil
}

func orderedQueryPairs(rawQuery string) []QueryPair {
	segments := strings.Split(rawQuery, "&")
	out := make([]QueryPair, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		k, v, _ := strings.Cut(seg, "=")
		kd, err1 := url.QueryUnescape(k)
		vd, err2 := url.QueryUnescape(v)
		if err1 != nil {
			kd = k
		}
		if err2 != nil {
			vd = v
		}
		out = append(out, QueryPair{Key: kd, Value: vd})
	}
	return out
}

var errNoHost = errNoHostErr{}

type errNoHostErr struct{}

func (errNoHostErr) Error() string { return "url has no host" }

// LooksLikeURL reports whether s is likely to contain a URL: it carries a
// "://" scheme separator, or its host portion (with or without scheme)
// starts with "www." per SPEC_FULL.md §4.5/§9.
func LooksLikeURL(s string) bool {
	if strings.Contains(s, "://") {
		return true
	}
	if strings.HasPrefix(s, "www.") {
		return true
	}
	_, host, hasUserinfo := strings.Cut(s, "@")
	return hasUserinfo && strings.HasPrefix(host, "www.")
}

// Rebuild reassembles Parts into a URL string, substituting the given
// pseudonymized sub-element strings in place of the cleartext ones.
// Structural separators and the registrable domain/port/scheme are
// emitted verbatim.
func Rebuild(p *Parts, userinfoP, subdomainP, pathP string, queryP []QueryPair, fragmentP string) string {
	var b strings.Builder
	if p.HasScheme {
		b.WriteString(p.Scheme)
		b.WriteString("://")
	}
	if p.HasUserinfo {
		b.WriteString(userinfoP)
		b.WriteString("@")
	}
	if p.HasSubdomain {
		b.WriteString(subdomainP)
		b.WriteString(".")
	}
	b.WriteString(p.RegistrableDomain)
	if p.HasPort {
		b.WriteString(":")
		b.WriteString(p.Port)
	}
	if p.HasSlash {
		b.WriteString("/")
		b.WriteString(pathP)
	}
	if len(queryP) > 0 {
		b.WriteString("?")
		for i, qp := range queryP {
			if i > 0 {
				b.WriteString("&")
			}
			b.WriteString(qp.Key)
			b.WriteString("=")
			b.WriteString(qp.Value)
		}
	}
	if p.HasFragment {
		b.WriteString("#")
		b.WriteString(fragmentP)
	}
	return b.String()
}
