// Package patcher rewrites stored markup: it swaps one asset reference for
// another and applies find/replace correction lists.
package patcher

import (
	"html"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
)

// Strategy names the matching rule that produced a rewrite.
type Strategy string

const (
	StrategyNone     Strategy = ""
	StrategyExact    Strategy = "exact"
	StrategyEncoded  Strategy = "encoded"
	StrategyDecoded  Strategy = "decoded"
	StrategyPath     Strategy = "path"
	StrategyFilename Strategy = "filename"
	StrategyPosition Strategy = "position"
	StrategyGlobal   Strategy = "global"
)

// NoHint disables the positional strategy.
const NoHint = -1

// Swap is the result of ReplaceReference.
type Swap struct {
	Markup   string
	Strategy Strategy
	// Rewritten counts the references that were changed.
	Rewritten int
}

// Matched reports whether any strategy changed the markup.
func (s Swap) Matched() bool { return s.Strategy != StrategyNone }

var (
	attrRefPattern = regexp.MustCompile(`(?i)\b(?:src|href|poster|data-src|content)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	cssRefPattern  = regexp.MustCompile(`(?i)url\(\s*(?:"([^"]*)"|'([^']*)'|([^"')\s]+))\s*\)`)
	imgTagPattern  = regexp.MustCompile(`(?is)<img\b[^>]*>`)
	srcAttrPattern = regexp.MustCompile(`(?i)\ssrc\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s>]+))`)
)

type span struct {
	start, end int
	value      string
}

// ReplaceReference rewrites oldRef to newRef in markup. Strategies run in a
// fixed order and the first one that changes the markup wins; only that
// strategy's matches are rewritten. hint is the zero-based index of the <img>
// element to fall back to, or NoHint. When nothing matches the markup is
// returned unchanged with StrategyNone.
func ReplaceReference(markup, oldRef, newRef string, hint int) Swap {
	unchanged := Swap{Markup: markup}
	oldRef = strings.TrimSpace(oldRef)
	if oldRef == "" || oldRef == newRef {
		return unchanged
	}
	refs := references(markup)

	type rule struct {
		name  Strategy
		match func(value string) bool
	}
	encoded := encodedForms(oldRef)
	oldDecoded := decodeRef(oldRef)
	oldPath := stripQuery(oldRef)
	rules := []rule{
		{StrategyExact, func(v string) bool { return v == oldRef }},
		{StrategyEncoded, func(v string) bool {
			for _, e := range encoded {
				if v == e {
					return true
				}
			}
			return false
		}},
		{StrategyDecoded, func(v string) bool { return decodeRef(v) == oldDecoded }},
		{StrategyPath, func(v string) bool { return oldPath != "" && stripQuery(v) == oldPath }},
	}
	for _, r := range rules {
		if out, n := rewrite(markup, refs, r.match, newRef); n > 0 {
			return Swap{Markup: out, Strategy: r.name, Rewritten: n}
		}
	}

	if name := filename(oldRef); name != "" && filenameIsUnique(markup, refs, name) {
		out, n := rewrite(markup, refs, func(v string) bool { return filename(v) == name }, newRef)
		if n > 0 {
			return Swap{Markup: out, Strategy: StrategyFilename, Rewritten: n}
		}
	}

	if hint >= 0 {
		if out, ok := rewriteNthImage(markup, hint, newRef); ok {
			return Swap{Markup: out, Strategy: StrategyPosition, Rewritten: 1}
		}
	}

	if n := strings.Count(markup, oldRef); n > 0 {
		return Swap{Markup: strings.ReplaceAll(markup, oldRef, newRef), Strategy: StrategyGlobal, Rewritten: n}
	}
	return unchanged
}

// references returns the value spans of every reference-bearing attribute and
// CSS url() in document order.
func references(markup string) []span {
	var out []span
	collect := func(re *regexp.Regexp) {
		for _, m := range re.FindAllStringSubmatchIndex(markup, -1) {
			for g := 1; g < len(m)/2; g++ {
				if m[2*g] >= 0 {
					out = append(out, span{start: m[2*g], end: m[2*g+1], value: markup[m[2*g]:m[2*g+1]]})
					break
				}
			}
		}
	}
	collect(attrRefPattern)
	collect(cssRefPattern)
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func rewrite(markup string, refs []span, match func(string) bool, newRef string) (string, int) {
	var b strings.Builder
	last, n := 0, 0
	for _, r := range refs {
		if r.start < last || !match(r.value) || r.value == newRef {
			continue
		}
		b.WriteString(markup[last:r.start])
		b.WriteString(newRef)
		last = r.end
		n++
	}
	if n == 0 {
		return markup, 0
	}
	b.WriteString(markup[last:])
	return b.String(), n
}

func rewriteNthImage(markup string, index int, newRef string) (string, bool) {
	tags := imgTagPattern.FindAllStringIndex(markup, -1)
	if index >= len(tags) {
		return markup, false
	}
	tag := markup[tags[index][0]:tags[index][1]]
	m := srcAttrPattern.FindStringSubmatchIndex(tag)
	if m == nil {
		return markup, false
	}
	for g := 1; g < len(m)/2; g++ {
		if m[2*g] < 0 {
			continue
		}
		if tag[m[2*g]:m[2*g+1]] == newRef {
			return markup, false
		}
		start := tags[index][0] + m[2*g]
		end := tags[index][0] + m[2*g+1]
		return markup[:start] + newRef + markup[end:], true
	}
	return markup, false
}

// encodedForms lists the ways a raw reference may have been escaped when it
// was written into markup.
func encodedForms(ref string) []string {
	forms := []string{html.EscapeString(ref)}
	if u, err := url.Parse(ref); err == nil {
		forms = append(forms, u.String())
		segments := strings.Split(u.Path, "/")
		for i, s := range segments {
			segments[i] = url.PathEscape(s)
		}
		escaped := *u
		escaped.RawPath = strings.Join(segments, "/")
		forms = append(forms, escaped.String(), html.EscapeString(escaped.String()))
	}
	forms = append(forms, strings.ReplaceAll(ref, " ", "%20"))
	var out []string
	for _, f := range forms {
		if f != ref {
			out = append(out, f)
		}
	}
	return out
}

func decodeRef(ref string) string {
	ref = html.UnescapeString(strings.TrimSpace(ref))
	for i := 0; i < 2; i++ {
		decoded, err := url.PathUnescape(ref)
		if err != nil || decoded == ref {
			break
		}
		ref = decoded
	}
	return ref
}

func stripQuery(ref string) string {
	ref = decodeRef(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return ref
}

func filename(ref string) string {
	p := stripQuery(ref)
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// filenameIsUnique holds when exactly one reference in the document carries
// name as its last path segment and the name does not appear again in text.
func filenameIsUnique(markup string, refs []span, name string) bool {
	hits := 0
	for _, r := range refs {
		if filename(r.value) == name {
			hits++
		}
	}
	return hits == 1 && strings.Count(markup, name) <= 1
}
