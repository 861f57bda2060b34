// Package processor implements the compiled form of a pull rule: a
// named-capture regular expression plus a destination tag.
package processor

import (
	"regexp"
	"strconv"
	"time"

	"github.com/cloudflare/ahocorasick"
	"github.com/dlclark/regexp2"
)

// matchTimeout bounds how long a single Apply call may spend in the regex
// engine, so an operator-supplied pathological pattern cannot hang a
// transform-worker goroutine forever.
const matchTimeout = 5 * time.Second

// Processor is the compiled form of a PullRule. The zero value has no
// regex and no destination, and Apply on it always returns nothing.
type Processor struct {
	re    *regexp2.Regexp
	names []string

	prefilter *ahocorasick.Matcher
	literals  []string

	dst string
}

// New returns an empty Processor with neither a regex nor a destination.
func New() *Processor {
	return &Processor{}
}

// SetRegex compiles pattern and enumerates its named capture groups. It
// reports true iff compilation succeeded and the pattern has at least one
// named group; on false the processor must be discarded by the caller.
func (p *Processor) SetRegex(pattern string) bool {
	re, err := regexp2.Compile(pattern, regexp2.RE2|regexp2.Multiline)
	if err != nil {
		re, err = regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			return false
		}
	}
	re.MatchTimeout = matchTimeout

	names := namedGroups(re)
	if len(names) == 0 {
		return false
	}

	p.re = re
	p.names = names
	p.literals = requiredLiterals(pattern)
	if len(p.literals) > 0 {
		p.prefilter = ahocorasick.NewStringMatcher(p.literals)
	} else {
		p.prefilter = nil
	}
	return true
}

// SetDestination records the tag under which transformed output is
// republished.
func (p *Processor) SetDestination(dst string) {
	p.dst = dst
}

// Destination returns the processor's destination tag, which may be
// empty.
func (p *Processor) Destination() string {
	return p.dst
}

// Apply runs the processor's regex against line and returns a map of the
// named groups that participated in the match, keyed by group name, with
// string values. It returns nil, false if line is empty, no regex is set,
// or the regex does not match.
func (p *Processor) Apply(line string) (map[string]string, bool) {
	if line == "" || p.re == nil {
		return nil, false
	}

	if p.prefilter != nil && len(p.prefilter.Match([]byte(line))) == 0 {
		return nil, false
	}

	match, err := p.re.FindStringMatch(line)
	if err != nil || match == nil {
		return nil, false
	}

	result := make(map[string]string)
	for _, name := range p.names {
		group := match.GroupByName(name)
		if group == nil || len(group.Captures) == 0 {
			continue
		}
		result[name] = group.String()
	}
	return result, true
}

// namedGroups returns the non-numeric, non-empty group names of re, in
// the order regexp2 reports them.
func namedGroups(re *regexp2.Regexp) []string {
	var names []string
	for _, name := range re.GetGroupNames() {
		if name == "" {
			continue
		}
		if _, err := strconv.Atoi(name); err == nil {
			continue
		}
		names = append(names, name)
	}
	return names
}

// literalRunRegexp finds maximal runs of plain word characters in a
// pattern that requiredLiterals has already cleaned of escapes, group
// headers, and character classes.
var literalRunRegexp = regexp.MustCompile(`[A-Za-z0-9_]{3,}`)

// escapeRegexp matches an escape sequence, so the letter of e.g. `\b` or
// `\d` is never glued onto a neighbouring run and mistaken for input text.
var escapeRegexp = regexp.MustCompile(`\\(k<[^>]*>|x[0-9A-Fa-f]{2}|u[0-9A-Fa-f]{4}|.)`)

// optionalConstructRegexp matches alternation, optional or counted
// quantifiers, and any remaining "(?" construct (inline flags,
// lookaround), any of which can make a run's presence non-mandatory.
var optionalConstructRegexp = regexp.MustCompile(`[|?*{]`)

// namedGroupHeaderRegexp matches a named-capture-group opening, e.g.
// "(?P<level>" or "(?<level>", so the group's name itself is never
// mistaken for a literal the input text must contain.
var namedGroupHeaderRegexp = regexp.MustCompile(`\(\?P?<[^>]+>`)

// characterClassRegexp matches a character class body, so its contents
// are never mistaken for a mandatory literal run.
var characterClassRegexp = regexp.MustCompile(`\[[^\]]*\]`)

// requiredLiterals extracts candidate literal substrings from pattern for
// use as an Aho-Corasick prefilter: runs of plain word characters that are
// not plausibly part of a regex construct. This is a best-effort
// extraction, not a parser — patterns with no qualifying run (e.g. `.*`)
// yield no literals and the prefilter is skipped entirely. Escapes,
// named-group headers and character classes are stripped first so an
// escape letter, a capture group's name or a class's members are never
// treated as literals the input must contain. A pattern that still
// contains alternation, a `?`, `*` or `{` construct yields no literals,
// since any of its runs may be optional.
func requiredLiterals(pattern string) []string {
	stripped := escapeRegexp.ReplaceAllString(pattern, " ")
	stripped = namedGroupHeaderRegexp.ReplaceAllString(stripped, "(")
	stripped = characterClassRegexp.ReplaceAllString(stripped, "")
	if optionalConstructRegexp.MatchString(stripped) {
		return nil
	}
	return literalRunRegexp.FindAllString(stripped, -1)
}
