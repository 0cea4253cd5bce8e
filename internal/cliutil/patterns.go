// Package cliutil implements the CLI driver's table-pattern resolution
// (spec §4.H): comma-separated literal names and "*"-globs resolved
// against the union of declared-schema and live-database table names,
// following the anchored-regexp approach of the example pack's
// schema.containsRegexpString/FilterTables.
package cliutil

import (
	"regexp"
	"strings"
)

// ResolvePatterns expands patterns (each a literal name or a glob
// containing "*") against the universe of known names, returning every
// matching name in the order the input patterns were given. A literal
// name passes through even if it is absent from universe, so that
// "create this table" flows (where the name doesn't exist yet) still work.
func ResolvePatterns(patterns []string, universe []string) []string {
	var out []string
	seen := map[string]bool{}

	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "*") {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
			continue
		}
		re := globToRegexp(p)
		for _, name := range universe {
			if re.MatchString(name) && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

func globToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, part := range strings.Split(pattern, "*") {
		b.WriteString(regexp.QuoteMeta(part))
		b.WriteString(".*")
	}
	s := b.String()
	s = strings.TrimSuffix(s, ".*") + "$"
	return regexp.MustCompile(s)
}

// SplitCSV splits a comma-separated flag value into trimmed, non-empty
// elements.
func SplitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
