package finder

import (
	"fmt"
	"regexp"
	"strings"
)

// Globs is a compiled list of shell-style patterns. Unlike path.Match,
// "*" also matches "/".
type Globs []*regexp.Regexp

// CompileGlobs compiles patterns into Globs.
func CompileGlobs(patterns []string) (Globs, error) {
	var globs Globs
	for _, p := range patterns {
		re, err := regexp.Compile(translateGlob(p))
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", p, err)
		}
		globs = append(globs, re)
	}
	return globs, nil
}

// Match reports whether s matches any pattern. An empty list matches
// everything.
func (g Globs) Match(s string) bool {
	if len(g) == 0 {
		return true
	}
	for _, re := range g {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// MatchGlob reports whether name matches the shell-style pattern.
func MatchGlob(pattern, name string) (bool, error) {
	re, err := regexp.Compile(translateGlob(pattern))
	if err != nil {
		return false, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return re.MatchString(name), nil
}

func translateGlob(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			j := i + 1
			if j < len(pattern) && pattern[j] == '!' {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				b.WriteString(`\[`)
				continue
			}
			class := strings.ReplaceAll(pattern[i+1:j], `\`, `\\`)
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			} else if strings.HasPrefix(class, "^") {
				class = `\` + class
			}
			b.WriteString("[" + class + "]")
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return b.String()
}
