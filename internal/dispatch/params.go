package dispatch

import (
	"regexp"
	"strings"
)

// Param describes one declarative command parameter. Parameters compile
// into a single anchored regex; the argument text is matched with a
// leading space so every fragment can uniformly require `\s+`.
type Param struct {
	Name     string
	fragment string
}

// Const matches a fixed keyword, e.g. the "clear" in "leader clear".
func Const(word string) Param {
	return Param{fragment: `\s+` + regexp.QuoteMeta(word)}
}

// Any captures the rest of the arguments as one value.
func Any(name string) Param {
	return Param{Name: name, fragment: `\s+(?P<` + name + `>.+)`}
}

// Word captures a single whitespace-free token.
func Word(name string) Param {
	return Param{Name: name, fragment: `\s+(?P<` + name + `>\S+)`}
}

// Int captures a decimal integer.
func Int(name string) Param {
	return Param{Name: name, fragment: `\s+(?P<` + name + `>\d+)`}
}

// Options captures exactly one of the given keywords.
func Options(name string, opts ...string) Param {
	quoted := make([]string, len(opts))
	for i, o := range opts {
		quoted[i] = regexp.QuoteMeta(o)
	}
	return Param{Name: name, fragment: `\s+(?P<` + name + `>` + strings.Join(quoted, "|") + `)`}
}

// Optional makes a parameter matchable by absence.
func Optional(p Param) Param {
	p.fragment = "(?:" + p.fragment + ")?"
	return p
}

// compileParams builds the anchored matcher for a parameter list.
func compileParams(params []Param) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, p := range params {
		b.WriteString(p.fragment)
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// matchParams runs the regex against the space-prefixed argument text and
// extracts named captures. Empty argument text stays empty so no-parameter
// commands anchor against "".
func matchParams(re *regexp.Regexp, args string) (map[string]string, bool) {
	input := ""
	if args != "" {
		input = " " + args
	}
	m := re.FindStringSubmatch(input)
	if m == nil {
		return nil, false
	}
	out := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(m) {
			out[name] = m[i]
		}
	}
	return out, true
}
