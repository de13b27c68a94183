package rule

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseCheck builds a validator chain from a check tag. Entries are
// comma separated: required, simple, min=<n>, max=<n>, match=<a|b|c>,
// regexp=<pattern>, equals=<Column>. Patterns containing a comma cannot
// be declared in a tag; attach those through a RuleProvider instead.
func ParseCheck(tag string) ([]Validator, error) {
	var out []Validator
	for _, entry := range split(tag) {
		name, arg := cut(entry)
		switch name {
		case "required":
			out = append(out, Required())
		case "simple":
			out = append(out, SimpleString())
		case "min":
			n, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return nil, errors.Errorf("check tag: bad min %q", arg)
			}
			out = append(out, MinValue(n))
		case "max":
			n, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return nil, errors.Errorf("check tag: bad max %q", arg)
			}
			out = append(out, MaxValue(n))
		case "match":
			out = append(out, MatchString(strings.Split(arg, "|")...))
		case "regexp":
			out = append(out, Regex(arg))
		case "equals":
			out = append(out, Equals(arg))
		default:
			return nil, errors.Errorf("check tag: unknown rule %q", name)
		}
	}
	return out, nil
}

// ParseClean builds a cleaner chain from a clean tag. Entries:
// simplify, decimals=<n>.
func ParseClean(tag string) ([]Cleaner, error) {
	var out []Cleaner
	for _, entry := range split(tag) {
		name, arg := cut(entry)
		switch name {
		case "simplify":
			out = append(out, SimplifyString())
		case "decimals":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, errors.Errorf("clean tag: bad decimals %q", arg)
			}
			out = append(out, Decimals(n))
		default:
			return nil, errors.Errorf("clean tag: unknown rule %q", name)
		}
	}
	return out, nil
}

func split(tag string) []string {
	var out []string
	for _, s := range strings.Split(tag, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cut(entry string) (name, arg string) {
	if i := strings.Index(entry, "="); i >= 0 {
		return entry[:i], entry[i+1:]
	}
	return entry, ""
}
