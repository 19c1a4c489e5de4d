package fakehmc

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// queryFilter maps a property name to the patterns it must match; one
// matching pattern per property is enough.
type queryFilter map[string][]*regexp.Regexp

// parseQuery parses the raw query of a list operation. Every item must have
// the form name=value; anything else is 400 reason 1.
func parseQuery(raw string) (queryFilter, error) {
	filter := queryFilter{}
	if raw == "" {
		return filter, nil
	}
	for _, item := range strings.Split(raw, "&") {
		if item == "" {
			continue
		}
		parts := strings.Split(item, "=")
		if len(parts) != 2 {
			return nil, badRequest(1, "Invalid format for URI query parameter: %q (valid format is: 'name=value').", item)
		}
		name, err := url.QueryUnescape(parts[0])
		if err != nil {
			return nil, badRequest(1, "Invalid URI query parameter name: %q", parts[0])
		}
		value, err := url.QueryUnescape(parts[1])
		if err != nil {
			return nil, badRequest(1, "Invalid URI query parameter value: %q", parts[1])
		}
		re, err := regexp.Compile("^(?:" + value + ")$")
		if err != nil {
			return nil, badRequest(1, "Invalid regular expression in URI query parameter %s: %v", name, err)
		}
		filter[name] = append(filter[name], re)
	}
	return filter, nil
}

// matches reports whether props satisfy every property of the filter.
func (f queryFilter) matches(props map[string]any) bool {
	for name, patterns := range f {
		v, ok := props[name]
		if !ok || v == nil {
			return false
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		matched := false
		for _, re := range patterns {
			if re.MatchString(s) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// shortProperties returns the properties reported by list operations.
func shortProperties(props map[string]any) map[string]any {
	out := map[string]any{}
	for _, k := range []string{"object-uri", "name", "status"} {
		if v, ok := props[k]; ok {
			out[k] = v
		}
	}
	return out
}
