package zhmc

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// ListOptions controls a manager's List.
type ListOptions struct {
	// FullProperties pulls the full properties of every listed resource
	// instead of keeping the short set returned by the list operation.
	FullProperties bool

	// Filter maps property names to anchored regular expressions. Properties
	// the HMC can filter on are passed as query parameters; all filters are
	// also applied locally.
	Filter map[string]string
}

// baseManager implements listing and finding for one resource collection.
type baseManager struct {
	session Session

	// listURI is the collection URI, listKey the member of the list response
	// holding the items.
	listURI string
	listKey string

	// queryProps are the properties the HMC list operation filters on.
	queryProps []string
}

func (m *baseManager) list(ctx context.Context, opts ListOptions) ([]*Resource, error) {
	matchers, err := compileFilter(opts.Filter)
	if err != nil {
		return nil, err
	}

	res, err := m.session.Get(ctx, m.listURI+m.queryString(opts.Filter))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return []*Resource{}, nil
	}
	raw, ok := res[m.listKey]
	if !ok || raw == nil {
		return []*Resource{}, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &ParseError{Message: fmt.Sprintf("GET %s: %q is not a list", m.listURI, m.listKey)}
	}

	out := make([]*Resource, 0, len(items))
	for _, item := range items {
		props, ok := item.(map[string]any)
		if !ok {
			return nil, &ParseError{Message: fmt.Sprintf("GET %s: list item is not an object", m.listURI)}
		}
		r, err := newResource(m.session, props)
		if err != nil {
			return nil, err
		}
		if opts.FullProperties || !r.hasAll(opts.Filter) {
			if err := r.PullFullProperties(ctx); err != nil {
				return nil, err
			}
		}
		if matchFilter(r.properties, matchers) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *baseManager) find(ctx context.Context, filter map[string]string) (*Resource, error) {
	found, err := m.list(ctx, ListOptions{Filter: filter})
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, &NotFoundError{Filter: filter}
	case 1:
		return found[0], nil
	default:
		return nil, &NoUniqueMatchError{Filter: filter, Count: len(found)}
	}
}

// queryString renders the server-side subset of filter as "?a=x&b=y".
func (m *baseManager) queryString(filter map[string]string) string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		for _, q := range m.queryProps {
			if k == q {
				keys = append(keys, k)
				break
			}
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(filter[k]))
	}
	return "?" + strings.Join(parts, "&")
}

func (r *Resource) hasAll(filter map[string]string) bool {
	for k := range filter {
		if _, ok := r.properties[k]; !ok {
			return false
		}
	}
	return true
}

func compileFilter(filter map[string]string) (map[string]*regexp.Regexp, error) {
	out := make(map[string]*regexp.Regexp, len(filter))
	for k, v := range filter {
		re, err := regexp.Compile("^(?:" + v + ")$")
		if err != nil {
			return nil, fmt.Errorf("filter %s=%q: %w", k, v, err)
		}
		out[k] = re
	}
	return out, nil
}

func matchFilter(props map[string]any, matchers map[string]*regexp.Regexp) bool {
	for k, re := range matchers {
		v, ok := props[k]
		if !ok || v == nil {
			return false
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if !re.MatchString(s) {
			return false
		}
	}
	return true
}

// regexpLiteral quotes s so that a filter matches it literally.
func regexpLiteral(s string) string { return regexp.QuoteMeta(s) }
