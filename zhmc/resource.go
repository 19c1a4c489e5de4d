package zhmc

import (
	"context"
	"fmt"
)

// Resource holds the properties of a single HMC resource as last retrieved
// from the HMC. A Resource is not safe for concurrent mutation.
type Resource struct {
	session    Session
	uri        string
	properties map[string]any
	full       bool
}

func newResource(session Session, properties map[string]any) (*Resource, error) {
	uri, _ := properties["object-uri"].(string)
	if uri == "" {
		if u, ok := properties["element-uri"].(string); ok {
			uri = u
		}
	}
	if uri == "" {
		return nil, &ParseError{Message: fmt.Sprintf("resource properties have no object-uri: %v", properties)}
	}
	return &Resource{session: session, uri: uri, properties: copyProperties(properties)}, nil
}

// URI returns the canonical resource URI.
func (r *Resource) URI() string { return r.uri }

// Name returns the "name" property, or "" if it is not known.
func (r *Resource) Name() string { return r.PropertyString("name") }

// Properties returns a copy of the locally known properties.
func (r *Resource) Properties() map[string]any { return copyProperties(r.properties) }

// Property returns a single locally known property.
func (r *Resource) Property(name string) (any, bool) {
	v, ok := r.properties[name]
	return v, ok
}

// PropertyString returns a property formatted as a string, "" if absent.
func (r *Resource) PropertyString(name string) string {
	v, ok := r.properties[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// FullPropertiesLoaded reports whether PullFullProperties has succeeded.
func (r *Resource) FullPropertiesLoaded() bool { return r.full }

// PullFullProperties retrieves the full set of properties from the HMC and
// replaces the locally known ones.
func (r *Resource) PullFullProperties(ctx context.Context) error {
	props, err := r.session.Get(ctx, r.uri)
	if err != nil {
		return err
	}
	if props == nil {
		return &ParseError{Message: fmt.Sprintf("GET %s returned no properties", r.uri)}
	}
	r.properties = copyProperties(props)
	if _, ok := r.properties["object-uri"]; !ok {
		r.properties["object-uri"] = r.uri
	}
	r.full = true
	return nil
}

func (r *Resource) update(props map[string]any) {
	for k, v := range props {
		r.properties[k] = v
	}
}

func (r *Resource) String() string {
	return fmt.Sprintf("%s (%s)", r.Name(), r.uri)
}

func copyProperties(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
