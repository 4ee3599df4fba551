package spec

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrOperationNotFound is returned when a path/verb pair is not declared.
var ErrOperationNotFound = errors.New("operation not found")

// FilterOption narrows the endpoints returned by Endpoints.
type FilterOption func(*filterConfig)

type filterConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	pathRes     []*regexp.Regexp
}

func tagSet(dst map[string]struct{}, tags []string) map[string]struct{} {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if dst == nil {
			dst = make(map[string]struct{}, len(tags))
		}
		dst[t] = struct{}{}
	}
	return dst
}

// WithIncludeTags keeps only endpoints that have at least one of the given tags.
func WithIncludeTags(tags []string) FilterOption {
	return func(c *filterConfig) { c.includeTags = tagSet(c.includeTags, tags) }
}

// WithExcludeTags removes endpoints that have any of the given tags.
func WithExcludeTags(tags []string) FilterOption {
	return func(c *filterConfig) { c.excludeTags = tagSet(c.excludeTags, tags) }
}

// WithMethods keeps only endpoints using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) FilterOption {
	return func(c *filterConfig) {
		for _, m := range methods {
			if c.methods == nil {
				c.methods = make(map[HttpMethod]struct{}, len(methods))
			}
			c.methods[m] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only endpoints whose path matches at least one of the
// given regular expressions. An invalid pattern matches nothing; callers that
// want a hard failure should compile patterns themselves first.
func WithPathPatterns(patterns []string) FilterOption {
	return func(c *filterConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

func (c *filterConfig) allowPath(p string) bool {
	if len(c.pathRes) == 0 {
		return true
	}
	for _, re := range c.pathRes {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

func (c *filterConfig) allowTags(tags []string) bool {
	if len(c.includeTags) > 0 {
		found := false
		for _, t := range tags {
			if _, ok := c.includeTags[t]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, t := range tags {
		if _, ok := c.excludeTags[t]; ok {
			return false
		}
	}
	return true
}

// Endpoints lists every operation under paths in declaration order.
func Endpoints(doc *Document, opts ...FilterOption) []Endpoint {
	cfg := &filterConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	paths := doc.Root().Get("paths")
	var out []Endpoint
	for _, p := range paths.Keys() {
		if !cfg.allowPath(p) {
			continue
		}
		item := paths.Get(p)
		for _, key := range item.Keys() {
			m, ok := ParseMethod(key)
			if !ok || key != string(m) {
				continue
			}
			if len(cfg.methods) > 0 {
				if _, ok := cfg.methods[m]; !ok {
					continue
				}
			}
			op := item.Get(key)
			var tags []string
			for _, t := range op.Get("tags").Strings() {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
			if !cfg.allowTags(tags) {
				continue
			}
			out = append(out, Endpoint{
				Path:        p,
				Method:      m,
				OperationID: strings.TrimSpace(op.Str("operationId")),
				Summary:     strings.TrimSpace(op.Str("summary")),
				Tags:        tags,
			})
		}
	}
	return out
}

// Operation returns the operation object declared at paths[path][verb].
func (d *Document) Operation(path, verb string) (Node, error) {
	op := d.Root().Get("paths").Get(path).Get(strings.ToLower(verb))
	if !op.IsMap() {
		return Node{}, fmt.Errorf("%w: %s %s", ErrOperationNotFound, strings.ToUpper(verb), path)
	}
	return op, nil
}

// Parameters returns the parameters that apply to an operation: path-level
// ones first, each replaced in place by an operation-level parameter with the
// same name and location, followed by the remaining operation-level ones.
// Parameter $refs are followed. A ref that cannot be resolved is reported and
// the remaining parameters are still returned.
func (d *Document) Parameters(path, verb string) ([]Node, error) {
	op, err := d.Operation(path, verb)
	if err != nil {
		return nil, err
	}
	var (
		out  []Node
		idx  = make(map[string]int)
		errs []error
	)
	add := func(raw Node) {
		p := raw
		if ref := raw.Str("$ref"); ref != "" {
			_, target, ferr := d.Follow(ref)
			if ferr != nil {
				errs = append(errs, ferr)
				return
			}
			p = target
		}
		key := paramKey(p.Str("in"), p.Str("name"))
		if i, ok := idx[key]; ok {
			out[i] = p
			return
		}
		idx[key] = len(out)
		out = append(out, p)
	}
	for _, p := range d.Root().Get("paths").Get(path).Get("parameters").Elems() {
		add(p)
	}
	for _, p := range op.Get("parameters").Elems() {
		add(p)
	}
	return out, errors.Join(errs...)
}

func paramKey(in, name string) string { return in + ":" + name }
