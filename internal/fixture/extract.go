package fixture

import (
	"strings"

	"github.com/mark3labs/spec2tests/internal/spec"
)

// defaultBodyName names a request body that does not name itself.
const defaultBodyName = "requestBody"

// URLParams returns the path parameters of an operation in declaration order.
// Operation-level parameters override path-level ones. When a parameter $ref
// cannot be resolved the remaining parameters are returned with the error.
func (b *Builder) URLParams(path, verb string) ([]URLParam, error) {
	params, err := b.doc.Parameters(path, verb)
	var out []URLParam
	for _, p := range params {
		if p.Str("in") != "path" {
			continue
		}
		u := URLParam{Name: p.Str("name"), Required: p.Bool("required")}
		schema := p.Get("schema")
		if ref := schemaRef(schema); ref != "" {
			u.Ref = ref
			out = append(out, u)
			continue
		}
		u.Type = spec.SchemaType(schema)
		if u.Type == "" {
			u.Type = spec.SchemaType(p)
		}
		u.Unique = schema.Bool("uniqueItems") || p.Bool("uniqueItems")
		if ex, ok := example(p); ok {
			u.Example = &ex
		} else if ex, ok := example(schema); ok {
			u.Example = &ex
		}
		out = append(out, u)
	}
	return out, err
}

// requestBody returns the operation's request body, following a $ref to
// components.requestBodies.
func (b *Builder) requestBody(op spec.Node) (spec.Node, error) {
	rb := op.Get("requestBody")
	if ref := rb.Str("$ref"); ref != "" {
		_, target, err := b.doc.Follow(ref)
		return target, err
	}
	return rb, nil
}

// BodyParams returns the request body of an operation as descriptors. A body
// schema given as $ref yields a single *Ref. An inline schema yields a single
// leaf named by its name field, or requestBody.
func (b *Builder) BodyParams(path, verb string) ([]Param, error) {
	op, err := b.doc.Operation(path, verb)
	if err != nil {
		return nil, err
	}
	rb, err := b.requestBody(op)
	if err != nil {
		return nil, err
	}
	return bodyParams(rb), nil
}

func bodyParams(rb spec.Node) []Param {
	schema := jsonMedia(rb.Get("content")).Get("schema")
	if !schema.Exists() {
		return nil
	}
	if ref := schemaRef(schema); ref != "" {
		return []Param{&Ref{Ref: ref}}
	}
	name := strings.TrimSpace(schema.Str("name"))
	if name == "" {
		name = defaultBodyName
	}
	return []Param{paramFrom(name, schema)}
}

// Fields resolves ref and lists the values needed to construct it. For an
// object only required properties are listed unless includeAll is set, in
// property declaration order. A scalar or array target yields a single leaf:
// a scalar with a declared example is named after the type.
func (b *Builder) Fields(ref string, includeAll bool) ([]Param, error) {
	return b.session("", "").fields(ref, includeAll)
}

func (s *session) fields(ref string, includeAll bool) ([]Param, error) {
	final, n, err := s.b.doc.Follow(ref)
	if err != nil {
		return nil, err
	}
	switch typ := spec.SchemaType(n); typ {
	case "string", "integer", "number", "boolean":
		leaf := &Scalar{Type: typ}
		if ex, ok := example(n); ok {
			leaf.Name = lowerFirst(spec.RefName(final))
			leaf.Example = &ex
		}
		return []Param{leaf}, nil
	case "array":
		return []Param{&Array{Unique: n.Bool("uniqueItems"), Items: n.Get("items")}}, nil
	}

	props := n.Get("properties")
	keep := func(string) bool { return true }
	if !includeAll {
		required := make(map[string]bool)
		for _, name := range n.Get("required").Strings() {
			if !props.Has(name) {
				s.warn(ref, "required field %q is not declared in properties", name)
				continue
			}
			required[name] = true
		}
		keep = func(name string) bool { return required[name] }
	}

	var out []Param
	for _, name := range props.Keys() {
		if keep(name) {
			out = append(out, paramFrom(s.b.fieldName(name), props.Get(name)))
		}
	}
	return out, nil
}

// jsonMedia picks application/json from a content map, else the first media
// type mentioning json.
func jsonMedia(content spec.Node) spec.Node {
	if m := content.Get("application/json"); m.Exists() {
		return m
	}
	for _, k := range content.Keys() {
		if strings.Contains(strings.ToLower(k), "json") {
			return content.Get(k)
		}
	}
	return spec.Node{}
}
