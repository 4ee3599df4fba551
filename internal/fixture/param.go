package fixture

import "github.com/mark3labs/spec2tests/internal/spec"

// Param describes one input value of an endpoint call. It is exactly one of
// *Scalar, *Array or *Ref, so a parameter is either a typed leaf or a
// reference to another schema and never both.
type Param interface {
	ParamName() string
	isParam()
}

// Scalar is a leaf with a primitive type. Type may be "object" for an inline
// object schema or empty when the schema declares none.
type Scalar struct {
	Name    string
	Type    string
	Example *string
}

// Array is an array leaf. Unique marks uniqueItems, rendered as a set.
type Array struct {
	Name   string
	Unique bool
	Items  spec.Node
}

// Ref points at another schema. Whether it is inlined or constructed is
// decided when it is rendered.
type Ref struct {
	Name string
	Ref  string
}

func (p *Scalar) ParamName() string { return p.Name }
func (p *Array) ParamName() string  { return p.Name }
func (p *Ref) ParamName() string    { return p.Name }

func (*Scalar) isParam() {}
func (*Array) isParam()  {}
func (*Ref) isParam()    {}

// URLParam is a parameter embedded in the request path.
type URLParam struct {
	Name     string
	Required bool
	Type     string
	Ref      string
	Unique   bool
	Example  *string
}

// Param converts u into the common descriptor.
func (u URLParam) Param() Param {
	switch {
	case u.Ref != "":
		return &Ref{Name: u.Name, Ref: u.Ref}
	case u.Type == "array":
		return &Array{Name: u.Name, Unique: u.Unique}
	default:
		return &Scalar{Name: u.Name, Type: u.Type, Example: u.Example}
	}
}

// paramFrom builds a descriptor for a property or inline schema node.
func paramFrom(name string, n spec.Node) Param {
	if ref := schemaRef(n); ref != "" {
		return &Ref{Name: name, Ref: ref}
	}
	typ := spec.SchemaType(n)
	if typ == "array" {
		return &Array{Name: name, Unique: n.Bool("uniqueItems"), Items: n.Get("items")}
	}
	s := &Scalar{Name: name, Type: typ}
	if ex, ok := example(n); ok {
		s.Example = &ex
	}
	return s
}

// schemaRef returns the $ref of n, also seeing through the common
// single-element allOf wrapper used to attach siblings to a ref.
func schemaRef(n spec.Node) string {
	if ref := n.Str("$ref"); ref != "" {
		return ref
	}
	if all := n.Get("allOf").Elems(); len(all) == 1 {
		return all[0].Str("$ref")
	}
	return ""
}

// example returns the scalar example declared on n, preferring example over
// the first entry of examples.
func example(n spec.Node) (string, bool) {
	if ex := n.Get("example"); ex.IsScalar() {
		return ex.Text(), true
	}
	if first := n.Get("examples").Index(0); first.IsScalar() {
		return first.Text(), true
	}
	return "", false
}
