package fixture

import "github.com/mark3labs/spec2tests/internal/spec"

// DependentObjects builds the local constructions needed by params. Only
// *Ref params that point at objects produce statements; alias refs and leaves
// are skipped. Nested objects are declared before the object that uses them.
// Problems with individual refs are returned as warnings and the affected
// field is left out.
func (b *Builder) DependentObjects(params []Param, includeAll bool) (Constructions, []string) {
	s := b.session("", "")
	for _, p := range params {
		ref, ok := p.(*Ref)
		if !ok || b.isUUID(ref.Ref) {
			continue
		}
		alias, err := b.doc.IsBasicTypeAlias(ref.Ref)
		if err != nil {
			s.warn(ref.Ref, "%v", err)
			continue
		}
		if !alias {
			s.object(ref.Ref, includeAll)
		}
	}
	return s.out, s.warnings
}

// object appends the construction for the object at ref, after the
// constructions of any nested objects, and returns its variable name. It
// returns false when ref cannot be resolved or is already being built further
// up the chain.
func (s *session) object(ref string, includeAll bool) (string, bool) {
	final, _, err := s.b.doc.Follow(ref)
	if err != nil {
		s.warn(ref, "%v", err)
		return "", false
	}
	if s.active[final] {
		s.warn(ref, "circular reference, field omitted")
		return "", false
	}
	s.active[final] = true
	defer delete(s.active, final)

	typeName := spec.RefName(final)
	name := s.varName(typeName)
	fields, err := s.fields(final, includeAll)
	if err != nil {
		s.warn(ref, "%v", err)
	}
	body := make(Args, 0, len(fields))
	for _, f := range fields {
		if arg, ok := s.arg(f, includeAll); ok {
			body = append(body, arg)
		}
	}
	s.out = append(s.out, Construction{Var: name, Type: typeName, Fields: body})
	return name, true
}

// arg renders a named descriptor as "name: value". Identifier refs get a new
// identifier, alias refs are inlined and object refs are constructed and
// referenced by variable name.
func (s *session) arg(p Param, includeAll bool) (Arg, bool) {
	ref, ok := p.(*Ref)
	if !ok {
		return Arg{Name: p.ParamName(), Value: Value(p)}, true
	}
	if s.b.isUUID(ref.Ref) {
		return Arg{Name: ref.Name, Value: s.b.uuidLiteral()}, true
	}
	alias, err := s.b.doc.IsBasicTypeAlias(ref.Ref)
	if err != nil {
		s.warn(ref.Ref, "%v", err)
		return Arg{}, false
	}
	if alias {
		lit, ok := s.inline(ref.Ref)
		return Arg{Name: ref.Name, Value: lit}, ok
	}
	name, ok := s.object(ref.Ref, includeAll)
	return Arg{Name: ref.Name, Value: Literal(name)}, ok
}

// inline renders an alias ref as the literal of its single leaf.
func (s *session) inline(ref string) (Literal, bool) {
	leaf, err := s.fields(ref, true)
	if err != nil {
		s.warn(ref, "%v", err)
		return "", false
	}
	if len(leaf) != 1 {
		return DefaultValue("", false), true
	}
	return Value(leaf[0]), true
}
