package fixture

import "github.com/mark3labs/spec2tests/internal/spec"

// Assembled is the assembled input of one endpoint call.
type Assembled struct {
	// Constructions precede the call in the generated test.
	Constructions Constructions
	// Args is the call argument list: path parameters, then the body.
	Args Args
	// Resolved holds type names that were inlined and never constructed.
	Resolved []string
	Warnings []string
}

// ParamString assembles path parameters followed by body parameters into the
// call arguments, collecting the constructions the body depends on.
// includeAll is passed down to every nested object.
func (b *Builder) ParamString(body []Param, url []URLParam, includeAll bool) Assembled {
	return b.session("", "").paramString(body, url, includeAll)
}

func (s *session) paramString(body []Param, url []URLParam, includeAll bool) Assembled {
	var args Args
	for _, u := range url {
		if arg, ok := s.arg(u.Param(), includeAll); ok {
			args = append(args, arg)
		}
	}
	for _, p := range body {
		ref, ok := p.(*Ref)
		if !ok {
			if arg, ok := s.arg(p, includeAll); ok {
				if arg.Name == "" {
					arg.Name = defaultBodyName
				}
				args = append(args, arg)
			}
			continue
		}
		if s.b.isUUID(ref.Ref) {
			args = append(args, Arg{Value: s.b.uuidLiteral()})
			s.resolve(spec.RefName(ref.Ref))
			continue
		}
		alias, err := s.b.doc.IsBasicTypeAlias(ref.Ref)
		if err != nil {
			s.warn(ref.Ref, "%v", err)
			continue
		}
		if alias {
			if lit, ok := s.inline(ref.Ref); ok {
				args = append(args, Arg{Value: lit})
				s.resolve(spec.RefName(ref.Ref))
			}
			continue
		}
		if name, ok := s.object(ref.Ref, includeAll); ok {
			args = append(args, Arg{Value: Literal(name)})
		}
	}
	return Assembled{
		Constructions: s.out,
		Args:          args,
		Resolved:      s.resolved,
		Warnings:      s.warnings,
	}
}
