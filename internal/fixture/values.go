package fixture

// DefaultValue is the placeholder literal for a schema type. Unique arrays
// become an empty set. Unknown or missing types render as undefined.
func DefaultValue(typ string, unique bool) Literal {
	switch typ {
	case "array":
		if unique {
			return "new Set()"
		}
		return "[]"
	case "boolean":
		return "true"
	case "string":
		return `""`
	case "number", "integer":
		return "0"
	case "object":
		return "{}"
	default:
		return "undefined"
	}
}

// Value renders a leaf descriptor. A declared example wins over the type
// default for string (or untyped) scalars.
func Value(p Param) Literal {
	switch p := p.(type) {
	case *Scalar:
		if p.Example != nil && (p.Type == "string" || p.Type == "") {
			return Quote(*p.Example)
		}
		return DefaultValue(p.Type, false)
	case *Array:
		return DefaultValue("array", p.Unique)
	default:
		return "undefined"
	}
}
