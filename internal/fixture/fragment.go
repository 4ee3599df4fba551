package fixture

import (
	"strconv"
	"strings"
)

// Literal is a value expression in the generated test source, such as "",
// 0 or new Set().
type Literal string

// Quote renders s as a double-quoted string literal.
func Quote(s string) Literal { return Literal(strconv.Quote(s)) }

// Arg is one call argument or object field. It renders as "name: value", or
// as the bare value when Name is empty.
type Arg struct {
	Name  string
	Value Literal
}

func (a Arg) String() string {
	if a.Name == "" {
		return string(a.Value)
	}
	return a.Name + ": " + string(a.Value)
}

// Args is an ordered argument list joined with ", ".
type Args []Arg

func (a Args) String() string {
	parts := make([]string, len(a))
	for i, arg := range a {
		parts[i] = arg.String()
	}
	return strings.Join(parts, ", ")
}

// Construction declares a local instance of a named schema:
//
//	const bundle : Bundle = { name: "" };
type Construction struct {
	Var    string
	Type   string
	Fields Args
}

func (c Construction) String() string {
	body := " "
	if len(c.Fields) > 0 {
		body = " " + c.Fields.String() + " "
	}
	return "const " + c.Var + " : " + c.Type + " = {" + body + "};"
}

// Constructions are emitted one statement per line, dependencies first.
type Constructions []Construction

func (c Constructions) String() string {
	lines := make([]string, len(c))
	for i, con := range c {
		lines[i] = con.String()
	}
	return strings.Join(lines, "\n")
}
