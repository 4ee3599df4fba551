package spec

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxRefDepth bounds how many $ref hops Follow walks before giving up.
const MaxRefDepth = 100

// ErrReference is matched by every *ReferenceError via errors.Is.
var ErrReference = errors.New("reference error")

// ReferenceError reports a $ref that could not be resolved against the document.
type ReferenceError struct {
	// Ref is the pointer that failed to resolve.
	Ref string
	// Segment is the first path segment that was missing, if known.
	Segment string
	// IsCircular is set when a chain of refs points back at itself.
	IsCircular bool
	// IsDepth is set when a chain exceeds MaxRefDepth hops.
	IsDepth bool
	Message string
}

func (e *ReferenceError) Error() string {
	msg := "reference error"
	switch {
	case e.IsCircular:
		msg = "circular reference"
	case e.IsDepth:
		msg = fmt.Sprintf("reference chain deeper than %d", MaxRefDepth)
	}
	if e.Ref != "" {
		msg += ": " + e.Ref
	}
	if e.Segment != "" {
		msg += fmt.Sprintf(" (missing segment %q)", e.Segment)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *ReferenceError) Is(target error) bool { return target == ErrReference }

// Document is a parsed specification kept as an ordered node tree so that
// mapping keys (paths, verbs, properties) come back in declaration order.
// It is never mutated after loading.
type Document struct {
	root *yaml.Node
	// Location is the file path or URL the document was read from.
	Location string
}

// NewDocument parses JSON or YAML bytes into a Document.
func NewDocument(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse spec: %w", err)
	}
	doc := &Document{root: &root}
	if !doc.Root().IsMap() {
		return nil, fmt.Errorf("parse spec: top level is not a mapping")
	}
	return doc, nil
}

// Root returns the top-level mapping.
func (d *Document) Root() Node { return wrap(d.root) }

// Info returns the title and version declared under info.
func (d *Document) Info() (title, version string) {
	info := d.Root().Get("info")
	return strings.TrimSpace(info.Str("title")), strings.TrimSpace(info.Str("version"))
}

// Resolve walks ref ("#/a/b/c") segment by segment from the document root.
// Segments are JSON pointer tokens; ~1 and ~0 and percent escapes are decoded.
func (d *Document) Resolve(ref string) (Node, error) {
	if !strings.HasPrefix(ref, "#") {
		return Node{}, &ReferenceError{Ref: ref, Message: "only local references are supported"}
	}
	parts := strings.Split(strings.TrimPrefix(ref, "#"), "/")
	cur := d.Root()
	for i, part := range parts {
		if i == 0 && part == "" {
			continue
		}
		seg := unescapePointer(part)
		next := cur.Get(seg)
		if cur.IsSeq() {
			if idx, err := strconv.Atoi(seg); err == nil {
				next = cur.Index(idx)
			}
		}
		if !next.Exists() {
			return Node{}, &ReferenceError{Ref: ref, Segment: seg}
		}
		cur = next
	}
	return cur, nil
}

// Follow resolves ref and keeps following while the target is itself a bare
// {$ref: ...} node. It returns the final ref together with its node.
func (d *Document) Follow(ref string) (string, Node, error) {
	seen := make(map[string]bool)
	for hops := 0; ; hops++ {
		if hops >= MaxRefDepth {
			return "", Node{}, &ReferenceError{Ref: ref, IsDepth: true}
		}
		if seen[ref] {
			return "", Node{}, &ReferenceError{Ref: ref, IsCircular: true}
		}
		seen[ref] = true
		n, err := d.Resolve(ref)
		if err != nil {
			return "", Node{}, err
		}
		next := n.Str("$ref")
		if next == "" {
			return ref, n, nil
		}
		ref = next
	}
}

var basicTypes = map[string]bool{
	"string":  true,
	"integer": true,
	"number":  true,
	"boolean": true,
	"array":   true,
}

// IsBasicTypeAlias reports whether ref points at a scalar or array schema
// rather than an object. Alias targets are inlined as literals; everything
// else gets a constructed instance.
func (d *Document) IsBasicTypeAlias(ref string) (bool, error) {
	_, n, err := d.Follow(ref)
	if err != nil {
		return false, err
	}
	return basicTypes[SchemaType(n)], nil
}

// SchemaType returns the declared type of a schema node. A type list
// (["string", "null"]) yields its first non-null entry.
func SchemaType(n Node) string {
	t := n.Get("type")
	if t.IsSeq() {
		for _, e := range t.Elems() {
			if v := e.Text(); v != "" && v != "null" {
				return v
			}
		}
		return ""
	}
	return t.Text()
}

// RefName returns the trailing segment of a ref, the schema's type name.
func RefName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return unescapePointer(ref[i+1:])
	}
	return strings.TrimPrefix(ref, "#")
}

func unescapePointer(token string) string {
	if decoded, err := url.PathUnescape(token); err == nil {
		token = decoded
	}
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}

// Node is a read-only view of one value inside a Document. The zero Node
// stands for "absent" and every accessor on it returns a zero result.
type Node struct{ y *yaml.Node }

func wrap(y *yaml.Node) Node {
	for y != nil && (y.Kind == yaml.DocumentNode || y.Kind == yaml.AliasNode) {
		if y.Kind == yaml.AliasNode {
			y = y.Alias
			continue
		}
		if len(y.Content) == 0 {
			return Node{}
		}
		y = y.Content[0]
	}
	return Node{y: y}
}

func (n Node) Exists() bool   { return n.y != nil }
func (n Node) IsMap() bool    { return n.y != nil && n.y.Kind == yaml.MappingNode }
func (n Node) IsSeq() bool    { return n.y != nil && n.y.Kind == yaml.SequenceNode }
func (n Node) IsScalar() bool { return n.y != nil && n.y.Kind == yaml.ScalarNode }

// Get looks up key in a mapping node.
func (n Node) Get(key string) Node {
	if !n.IsMap() {
		return Node{}
	}
	for i := 0; i+1 < len(n.y.Content); i += 2 {
		if n.y.Content[i].Value == key {
			return wrap(n.y.Content[i+1])
		}
	}
	return Node{}
}

// Has reports whether a mapping node declares key.
func (n Node) Has(key string) bool { return n.Get(key).Exists() }

// Index returns the i-th element of a sequence node.
func (n Node) Index(i int) Node {
	if !n.IsSeq() || i < 0 || i >= len(n.y.Content) {
		return Node{}
	}
	return wrap(n.y.Content[i])
}

// Text returns the value of a scalar node, or "" for anything else.
func (n Node) Text() string {
	if !n.IsScalar() {
		return ""
	}
	return n.y.Value
}

// Str is shorthand for n.Get(key).Text().
func (n Node) Str(key string) string { return n.Get(key).Text() }

// Bool reports whether key holds a true boolean scalar.
func (n Node) Bool(key string) bool {
	v := n.Get(key)
	if !v.IsScalar() {
		return false
	}
	var b bool
	if err := v.y.Decode(&b); err != nil {
		return false
	}
	return b
}

// Keys returns mapping keys in declaration order.
func (n Node) Keys() []string {
	if !n.IsMap() {
		return nil
	}
	keys := make([]string, 0, len(n.y.Content)/2)
	for i := 0; i+1 < len(n.y.Content); i += 2 {
		keys = append(keys, n.y.Content[i].Value)
	}
	return keys
}

// Elems returns the elements of a sequence node.
func (n Node) Elems() []Node {
	if !n.IsSeq() {
		return nil
	}
	out := make([]Node, 0, len(n.y.Content))
	for _, c := range n.y.Content {
		out = append(out, wrap(c))
	}
	return out
}

// Strings returns the scalar elements of a sequence node.
func (n Node) Strings() []string {
	var out []string
	for _, e := range n.Elems() {
		if e.IsScalar() {
			out = append(out, e.Text())
		}
	}
	return out
}

// Line is the 1-based source line of the node, 0 when absent.
func (n Node) Line() int {
	if n.y == nil {
		return 0
	}
	return n.y.Line
}

// Decode unmarshals the node into v.
func (n Node) Decode(v any) error {
	if n.y == nil {
		return fmt.Errorf("decode: node is absent")
	}
	return n.y.Decode(v)
}
