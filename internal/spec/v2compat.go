package spec

import (
	"context"
	"fmt"
	"strings"

	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// preprocessV2ForCompatibility rewrites non-compliant Swagger v2 operations in
// place so they can be converted to v3:
//   - several body parameters on one operation are merged into a single body
//     parameter whose schema is an object with one property per original;
//   - body parameters mixed with formData ones become formData parameters and
//     the operation consumes multipart/form-data.
//
// It reports whether anything changed.
func preprocessV2ForCompatibility(doc *yaml.Node) bool {
	root := deref(doc)
	modified := false
	for _, item := range mapValues(mapGet(root, "paths")) {
		for i := 0; i+1 < len(item.Content); i += 2 {
			if _, ok := ParseMethod(item.Content[i].Value); !ok {
				continue
			}
			op := deref(item.Content[i+1])
			params := mapGet(op, "parameters")
			if params == nil || params.Kind != yaml.SequenceNode {
				continue
			}
			bodyCount, hasFormData := 0, false
			for _, p := range params.Content {
				switch in := strings.ToLower(scalarOf(mapGet(deref(p), "in"))); in {
				case "body":
					bodyCount++
				case "formdata":
					hasFormData = true
				}
			}
			switch {
			case bodyCount == 0:
			case hasFormData:
				for j, p := range params.Content {
					if strings.EqualFold(scalarOf(mapGet(deref(p), "in")), "body") {
						params.Content[j] = formDataFromBodyParam(deref(p))
					}
				}
				consumes := mapGet(op, "consumes")
				if consumes == nil || consumes.Kind != yaml.SequenceNode {
					consumes = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
					mapSet(op, "consumes", consumes)
				}
				if !seqContains(consumes, "multipart/form-data") {
					consumes.Content = append(consumes.Content, strNode("multipart/form-data"))
				}
				modified = true
			case bodyCount > 1:
				props := newMap()
				required := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
				rest := make([]*yaml.Node, 0, len(params.Content))
				for _, p := range params.Content {
					pm := deref(p)
					if !strings.EqualFold(scalarOf(mapGet(pm, "in")), "body") {
						rest = append(rest, p)
						continue
					}
					name := scalarOf(mapGet(pm, "name"))
					if name == "" {
						name = "field"
					}
					schema := schemaFromParam(pm)
					if schema == nil {
						schema = newMap()
						mapSet(schema, "type", strNode("string"))
					}
					mapSet(props, name, schema)
					if isTrue(mapGet(pm, "required")) {
						required.Content = append(required.Content, strNode(name))
					}
				}
				bodySchema := newMap()
				mapSet(bodySchema, "type", strNode("object"))
				mapSet(bodySchema, "properties", props)
				if len(required.Content) > 0 {
					mapSet(bodySchema, "required", required)
				}
				merged := newMap()
				mapSet(merged, "in", strNode("body"))
				mapSet(merged, "name", strNode("body"))
				mapSet(merged, "schema", bodySchema)
				params.Content = append([]*yaml.Node{merged}, rest...)
				modified = true
			}
		}
	}
	return modified
}

// validateV2 runs the document through kin-openapi's v2 to v3 conversion and
// validates the result. A conversion failure comes back as a ConversionError.
func validateV2(ctx context.Context, doc *yaml.Node) error {
	data, err := json.Marshal(toJSONValue(deref(doc)))
	if err != nil {
		return &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Cause: err}
	}
	var v2 openapi2.T
	if err := json.Unmarshal(data, &v2); err != nil {
		return &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Cause: err}
	}
	v3, err := openapi2conv.ToV3(&v2)
	if err != nil {
		return &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Cause: err}
	}
	return v3.Validate(ctx)
}

var v2RefPrefixes = []struct{ from, to string }{
	{"#/definitions/", "#/components/schemas/"},
	{"#/parameters/", "#/components/parameters/"},
	{"#/responses/", "#/components/responses/"},
}

// upgradeV2 reshapes a Swagger 2.0 tree into the OpenAPI 3 layout the rest of
// the package reads: definitions move under components, body parameters
// become request bodies and response schemas move under content. Mapping
// order is kept.
func upgradeV2(doc *yaml.Node) {
	root := deref(doc)
	globalConsumes := mapGet(root, "consumes")
	globalProduces := mapGet(root, "produces")

	var components *yaml.Node
	for _, move := range []struct{ from, to string }{
		{"definitions", "schemas"},
		{"parameters", "parameters"},
		{"responses", "responses"},
	} {
		v := mapGet(root, move.from)
		if v == nil {
			continue
		}
		if components == nil {
			components = newMap()
		}
		mapSet(components, move.to, v)
		mapDelete(root, move.from)
	}
	if components != nil {
		mapSet(root, "components", components)
	}
	rewriteRefs(root)

	for _, item := range mapValues(mapGet(root, "paths")) {
		for i := 0; i+1 < len(item.Content); i += 2 {
			if _, ok := ParseMethod(item.Content[i].Value); !ok {
				continue
			}
			upgradeV2Operation(deref(item.Content[i+1]), globalConsumes, globalProduces)
		}
	}

	mapDelete(root, "swagger")
	mapDelete(root, "consumes")
	mapDelete(root, "produces")
	mapSet(root, "openapi", strNode("3.0.3"))
}

func upgradeV2Operation(op, globalConsumes, globalProduces *yaml.Node) {
	if params := mapGet(op, "parameters"); params != nil && params.Kind == yaml.SequenceNode {
		kept := make([]*yaml.Node, 0, len(params.Content))
		for _, p := range params.Content {
			pm := deref(p)
			if !strings.EqualFold(scalarOf(mapGet(pm, "in")), "body") {
				kept = append(kept, p)
				continue
			}
			media := newMap()
			if schema := mapGet(pm, "schema"); schema != nil {
				mapSet(media, "schema", schema)
			}
			content := newMap()
			mapSet(content, pickJSONMime(mapGet(op, "consumes"), globalConsumes), media)
			body := newMap()
			if d := mapGet(pm, "description"); d != nil {
				mapSet(body, "description", d)
			}
			if isTrue(mapGet(pm, "required")) {
				mapSet(body, "required", boolNode(true))
			}
			mapSet(body, "content", content)
			mapSet(op, "requestBody", body)
		}
		params.Content = kept
	}

	mime := pickJSONMime(mapGet(op, "produces"), globalProduces)
	responses := mapGet(op, "responses")
	for _, resp := range mapValues(responses) {
		schema := mapGet(resp, "schema")
		if schema == nil {
			continue
		}
		media := newMap()
		mapSet(media, "schema", schema)
		if ex := mapGet(resp, "examples"); ex != nil {
			if v := mapGet(ex, mime); v != nil {
				mapSet(media, "example", v)
			}
			mapDelete(resp, "examples")
		}
		content := newMap()
		mapSet(content, mime, media)
		mapDelete(resp, "schema")
		mapSet(resp, "content", content)
	}
	mapDelete(op, "consumes")
	mapDelete(op, "produces")
}

func pickJSONMime(lists ...*yaml.Node) string {
	for _, l := range lists {
		if l == nil || l.Kind != yaml.SequenceNode {
			continue
		}
		for _, c := range l.Content {
			if strings.Contains(c.Value, "json") {
				return c.Value
			}
		}
	}
	return "application/json"
}

func rewriteRefs(n *yaml.Node) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			rewriteRefs(c)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Value == "$ref" && v.Kind == yaml.ScalarNode {
				for _, p := range v2RefPrefixes {
					if strings.HasPrefix(v.Value, p.from) {
						v.Value = p.to + strings.TrimPrefix(v.Value, p.from)
						break
					}
				}
				continue
			}
			rewriteRefs(v)
		}
	}
}

func schemaFromParam(pm *yaml.Node) *yaml.Node {
	if sch := mapGet(pm, "schema"); sch != nil {
		return sch
	}
	t := scalarOf(mapGet(pm, "type"))
	if t == "" {
		return nil
	}
	m := newMap()
	mapSet(m, "type", strNode(t))
	if it := mapGet(pm, "items"); it != nil {
		mapSet(m, "items", it)
	}
	if f := scalarOf(mapGet(pm, "format")); f != "" {
		mapSet(m, "format", strNode(f))
	}
	return m
}

func formDataFromBodyParam(pm *yaml.Node) *yaml.Node {
	name := scalarOf(mapGet(pm, "name"))
	if name == "" {
		name = "field"
	}
	out := newMap()
	mapSet(out, "in", strNode("formData"))
	mapSet(out, "name", strNode(name))
	if d := scalarOf(mapGet(pm, "description")); d != "" {
		mapSet(out, "description", strNode(d))
	}
	if r := mapGet(pm, "required"); r != nil {
		mapSet(out, "required", boolNode(isTrue(r)))
	}
	var typ, format string
	var items *yaml.Node
	if sch := deref(mapGet(pm, "schema")); sch != nil {
		typ = scalarOf(mapGet(sch, "type"))
		items = mapGet(sch, "items")
		format = scalarOf(mapGet(sch, "format"))
		if typ == "" && mapGet(sch, "$ref") != nil {
			// a referenced object has no formData form
			typ = "string"
		}
	}
	if typ == "" {
		typ = scalarOf(mapGet(pm, "type"))
		items = mapGet(pm, "items")
		format = scalarOf(mapGet(pm, "format"))
	}
	if typ == "" {
		typ = "string"
	}
	mapSet(out, "type", strNode(typ))
	if items != nil {
		mapSet(out, "items", items)
	}
	if format != "" {
		mapSet(out, "format", strNode(format))
	}
	return out
}

// toJSONValue converts a node into plain Go values with string map keys,
// which is what encoding to JSON needs. Unquoted YAML keys such as 200 stay
// strings.
func toJSONValue(n *yaml.Node) any {
	n = deref(n)
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			m[n.Content[i].Value] = toJSONValue(n.Content[i+1])
		}
		return m
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			s = append(s, toJSONValue(c))
		}
		return s
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return n.Value
		}
		return v
	}
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && (n.Kind == yaml.DocumentNode || n.Kind == yaml.AliasNode) {
		if n.Kind == yaml.AliasNode {
			n = n.Alias
			continue
		}
		if len(n.Content) == 0 {
			return nil
		}
		n = n.Content[0]
	}
	return n
}

func mapGet(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return deref(m.Content[i+1])
		}
	}
	return nil
}

func mapValues(m *yaml.Node) []*yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]*yaml.Node, 0, len(m.Content)/2)
	for i := 1; i < len(m.Content); i += 2 {
		if v := deref(m.Content[i]); v != nil && v.Kind == yaml.MappingNode {
			out = append(out, v)
		}
	}
	return out
}

func mapSet(m *yaml.Node, key string, val *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = val
			return
		}
	}
	m.Content = append(m.Content, strNode(key), val)
}

func mapDelete(m *yaml.Node, key string) {
	if m == nil {
		return
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return
		}
	}
}

func seqContains(s *yaml.Node, want string) bool {
	for _, c := range s.Content {
		if c.Value == want {
			return true
		}
	}
	return false
}

func scalarOf(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

func isTrue(n *yaml.Node) bool {
	if n == nil || n.Kind != yaml.ScalarNode {
		return false
	}
	var b bool
	return n.Decode(&b) == nil && b
}

func newMap() *yaml.Node { return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"} }

func strNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func boolNode(b bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(b)}
}
