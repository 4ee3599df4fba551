package spec

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func parseNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(src), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &n
}

func dump(t *testing.T, n *yaml.Node) string {
	t.Helper()
	out, err := yaml.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(out)
}

func TestV2Compat_MultipleBodyMerged(t *testing.T) {
	t.Parallel()
	n := parseNode(t, `swagger: "2.0"
info: { title: t, version: "1.0.0" }
paths:
  /x:
    post:
      parameters:
      - in: body
        name: a
        required: true
        schema: { type: string }
      - in: body
        name: b
        schema: { type: integer }
      responses: { '200': { description: ok } }
`)
	if !preprocessV2ForCompatibility(n) {
		t.Fatalf("expected changes")
	}
	params := mapGet(mapGet(mapGet(mapGet(deref(n), "paths"), "/x"), "post"), "parameters")
	if len(params.Content) != 1 {
		t.Fatalf("expected a single merged body parameter, got:\n%s", dump(t, n))
	}
	merged := params.Content[0]
	if scalarOf(mapGet(merged, "name")) != "body" {
		t.Fatalf("merged name = %q", scalarOf(mapGet(merged, "name")))
	}
	schema := mapGet(merged, "schema")
	var keys []string
	props := mapGet(schema, "properties")
	for i := 0; i < len(props.Content); i += 2 {
		keys = append(keys, props.Content[i].Value)
	}
	if strings.Join(keys, ",") != "a,b" {
		t.Fatalf("property order = %v", keys)
	}
	if got := mapGet(schema, "required"); got == nil || len(got.Content) != 1 || got.Content[0].Value != "a" {
		t.Fatalf("expected required [a], got:\n%s", dump(t, n))
	}
}

func TestV2Compat_BodyAndFormData_ToFormData(t *testing.T) {
	t.Parallel()
	n := parseNode(t, `swagger: "2.0"
info: { title: t, version: "1.0.0" }
paths:
  /upload:
    post:
      parameters:
      - in: body
        name: desc
        schema: { type: string }
      - in: formData
        name: file
        type: file
        required: true
      responses: { '200': { description: ok } }
`)
	if !preprocessV2ForCompatibility(n) {
		t.Fatalf("expected changes")
	}
	s := dump(t, n)
	if strings.Contains(s, "in: body") {
		t.Fatalf("expected no body params after conversion to formData, got:\n%s", s)
	}
	if !strings.Contains(s, "multipart/form-data") {
		t.Fatalf("expected consumes multipart/form-data, got:\n%s", s)
	}
}

func TestV2Compat_NoBodyUnchanged(t *testing.T) {
	t.Parallel()
	n := parseNode(t, `swagger: "2.0"
paths:
  /x:
    get:
      parameters:
      - {in: query, name: q, type: string}
`)
	if preprocessV2ForCompatibility(n) {
		t.Fatalf("expected no changes")
	}
}

func TestUpgradeV2_KeepsOrderAndRewritesRefs(t *testing.T) {
	t.Parallel()
	n := parseNode(t, `swagger: "2.0"
info: { title: t, version: "1.0.0" }
produces: [application/vnd.api+json]
paths:
  /b:
    get:
      responses:
        200:
          description: ok
          schema: { $ref: '#/definitions/Zeta' }
  /a:
    post:
      parameters:
      - in: path
        name: id
        type: string
        required: true
      - in: body
        name: payload
        schema: { $ref: '#/definitions/Alpha' }
      responses: { '204': { description: none } }
definitions:
  Zeta:
    type: object
    properties:
      z: { type: string }
      alpha: { $ref: '#/definitions/Alpha' }
  Alpha:
    type: string
`)
	upgradeV2(n)
	doc := &Document{root: n}
	root := doc.Root()

	if got := strings.Join(root.Get("paths").Keys(), ","); got != "/b,/a" {
		t.Fatalf("path order = %s", got)
	}
	if got := strings.Join(root.Get("components").Get("schemas").Keys(), ","); got != "Zeta,Alpha" {
		t.Fatalf("schema order = %s", got)
	}
	if root.Has("definitions") || root.Has("swagger") {
		t.Fatalf("expected v2 keys removed:\n%s", dump(t, n))
	}
	alpha := root.Get("components").Get("schemas").Get("Zeta").Get("properties").Get("alpha").Str("$ref")
	if alpha != "#/components/schemas/Alpha" {
		t.Fatalf("nested ref = %q", alpha)
	}

	post := root.Get("paths").Get("/a").Get("post")
	if len(post.Get("parameters").Elems()) != 1 {
		t.Fatalf("expected body param moved out of parameters")
	}
	if post.Get("requestBody").Bool("required") {
		t.Fatalf("optional body param should stay optional")
	}
	get := root.Get("paths").Get("/b").Get("get")
	media := get.Get("responses").Get("200").Get("content").Get("application/vnd.api+json")
	if media.Get("schema").Str("$ref") != "#/components/schemas/Zeta" {
		t.Fatalf("response schema not moved:\n%s", dump(t, n))
	}
}
