package fixture

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/spec2tests/internal/spec"
)

const (
	schemas   = "#/components/schemas/"
	updateURL = "/notifications/behaviorGroups/{id}"
	createURL = "/notifications/behaviorGroups"
	actionURL = "/notifications/behaviorGroups/{behaviorGroupId}/actions"
	digestURL = "/notifications/daily-digest/time-preference"
	eventsURL = "/notifications/events"
)

var uuidRe = regexp.MustCompile(`"[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}"`)

func loadDoc(t *testing.T) *spec.Document {
	t.Helper()
	raw, err := os.ReadFile("testdata/notifications.json")
	require.NoError(t, err)
	doc, err := spec.Parse(context.Background(), raw)
	require.NoError(t, err)
	return doc
}

// seqIDs returns a generator of predictable identifiers ...0001, ...0002.
func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
	}
}

func id(n int) string { return fmt.Sprintf(`"00000000-0000-0000-0000-%012d"`, n) }

func newTestBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	return NewBuilder(loadDoc(t), append([]Option{WithIDGenerator(seqIDs())}, opts...)...)
}

func TestDefaultValue(t *testing.T) {
	t.Parallel()
	cases := []struct {
		typ    string
		unique bool
		want   Literal
	}{
		{"array", false, "[]"},
		{"array", true, "new Set()"},
		{"boolean", false, "true"},
		{"string", false, `""`},
		{"number", false, "0"},
		{"integer", false, "0"},
		{"object", false, "{}"},
		{"", false, "undefined"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DefaultValue(tc.typ, tc.unique), "%s unique=%v", tc.typ, tc.unique)
	}

	ex := "13:45"
	assert.Equal(t, Literal(`"13:45"`), Value(&Scalar{Type: "string", Example: &ex}))
	assert.Equal(t, Literal("0"), Value(&Scalar{Type: "number", Example: &ex}), "example only applies to strings")
}

func TestFragments(t *testing.T) {
	t.Parallel()
	empty := Construction{Var: "updateBehaviorGroupRequest", Type: "UpdateBehaviorGroupRequest"}
	assert.Equal(t, "const updateBehaviorGroupRequest : UpdateBehaviorGroupRequest = { };", empty.String())

	full := Construction{Var: "b", Type: "B", Fields: Args{{Name: "x", Value: "0"}, {Name: "y", Value: "true"}}}
	assert.Equal(t, "const b : B = { x: 0, y: true };", full.String())
	assert.Equal(t, empty.String()+"\n"+full.String(), Constructions{empty, full}.String())
	assert.Equal(t, `id: "", b`, Args{{Name: "id", Value: `""`}, {Value: "b"}}.String())
	assert.Equal(t, "", Constructions(nil).String())
}

func TestURLParams(t *testing.T) {
	t.Parallel()
	b := newTestBuilder(t)

	params, err := b.URLParams(actionURL, "put")
	require.NoError(t, err)
	require.Len(t, params, 1, "query parameters are not part of the path")
	assert.Equal(t, "behaviorGroupId", params[0].Name)
	assert.True(t, params[0].Required)
	assert.Equal(t, schemas+"UUID", params[0].Ref)

	params, err = b.URLParams(updateURL, "put")
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, "string", params[0].Type)
	assert.Empty(t, params[0].Ref)

	params, err = b.URLParams("/health", "get")
	require.NoError(t, err)
	assert.Empty(t, params)

	_, err = b.URLParams("/notifications/broken", "post")
	require.ErrorIs(t, err, spec.ErrReference)
}

func TestBodyParams(t *testing.T) {
	t.Parallel()
	b := newTestBuilder(t)

	body, err := b.BodyParams(updateURL, "put")
	require.NoError(t, err)
	require.Len(t, body, 1)
	ref, ok := body[0].(*Ref)
	require.True(t, ok, "expected *Ref, got %T", body[0])
	assert.Equal(t, schemas+"UpdateBehaviorGroupRequest", ref.Ref)
	assert.Empty(t, ref.Name)

	body, err = b.BodyParams(actionURL, "put")
	require.NoError(t, err)
	require.Len(t, body, 1)
	arr, ok := body[0].(*Array)
	require.True(t, ok, "expected *Array, got %T", body[0])
	assert.Equal(t, "requestBody", arr.Name)
	assert.True(t, arr.Unique)
	assert.Equal(t, schemas+"UUID", arr.Items.Str("$ref"))

	body, err = b.BodyParams("/health", "get")
	require.NoError(t, err)
	assert.Empty(t, body)

	_, err = b.BodyParams("/nope", "get")
	require.ErrorIs(t, err, spec.ErrOperationNotFound)
}

func TestFields(t *testing.T) {
	t.Parallel()
	b := newTestBuilder(t)

	fields, err := b.Fields(schemas+"CreateBehaviorGroupRequest", false)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "display_name", fields[0].ParamName())

	fields, err = b.Fields(schemas+"CreateBehaviorGroupRequest", true)
	require.NoError(t, err)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.ParamName()
	}
	assert.Equal(t, []string{"bundle_id", "display_name", "bundle_name"}, names)
	assert.IsType(t, &Ref{}, fields[0])

	fields, err = b.Fields(schemas+"UpdateBehaviorGroupRequest", false)
	require.NoError(t, err)
	assert.Empty(t, fields)

	fields, err = b.Fields(schemas+"LocalTime", true)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	leaf := fields[0].(*Scalar)
	assert.Equal(t, "localTime", leaf.Name)
	require.NotNil(t, leaf.Example)
	assert.Equal(t, "13:45:30.123456789", *leaf.Example)

	fields, err = b.Fields(schemas+"UUID", true)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Empty(t, fields[0].ParamName(), "a scalar without examples stays unnamed")

	fields, err = b.Fields(schemas+"Ghost", false)
	require.NoError(t, err)
	require.Len(t, fields, 1, "required names missing from properties are skipped")
	assert.Equal(t, "present", fields[0].ParamName())

	_, err = b.Fields(schemas+"Missing", false)
	require.ErrorIs(t, err, spec.ErrReference)
}

func TestDependentObjects(t *testing.T) {
	t.Parallel()
	b := newTestBuilder(t)

	got, warnings := b.DependentObjects([]Param{&Ref{Ref: schemas + "UpdateBehaviorGroupRequest"}}, false)
	assert.Empty(t, warnings)
	assert.Equal(t, "const updateBehaviorGroupRequest : UpdateBehaviorGroupRequest = { };", got.String())

	got, _ = b.DependentObjects([]Param{&Ref{Ref: schemas + "Application"}}, false)
	assert.Equal(t,
		`const application : Application = { bundleId: `+id(1)+`, displayName: "" };`,
		got.String())

	got, _ = b.DependentObjects([]Param{
		&Ref{Ref: schemas + "LocalTime"},
		&Ref{Ref: schemas + "UUID"},
		&Scalar{Name: "x", Type: "string"},
	}, true)
	assert.Empty(t, got, "aliases and leaves never produce constructions")
}

func TestDependentObjects_NestedIncludeAll(t *testing.T) {
	t.Parallel()
	b := newTestBuilder(t)

	got, warnings := b.DependentObjects([]Param{&Ref{Ref: schemas + "Event"}}, true)
	assert.Empty(t, warnings)
	want := strings.Join([]string{
		`const bundle : Bundle = { id: ` + id(3) + `, name: "" };`,
		`const application : Application = { bundleId: ` + id(2) + `, displayName: "", bundle: bundle };`,
		`const event : Event = { id: ` + id(1) + `, application: application, tags: new Set(), time: "13:45:30.123456789", count: 0, note: "hello" };`,
	}, "\n")
	assert.Equal(t, want, got.String())
	assert.NotContains(t, got.String(), "const bundleId")
	assert.NotContains(t, got.String(), ": DigestTime")
}

func TestDependentObjects_Cycle(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	b := newTestBuilder(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	got, warnings := b.DependentObjects([]Param{&Ref{Ref: schemas + "TreeNode"}}, false)
	assert.Equal(t, `const treeNode : TreeNode = { name: "" };`, got.String())
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "circular reference")
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestDependentObjects_UniqueVarNames(t *testing.T) {
	t.Parallel()
	b := newTestBuilder(t)

	got, _ := b.DependentObjects([]Param{&Ref{Ref: schemas + "Pair"}}, false)
	want := strings.Join([]string{
		`const bundle : Bundle = { id: ` + id(1) + ` };`,
		`const bundle2 : Bundle = { id: ` + id(2) + ` };`,
		`const pair : Pair = { left: bundle, right: bundle2 };`,
	}, "\n")
	assert.Equal(t, want, got.String())
}

func TestParamString_PathAndObjectBody(t *testing.T) {
	t.Parallel()
	b := newTestBuilder(t)

	out := b.ParamString(
		[]Param{&Ref{Ref: schemas + "CreateBehaviorGroupRequest"}},
		[]URLParam{{Name: "id", Required: true, Type: "string"}},
		false,
	)
	assert.Equal(t, `id: "", createBehaviorGroupRequest`, out.Args.String())
	assert.Equal(t, `const createBehaviorGroupRequest : CreateBehaviorGroupRequest = { display_name: "" };`, out.Constructions.String())
	assert.Empty(t, out.Resolved)
}

func TestParamString_AliasBodyIsInlined(t *testing.T) {
	t.Parallel()
	b := newTestBuilder(t)

	out := b.ParamString([]Param{&Ref{Ref: schemas + "LocalTime"}}, nil, true)
	assert.Equal(t, `"13:45:30.123456789"`, out.Args.String())
	assert.Empty(t, out.Constructions.String())
	assert.Equal(t, []string{"LocalTime"}, out.Resolved)

	out = b.ParamString([]Param{&Ref{Ref: schemas + "UUID"}}, nil, false)
	assert.Regexp(t, `^"00000000-0000-0000-0000-\d{12}"$`, out.Args.String())
	assert.Equal(t, []string{"UUID"}, out.Resolved)
}

func TestParamString_UniqueArrayBody(t *testing.T) {
	t.Parallel()
	b := newTestBuilder(t)

	out := b.ParamString([]Param{&Array{Name: "requestBody", Unique: true}}, nil, true)
	assert.Equal(t, "requestBody: new Set()", out.Args.String())
	assert.Empty(t, out.Constructions)

	out = b.ParamString([]Param{&Scalar{Type: "boolean"}}, nil, false)
	assert.Equal(t, "requestBody: true", out.Args.String(), "unnamed leaves fall back to the default body name")
}

func TestParamString_Empty(t *testing.T) {
	t.Parallel()
	out := newTestBuilder(t).ParamString(nil, nil, false)
	assert.Empty(t, out.Args.String())
	assert.Empty(t, out.Constructions.String())
}

func TestParamString_MalformedRefDegrades(t *testing.T) {
	t.Parallel()
	b := newTestBuilder(t)

	out := b.ParamString(
		[]Param{&Ref{Ref: schemas + "DoesNotExist"}},
		[]URLParam{{Name: "id", Type: "integer"}},
		false,
	)
	assert.Equal(t, "id: 0", out.Args.String())
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "DoesNotExist")
}

func TestParamString_FreshIdentifiersAndIdempotence(t *testing.T) {
	t.Parallel()
	b := NewBuilder(loadDoc(t))
	body := []Param{&Ref{Ref: schemas + "Event"}}

	first := b.ParamString(body, nil, true)
	second := b.ParamString(body, nil, true)

	ids := uuidRe.FindAllString(first.Constructions.String(), -1)
	require.Len(t, ids, 3)
	seen := map[string]bool{}
	for _, v := range ids {
		assert.Len(t, v, 38)
		assert.False(t, seen[v], "identifier %s reused", v)
		seen[v] = true
	}

	mask := func(s string) string { return uuidRe.ReplaceAllString(s, `"<id>"`) }
	assert.NotEqual(t, first.Constructions.String(), second.Constructions.String())
	assert.Equal(t, mask(first.Constructions.String()), mask(second.Constructions.String()))
	assert.Equal(t, first.Args.String(), second.Args.String())
}

func TestCamelFields(t *testing.T) {
	t.Parallel()
	b := newTestBuilder(t, WithCamelFields(true))

	got, _ := b.DependentObjects([]Param{&Ref{Ref: schemas + "CreateBehaviorGroupRequest"}}, false)
	assert.Equal(t, `const createBehaviorGroupRequest : CreateBehaviorGroupRequest = { displayName: "" };`, got.String())
}

func TestUUIDSchemasOption(t *testing.T) {
	t.Parallel()
	b := newTestBuilder(t, WithUUIDSchemas("LocalTime"))

	out := b.ParamString([]Param{&Ref{Ref: schemas + "DigestTime"}}, nil, true)
	assert.Equal(t, id(1), out.Args.String(), "matched through the ref chain")

	out = b.ParamString([]Param{&Ref{Ref: schemas + "UUID"}}, nil, true)
	assert.Equal(t, `""`, out.Args.String(), "UUID is a plain string alias once replaced")
}
