package e2e

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cli "github.com/mark3labs/spec2tests/internal/cli"
	"github.com/mark3labs/spec2tests/internal/fixture"
)

// Swagger 2.0 document exercising conversion, refs, UUIDs and aliases.
const swaggerSpec = `{
  "swagger": "2.0",
  "info": {"title": "Notifications", "version": "v2.0"},
  "basePath": "/api/notifications/v2.0",
  "consumes": ["application/json"],
  "produces": ["application/json"],
  "paths": {
    "/behaviorGroups": {
      "post": {
        "operationId": "NotificationResource$V2_createBehaviorGroup",
        "summary": "Create a behavior group",
        "tags": ["groups"],
        "parameters": [
          {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBehaviorGroupRequest"}}
        ],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/CreateBehaviorGroupResponse"}}
        }
      }
    },
    "/behaviorGroups/{behaviorGroupId}": {
      "delete": {
        "operationId": "NotificationResource$V2_deleteBehaviorGroup",
        "summary": "Delete a behavior group",
        "tags": ["groups", "admin"],
        "parameters": [
          {"in": "path", "name": "behaviorGroupId", "required": true, "type": "string", "format": "uuid"}
        ],
        "responses": {"204": {"description": "No Content"}}
      }
    },
    "/daily-digest/time-preference": {
      "put": {
        "operationId": "NotificationResource$V2_saveDailyDigestTimePreference",
        "summary": "Save the daily digest time",
        "parameters": [
          {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/LocalTime"}}
        ],
        "responses": {"200": {"description": "OK"}}
      }
    }
  },
  "definitions": {
    "UUID": {"type": "string", "format": "uuid"},
    "LocalTime": {"type": "string", "example": "13:45:30"},
    "CreateBehaviorGroupRequest": {
      "type": "object",
      "required": ["bundle_id", "display_name"],
      "properties": {
        "bundle_id": {"$ref": "#/definitions/UUID"},
        "display_name": {"type": "string"},
        "settings": {"$ref": "#/definitions/Settings"}
      }
    },
    "Settings": {
      "type": "object",
      "properties": {"muted": {"type": "boolean"}}
    },
    "CreateBehaviorGroupResponse": {
      "type": "object",
      "properties": {"id": {"$ref": "#/definitions/UUID"}}
    }
  }
}
`

var uuidRe = regexp.MustCompile(`"[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}"`)

func runCLI(t *testing.T, args ...string) {
	t.Helper()
	root := cli.NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	require.NoError(t, root.Execute(), "cli execute %v", args)
}

func digest(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	// identifiers are random per run
	masked := uuidRe.ReplaceAll(b, []byte(`"<uuid>"`))
	sum := sha256.Sum256(masked)
	return hex.EncodeToString(sum[:])
}

func TestE2E_Swagger2_FromURL(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, swaggerSpec)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	out := filepath.Join(dir, "notifications.test.ts")
	records := filepath.Join(dir, "records.json")
	runCLI(t, "generate", "--input", srv.URL+"/openapi.json", "--out", out, "--records-out", records)
	assert.Equal(t, int32(1), hits.Load())

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	src := string(b)

	assert.Contains(t, src, "import { NotificationsClient } from 'api';")
	assert.Contains(t, src, "describe('NotificationsResourceV2', () => {")
	assert.Contains(t, src, "import { CreateBehaviorGroupRequest } from 'types';")
	assert.NotContains(t, src, "import { LocalTime }")
	assert.Regexp(t, `const createBehaviorGroupRequest : CreateBehaviorGroupRequest = \{ bundle_id: "[0-9a-f-]{36}", display_name: "", settings: settings \};`, src)
	assert.Contains(t, src, "const settings : Settings = { muted: true };")
	assert.Contains(t, src, `const params: NotificationResourceV2SaveDailyDigestTimePreferenceParams = { "13:45:30" };`)
	assert.Contains(t, src, "expect(result.status).toEqual(204);")
	assert.Less(t, strings.Index(src, "Create a behavior group"), strings.Index(src, "Delete a behavior group"))

	raw, err := os.ReadFile(records)
	require.NoError(t, err)
	var run fixture.Run
	require.NoError(t, json.Unmarshal(raw, &run))
	require.Len(t, run.Records, 3)
	assert.Equal(t, "#/components/schemas/CreateBehaviorGroupRequest", run.Records[0].RequestSchema)
	assert.Equal(t, "CreateBehaviorGroupResponse", run.Records[0].ResponseSchemaClass)
	assert.Equal(t, []string{"LocalTime"}, run.Resolved)
}

func TestE2E_Deterministic_And_Filtered(t *testing.T) {
	t.Parallel()
	specPath := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(specPath, []byte(swaggerSpec), 0o600))

	dir := t.TempDir()
	out1 := filepath.Join(dir, "one.test.ts")
	out2 := filepath.Join(dir, "two.test.ts")
	runCLI(t, "generate", "--input", specPath, "--out", out1)
	runCLI(t, "generate", "--input", specPath, "--out", out2)
	assert.Equal(t, digest(t, out1), digest(t, out2), "outputs differ between runs")

	filtered := filepath.Join(dir, "admin.test.ts")
	runCLI(t, "generate", "--input", specPath, "--out", filtered, "--include-tags", "admin", "--methods", "delete")
	b, err := os.ReadFile(filtered)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(b), "  it('"))
	assert.Contains(t, string(b), "Delete a behavior group")
}

func TestE2E_CamelFieldsAndCustomUUIDs(t *testing.T) {
	t.Parallel()
	specPath := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(specPath, []byte(swaggerSpec), 0o600))

	out := filepath.Join(t.TempDir(), "camel.test.ts")
	runCLI(t, "generate", "--input", specPath, "--out", out, "--camel-fields", "--uuid-schemas", "None", "--paths", "^/behaviorGroups$")

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	src := string(b)
	assert.Contains(t, src, `const createBehaviorGroupRequest : CreateBehaviorGroupRequest = { bundleId: "", displayName: "", settings: settings };`)
	assert.False(t, uuidRe.MatchString(src), "no identifiers expected when UUID is not designated")
}
