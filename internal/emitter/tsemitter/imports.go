package tsemitter

import (
	"strings"

	"github.com/iancoleman/strcase"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mark3labs/spec2tests/internal/fixture"
)

// Import is one named import of the generated test file.
type Import struct {
	Class   string `json:"importClass"`
	Package string `json:"importPackage"`
}

// VersionToken upper-cases an API version and drops trailing ".0" groups,
// so "v1.0" becomes "V1" and "2.0.0" becomes "2".
func VersionToken(version string) string {
	v := cases.Upper(language.Und).String(strings.TrimSpace(version))
	for strings.HasSuffix(v, ".0") {
		v = strings.TrimSuffix(v, ".0")
	}
	return v
}

// ResourcePrefix is the class prefix the generated client uses for an API,
// e.g. "NotificationsResourceV1".
func ResourcePrefix(title, version string) string {
	return strcase.ToCamel(title) + "Resource" + VersionToken(version)
}

// ClientClass names the generated client class for an API title.
func ClientClass(title string) string {
	return strcase.ToCamel(title) + "Client"
}

// BuildImports lists the imports a test file needs: the API client first,
// then each operation's params type from its own module, then every request
// schema type from "types". Types listed in resolved were inlined by the
// builder and are never imported.
func BuildImports(title string, records []*fixture.Record, resolved []string) []Import {
	imports := []Import{{Class: ClientClass(title), Package: "api"}}

	seen := make(map[string]bool)
	for _, r := range records {
		class := r.RequestClass + "Params"
		if r.RequestClass == "" || seen[class] {
			continue
		}
		seen[class] = true
		imports = append(imports, Import{Class: class, Package: r.RequestClass})
	}

	skip := make(map[string]bool, len(resolved))
	for _, name := range resolved {
		skip[name] = true
	}
	for _, r := range records {
		class := r.RequestSchemaClass
		if class == "" || skip[class] || seen[class] {
			continue
		}
		seen[class] = true
		imports = append(imports, Import{Class: class, Package: "types"})
	}
	return imports
}
