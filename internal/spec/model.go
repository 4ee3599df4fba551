package spec

import "strings"

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

var httpMethods = map[HttpMethod]struct{}{
	GET: {}, POST: {}, PUT: {}, DELETE: {}, PATCH: {}, HEAD: {}, OPTIONS: {}, TRACE: {},
}

// ParseMethod lower-cases s and reports whether it names an HTTP method.
func ParseMethod(s string) (HttpMethod, bool) {
	m := HttpMethod(strings.ToLower(strings.TrimSpace(s)))
	_, ok := httpMethods[m]
	return m, ok
}

// Endpoint identifies one operation of the document. Endpoints are listed in
// the order paths and verbs are declared.
type Endpoint struct {
	Path        string
	Method      HttpMethod
	OperationID string
	Summary     string
	Tags        []string
}

// ID is "METHOD path", used in log lines and error messages.
func (e Endpoint) ID() string {
	return strings.ToUpper(string(e.Method)) + " " + e.Path
}
