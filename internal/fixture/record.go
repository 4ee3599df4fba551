package fixture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/spec2tests/internal/spec"
)

// NoSuccessResponse is the expected response used when an operation
// declares no 2xx response.
const NoSuccessResponse = "999"

// ErrOperationID is matched by every *OperationIDError via errors.Is.
var ErrOperationID = errors.New("operation id has no separator")

// OperationIDError reports an operationId that cannot be turned into a class
// name because it has no "_" followed by at least one character.
type OperationIDError struct {
	Path        string
	Verb        string
	OperationID string
}

func (e *OperationIDError) Error() string {
	return fmt.Sprintf("%s %s: operationId %q must contain \"_\" followed by a name", strings.ToUpper(e.Verb), e.Path, e.OperationID)
}

func (e *OperationIDError) Is(target error) bool { return target == ErrOperationID }

// ClassName converts an operationId such as "NotificationResource$V2_createBehaviorGroup"
// into "NotificationResourceV2CreateBehaviorGroup": the character after the
// first "_" is upper-cased and every "_" and "$" is dropped.
func ClassName(operationID string) (string, error) {
	i := strings.Index(operationID, "_")
	if i < 0 || i == len(operationID)-1 {
		return "", ErrOperationID
	}
	name := operationID[:i+1] + upperFirst(operationID[i+1:])
	return strings.NewReplacer("_", "", "$", "").Replace(name), nil
}

// Record is everything generated for one endpoint.
type Record struct {
	Path                string   `json:"path"`
	Verb                string   `json:"verb"`
	Summary             string   `json:"summary"`
	OperationID         string   `json:"operationId"`
	RequestClass        string   `json:"requestClass"`
	RequestSchema       string   `json:"requestSchema,omitempty"`
	RequestSchemaClass  string   `json:"requestSchemaClass,omitempty"`
	ResponseSchema      string   `json:"responseSchema,omitempty"`
	ResponseSchemaClass string   `json:"responseSchemaClass,omitempty"`
	ParameterSchema     string   `json:"parameterSchema,omitempty"`
	ParameterClass      string   `json:"parameterClass,omitempty"`
	CallArgs            string   `json:"callArgs"`
	DependentObjects    string   `json:"dependentObjects"`
	ExpectedResponse    string   `json:"expectedResponse"`
	Resolved            []string `json:"resolved,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
}

// Record builds the record for the operation at path and verb. Malformed refs
// degrade to missing arguments and are listed in Warnings. Only a missing
// operation or an unusable operationId is returned as an error.
func (b *Builder) Record(path, verb string) (*Record, error) {
	op, err := b.doc.Operation(path, verb)
	if err != nil {
		return nil, err
	}
	opID := strings.TrimSpace(op.Str("operationId"))
	class, err := ClassName(opID)
	if err != nil {
		return nil, &OperationIDError{Path: path, Verb: verb, OperationID: opID}
	}

	s := b.session(path, verb)
	rec := &Record{
		Path:         path,
		Verb:         verb,
		Summary:      strings.TrimSpace(op.Str("summary")),
		OperationID:  opID,
		RequestClass: class,
	}

	url, err := b.URLParams(path, verb)
	if err != nil {
		s.warn("", "path parameters: %v", err)
	}

	var (
		body       []Param
		includeAll bool
	)
	rb, err := b.requestBody(op)
	if err != nil {
		s.warn(op.Get("requestBody").Str("$ref"), "%v", err)
	} else {
		includeAll = rb.Bool("required")
		body = bodyParams(rb)
		if ref := schemaRef(jsonMedia(rb.Get("content")).Get("schema")); ref != "" {
			rec.RequestSchema = ref
			rec.ParameterSchema = ref
			rec.RequestSchemaClass = spec.RefName(ref)
			rec.ParameterClass = strings.TrimSuffix(rec.RequestSchemaClass, "Request") + "Params"
		}
	}

	out := s.paramString(body, url, includeAll)
	rec.CallArgs = out.Args.String()
	rec.DependentObjects = out.Constructions.String()
	rec.Resolved = out.Resolved

	code, schema := b.successResponse(op)
	if code == "" {
		code = NoSuccessResponse
		s.warn("", "no 2xx response declared, expecting %s", NoSuccessResponse)
	}
	rec.ExpectedResponse = code
	if schema != "" {
		rec.ResponseSchema = schema
		rec.ResponseSchemaClass = spec.RefName(schema)
	}
	rec.Warnings = s.warnings
	return rec, nil
}

// successResponse returns the first 2xx status declared on op together with
// the $ref of its JSON schema, if any.
func (b *Builder) successResponse(op spec.Node) (code, ref string) {
	responses := op.Get("responses")
	for _, k := range responses.Keys() {
		if len(k) != 3 || k[0] != '2' {
			continue
		}
		resp := responses.Get(k)
		if r := resp.Str("$ref"); r != "" {
			if _, target, err := b.doc.Follow(r); err == nil {
				resp = target
			}
		}
		return k, jsonMedia(resp.Get("content")).Get("schema").Str("$ref")
	}
	return "", ""
}

// Run is the result of building every endpoint of a document.
type Run struct {
	Title   string    `json:"title"`
	Version string    `json:"version"`
	Records []*Record `json:"records"`
	// Resolved merges every record's inlined type names, first seen first.
	Resolved []string `json:"resolved"`
}

// Build creates a record per endpoint in the given order. An endpoint that
// fails is logged and skipped; its error is joined into the returned error
// while the records of every other endpoint are still returned.
func (b *Builder) Build(endpoints []spec.Endpoint) (*Run, error) {
	title, version := b.doc.Info()
	run := &Run{Title: title, Version: version, Resolved: []string{}}
	seen := make(map[string]bool)
	var errs []error
	for _, ep := range endpoints {
		rec, err := b.Record(ep.Path, string(ep.Method))
		if err != nil {
			b.log.Error("endpoint skipped", "path", ep.Path, "verb", ep.Method, "error", err)
			errs = append(errs, err)
			continue
		}
		b.log.Debug("endpoint built", "path", ep.Path, "verb", ep.Method, "warnings", len(rec.Warnings))
		run.Records = append(run.Records, rec)
		for _, r := range rec.Resolved {
			if !seen[r] {
				seen[r] = true
				run.Resolved = append(run.Resolved, r)
			}
		}
	}
	return run, errors.Join(errs...)
}
