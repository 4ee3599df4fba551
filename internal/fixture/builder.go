// Package fixture turns endpoints of a loaded specification into placeholder
// call arguments and object constructions for generated tests.
package fixture

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/iancoleman/strcase"

	"github.com/mark3labs/spec2tests/internal/spec"
)

// DefaultUUIDSchemas are the schema names whose values are rendered as
// freshly generated identifiers.
var DefaultUUIDSchemas = []string{"UUID"}

// Builder produces endpoint records from one document. It holds no state
// between calls apart from its configuration, so it may be reused.
type Builder struct {
	doc         *spec.Document
	newID       func() string
	uuidSchemas map[string]struct{}
	camelFields bool
	log         *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithIDGenerator replaces uuid.NewString as the identifier source.
func WithIDGenerator(fn func() string) Option {
	return func(b *Builder) {
		if fn != nil {
			b.newID = fn
		}
	}
}

// WithUUIDSchemas sets the schema names treated as identifiers. Names are
// matched against the last segment of a ref.
func WithUUIDSchemas(names ...string) Option {
	return func(b *Builder) {
		b.uuidSchemas = make(map[string]struct{}, len(names))
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				b.uuidSchemas[n] = struct{}{}
			}
		}
	}
}

// WithCamelFields renders object field names in lowerCamelCase instead of as
// declared.
func WithCamelFields(on bool) Option { return func(b *Builder) { b.camelFields = on } }

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBuilder returns a Builder over doc.
func NewBuilder(doc *spec.Document, opts ...Option) *Builder {
	b := &Builder{
		doc:   doc,
		newID: uuid.NewString,
		log:   slog.New(slog.DiscardHandler),
	}
	WithUUIDSchemas(DefaultUUIDSchemas...)(b)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) uuidLiteral() Literal { return Quote(b.newID()) }

// isUUID reports whether ref, or the schema it finally points at, is one of
// the identifier schemas.
func (b *Builder) isUUID(ref string) bool {
	if _, ok := b.uuidSchemas[spec.RefName(ref)]; ok {
		return true
	}
	final, _, err := b.doc.Follow(ref)
	if err != nil {
		return false
	}
	_, ok := b.uuidSchemas[spec.RefName(final)]
	return ok
}

func (b *Builder) fieldName(name string) string {
	if b.camelFields {
		return strcase.ToLowerCamel(name)
	}
	return name
}

// session carries the per-endpoint state of one resolution: local variable
// names in use, refs currently under construction and collected output.
type session struct {
	b          *Builder
	path, verb string
	used       map[string]bool
	active     map[string]bool
	out        Constructions
	resolved   []string
	warnings   []string
}

func (b *Builder) session(path, verb string) *session {
	return &session{
		b:      b,
		path:   path,
		verb:   verb,
		used:   make(map[string]bool),
		active: make(map[string]bool),
	}
}

func (s *session) warn(ref string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if ref != "" {
		s.warnings = append(s.warnings, ref+": "+msg)
	} else {
		s.warnings = append(s.warnings, msg)
	}
	s.b.log.Warn(msg, "path", s.path, "verb", s.verb, "ref", ref)
}

// varName derives a local variable name from a type name, numbering repeats
// within the endpoint: bundle, bundle2, bundle3.
func (s *session) varName(typeName string) string {
	base := lowerFirst(typeName)
	if base == "" {
		base = "value"
	}
	name := base
	for i := 2; s.used[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	s.used[name] = true
	return name
}

func (s *session) resolve(typeName string) {
	for _, r := range s.resolved {
		if r == typeName {
			return
		}
	}
	s.resolved = append(s.resolved, typeName)
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
