package tsemitter

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/goccy/go-json"
	"github.com/iancoleman/strcase"

	"github.com/mark3labs/spec2tests/internal/fixture"
)

// DefaultPort is the port the generated tests point their client at.
const DefaultPort = 3002

// DefaultTemplate renders one jest test per record.
//
//go:embed templates/test.ts.tmpl
var DefaultTemplate string

// Options controls how the TypeScript test file is rendered and written.
type Options struct {
	OutFile      string    // test source path; written to Stdout when empty
	RecordsFile  string    // optional JSON dump of the run
	TemplatePath string    // overrides the embedded template
	Port         int       // defaults to DefaultPort
	Force        bool      // overwrite existing files
	DryRun       bool      // don't write, only plan
	Stdout       io.Writer // defaults to os.Stdout
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files together with the rendered source.
type Result struct {
	Planned []PlannedFile
	Imports []Import
	Source  []byte
}

// TemplateData is what templates are executed against.
type TemplateData struct {
	APITitle       string
	APITitleLower  string
	APIVersion     string
	ResourcePrefix string
	ClientClass    string
	ClientVar      string
	Port           int
	Imports        []Import
	Tests          []TestData
}

// TestData is one generated test case.
type TestData struct {
	Summary              string
	Operation            string
	Params               string
	ParamValues          string
	DependentParamValues string
	ExpectedResponse     string
	Warnings             []string
}

// NewTemplateData derives the render data for a run.
func NewTemplateData(run *fixture.Run, port int) TemplateData {
	if port <= 0 {
		port = DefaultPort
	}
	data := TemplateData{
		APITitle:       run.Title,
		APITitleLower:  strings.ToLower(run.Title),
		APIVersion:     run.Version,
		ResourcePrefix: ResourcePrefix(run.Title, run.Version),
		ClientClass:    ClientClass(run.Title),
		ClientVar:      strcase.ToLowerCamel(run.Title) + "Client",
		Port:           port,
		Imports:        BuildImports(run.Title, run.Records, run.Resolved),
	}
	for _, r := range run.Records {
		data.Tests = append(data.Tests, TestData{
			Summary:              r.Summary,
			Operation:            lowerFirst(r.RequestClass),
			Params:               r.RequestClass + "Params",
			ParamValues:          r.CallArgs,
			DependentParamValues: r.DependentObjects,
			ExpectedResponse:     r.ExpectedResponse,
			Warnings:             r.Warnings,
		})
	}
	return data
}

var funcs = template.FuncMap{
	"indent": indent,
	"lower":  strings.ToLower,
	"camel":  strcase.ToCamel,
}

// Emit renders the test file for run and writes it, plus the optional
// records dump, unless DryRun is set.
func Emit(ctx context.Context, run *fixture.Run, opts Options) (*Result, error) {
	if run == nil {
		return nil, fmt.Errorf("tsemitter: nil Run")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmpl, err := loadTemplate(opts.TemplatePath)
	if err != nil {
		return nil, err
	}
	data := NewTemplateData(run, opts.Port)
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("tsemitter: render template: %w", err)
	}
	source := buf.Bytes()

	files := map[string][]byte{}
	if out := strings.TrimSpace(opts.OutFile); out != "" {
		files[out] = source
	}
	if rec := strings.TrimSpace(opts.RecordsFile); rec != "" {
		recordsJSON, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal records: %w", err)
		}
		files[rec] = append(recordsJSON, '\n')
	}

	// Plan in deterministic order
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	planned := make([]PlannedFile, 0, len(paths))
	for _, p := range paths {
		planned = append(planned, PlannedFile{RelPath: filepath.ToSlash(p), Size: len(files[p]), Mode: 0o644})
	}

	if !opts.DryRun {
		if err := writeFiles(paths, files, opts.Force); err != nil {
			return nil, err
		}
		if strings.TrimSpace(opts.OutFile) == "" {
			w := opts.Stdout
			if w == nil {
				w = os.Stdout
			}
			if _, err := w.Write(source); err != nil {
				return nil, fmt.Errorf("write source: %w", err)
			}
		}
	}

	return &Result{Planned: planned, Imports: data.Imports, Source: source}, nil
}

func loadTemplate(path string) (*template.Template, error) {
	text, name := DefaultTemplate, "test.ts.tmpl"
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("tsemitter: read template: %w", err)
		}
		text, name = string(raw), filepath.Base(path)
	}
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("tsemitter: parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// writeFiles refuses to replace any existing file unless force is set, then
// writes every file atomically.
func writeFiles(paths []string, files map[string][]byte, force bool) error {
	if !force {
		for _, p := range paths {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("tsemitter: output file %q already exists (use --force to overwrite)", p)
			}
		}
	}
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		// atomic write via temp file + rename
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := os.WriteFile(tmp, files[p], 0o644); err != nil {
			return fmt.Errorf("write temp %s: %w", p, err)
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", p, err)
		}
	}
	return nil
}

func indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
