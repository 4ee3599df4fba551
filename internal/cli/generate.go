package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/spec2tests/internal/emitter/tsemitter"
	"github.com/mark3labs/spec2tests/internal/fixture"
	genspec "github.com/mark3labs/spec2tests/internal/spec"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input       string
	Out         string
	Template    string
	RecordsOut  string
	Port        int
	UUIDSchemas []string
	CamelFields bool
	IncludeTags []string
	ExcludeTags []string
	Methods     []string
	Paths       []string
	Strict      bool
	ConfigPath  string
	DryRun      bool
	Force       bool
	Verbose     bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Port:        tsemitter.DefaultPort,
		UUIDSchemas: append([]string(nil), fixture.DefaultUUIDSchemas...),
	}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate TypeScript client tests from an OpenAPI/Swagger document",
		Long: "Generate one TypeScript test per operation of an OpenAPI/Swagger document. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  spec2tests generate --input https://example.com/openapi.json --out notifications.test.ts
  spec2tests generate --input spec.yaml --methods put,post --paths '^/notifications/'
  spec2tests --config spec2tests.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the Swagger/OpenAPI document")
	flags.String("out", "", "Test file to write (stdout when omitted)")
	flags.String("template", "", "Go text/template used instead of the built-in TypeScript template")
	flags.String("records-out", "", "Also write the generated records as JSON to this file")
	flags.Int("port", tsemitter.DefaultPort, "Port the generated tests point their client at")
	flags.StringSlice("uuid-schemas", fixture.DefaultUUIDSchemas, "Schema names rendered as freshly generated identifiers")
	flags.Bool("camel-fields", false, "Render object field names in lowerCamelCase")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include operations using these HTTP methods")
	flags.StringSlice("paths", nil, "Only include paths matching one of these regular expressions")
	flags.Bool("strict", false, "Fail when the document does not pass OpenAPI validation")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"input", &cfg.Input},
		{"out", &cfg.Out},
		{"template", &cfg.Template},
		{"records-out", &cfg.RecordsOut},
	}
	for _, f := range strs {
		if !flags.Changed(f.name) {
			continue
		}
		value, err := flags.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(value)
	}

	lists := []struct {
		name string
		dst  *[]string
	}{
		{"uuid-schemas", &cfg.UUIDSchemas},
		{"include-tags", &cfg.IncludeTags},
		{"exclude-tags", &cfg.ExcludeTags},
		{"methods", &cfg.Methods},
		{"paths", &cfg.Paths},
	}
	for _, f := range lists {
		if !flags.Changed(f.name) {
			continue
		}
		value, err := flags.GetStringSlice(f.name)
		if err != nil {
			return err
		}
		*f.dst = sanitizeTags(value)
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"camel-fields", &cfg.CamelFields},
		{"strict", &cfg.Strict},
		{"dry-run", &cfg.DryRun},
		{"force", &cfg.Force},
		{"verbose", &cfg.Verbose},
	}
	for _, f := range bools {
		if !flags.Changed(f.name) {
			continue
		}
		value, err := flags.GetBool(f.name)
		if err != nil {
			return err
		}
		*f.dst = value
	}

	if flags.Changed("port") {
		value, err := flags.GetInt("port")
		if err != nil {
			return err
		}
		cfg.Port = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	c.Template = strings.TrimSpace(c.Template)
	c.RecordsOut = strings.TrimSpace(c.RecordsOut)
	c.UUIDSchemas = sanitizeTags(c.UUIDSchemas)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Paths = sanitizeTags(c.Paths)
	methods := sanitizeTags(c.Methods)
	for i, m := range methods {
		methods[i] = strings.ToLower(m)
	}
	c.Methods = sanitizeTags(methods)
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag or config file)")
	}

	if c.Port < 1 || c.Port > 65535 {
		return newUsageError(fmt.Sprintf("generate: --port %d is out of range (1-65535)", c.Port))
	}

	for _, m := range c.Methods {
		if _, ok := genspec.ParseMethod(m); !ok {
			return newUsageError(fmt.Sprintf("generate: unsupported --methods value %q (allowed: get, post, put, delete, patch, head, options, trace)", m))
		}
	}

	for _, p := range c.Paths {
		if _, err := regexp.Compile(p); err != nil {
			return newUsageError(fmt.Sprintf("generate: invalid --paths pattern %q: %v", p, err))
		}
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}

	if c.Out != "" && c.Out == c.RecordsOut {
		return newUsageError("generate: --out and --records-out must name different files")
	}

	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	logger := newLogger(os.Stderr, cfg.Verbose)

	// 1) Load the spec (file or http/https URL) with validation and conversion
	doc, err := genspec.Load(ctx, cfg.Input, genspec.WithStrict(cfg.Strict), genspec.WithLogger(logger))
	if err != nil {
		// Map structured spec errors into friendly messages
		var se *genspec.SpecError
		if errors.As(err, &se) {
			msg := fmt.Sprintf("spec: %s", se.Message)
			if se.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
			}
			if se.JSONPointer != "" {
				msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
			}
			return newUsageError(msg)
		}
		return err
	}

	// 2) Enumerate operations with the requested filters
	methods := make([]genspec.HttpMethod, 0, len(cfg.Methods))
	for _, m := range cfg.Methods {
		if hm, ok := genspec.ParseMethod(m); ok {
			methods = append(methods, hm)
		}
	}
	endpoints := genspec.Endpoints(doc,
		genspec.WithIncludeTags(cfg.IncludeTags),
		genspec.WithExcludeTags(cfg.ExcludeTags),
		genspec.WithMethods(methods),
		genspec.WithPathPatterns(cfg.Paths),
	)
	if len(endpoints) == 0 {
		logger.Warn("no operations matched", "input", cfg.Input)
	}

	// 3) Build one record per operation; failed operations are reported after output
	builder := fixture.NewBuilder(doc,
		fixture.WithUUIDSchemas(cfg.UUIDSchemas...),
		fixture.WithCamelFields(cfg.CamelFields),
		fixture.WithLogger(logger),
	)
	run, buildErr := builder.Build(endpoints)
	logWarnings(logger, run)

	// 4) Render the test file
	res, err := tsemitter.Emit(ctx, run, tsemitter.Options{
		OutFile:      cfg.Out,
		RecordsFile:  cfg.RecordsOut,
		TemplatePath: cfg.Template,
		Port:         cfg.Port,
		Force:        cfg.Force,
		DryRun:       cfg.DryRun,
	})
	if err != nil {
		return wrapOutputError(err, cfg.Out)
	}
	if cfg.DryRun {
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, p.RelPath)
		}
		printPlan(len(run.Records), paths)
	}
	logger.Debug("generated tests", "operations", len(run.Records), "imports", len(res.Imports))

	if buildErr != nil {
		return fmt.Errorf("generate: %d of %d operations skipped: %w", len(endpoints)-len(run.Records), len(endpoints), buildErr)
	}
	return nil
}

func logWarnings(logger *slog.Logger, run *fixture.Run) {
	n := 0
	for _, r := range run.Records {
		n += len(r.Warnings)
	}
	if n > 0 {
		logger.Info("some values could not be synthesized", "warnings", n, "operations", len(run.Records))
	}
}

func printPlan(tests int, paths []string) {
	fmt.Fprintf(os.Stdout, "Planned %d tests, %d files:\n", tests, len(paths))
	for _, p := range paths {
		abs := p
		if ap, err := filepath.Abs(p); err == nil {
			abs = ap
		}
		fmt.Fprintf(os.Stdout, "- %s\n", abs)
	}
}

func wrapOutputError(err error, out string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "already exists") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", out, msg))
	}
	return err
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		if err := applyConfigField(cfg, normalizeKey(key), value); err != nil {
			if errors.Is(err, errUnknownField) {
				return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
			}
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}

	return nil
}

var errUnknownField = errors.New("unknown field")

func applyConfigField(cfg *GenerateConfig, key string, value any) error {
	var err error
	switch key {
	case "input":
		cfg.Input, err = valueAsString(value)
	case "out":
		cfg.Out, err = valueAsString(value)
	case "template":
		cfg.Template, err = valueAsString(value)
	case "recordsout":
		cfg.RecordsOut, err = valueAsString(value)
	case "port":
		cfg.Port, err = valueAsInt(value)
	case "uuidschemas":
		cfg.UUIDSchemas, err = valueAsStringSlice(value)
	case "camelfields":
		cfg.CamelFields, err = valueAsBool(value)
	case "includetags":
		cfg.IncludeTags, err = valueAsStringSlice(value)
	case "excludetags":
		cfg.ExcludeTags, err = valueAsStringSlice(value)
	case "methods":
		cfg.Methods, err = valueAsStringSlice(value)
	case "paths":
		cfg.Paths, err = valueAsStringSlice(value)
	case "strict":
		cfg.Strict, err = valueAsBool(value)
	case "dryrun":
		cfg.DryRun, err = valueAsBool(value)
	case "force":
		cfg.Force, err = valueAsBool(value)
	case "verbose":
		cfg.Verbose, err = valueAsBool(value)
	default:
		return errUnknownField
	}
	return err
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid integer value %q", val)
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
