package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/spec2tests/internal/emitter/tsemitter"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath   string
	TemplatePath string
	Force        bool
	Verbose      bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample spec2tests configuration file",
		Long: "Scaffold a commented spec2tests configuration file that documents available options. " +
			"With --template, the built-in test template is written as well so it can be customized.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			tmpl, err := cmd.Flags().GetString("template")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath:   out,
				TemplatePath: tmpl,
				Force:        force,
				Verbose:      verbose,
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("out", "spec2tests.yaml", "Where to write the sample config file")
	cmd.Flags().String("template", "", "Also write the built-in test template to this path")
	cmd.Flags().Bool("force", false, "Overwrite the target files if they already exist")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = "spec2tests.yaml"
	}
	if err := writeScaffold(out, strings.TrimSpace(sampleConfigYAML)+"\n", cfg.Force); err != nil {
		return err
	}

	if tmpl := strings.TrimSpace(cfg.TemplatePath); tmpl != "" {
		if err := writeScaffold(tmpl, tsemitter.DefaultTemplate, cfg.Force); err != nil {
			return err
		}
	}
	return nil
}

func writeScaffold(path, content string, force bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
	}

	// Atomic write via temp + rename
	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
	}
	fmt.Fprintf(os.Stdout, "Wrote %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# spec2tests configuration (YAML)
# All fields are optional. Command-line flags override config values.

# Path or URL to the Swagger/OpenAPI document (http/https or local file).
# input: ./openapi.json

# Test file to write. The tests are printed to stdout when omitted.
# out: ./notifications.test.ts

# Custom Go text/template for the test file (see "spec2tests init --template").
# template: ./test.ts.tmpl

# Also dump every generated record as JSON.
# recordsOut: ./records.json

# Port the generated client connects to.
# port: 3002

# Schemas whose values are rendered as fresh UUID strings.
# uuidSchemas: [UUID]

# Render object field names in lowerCamelCase (display_name -> displayName).
# camelFields: false

# Only include operations with these tags (comma-separated or list).
# includeTags: [public,read]

# Exclude operations with these tags (comma-separated or list).
# excludeTags: [internal]

# Only include operations using these HTTP methods.
# methods: [get,post,put]

# Only include paths matching one of these regular expressions.
# paths: ['^/notifications/']

# Fail when the document does not pass OpenAPI validation.
# strict: false

# Preview planned outputs without writing files.
# dryRun: false

# Overwrite existing output files.
# force: false

# Enable verbose logging.
# verbose: false
`
