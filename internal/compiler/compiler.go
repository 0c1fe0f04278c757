// Package compiler is the invocation shim over the external compilation
// stack: JSON Schema validation (santhosh-tekuri/jsonschema) and template
// expression evaluation (pongo2). Its one security duty is routing every
// remote schema URL through the allowlist resolver before it is fetched.
package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/its-lang/its-cli/internal/config"
	"github.com/its-lang/its-cli/pkg/template"
)

// Option customises the compiler.
type Option func(*Compiler)

// WithResolver injects the allowlist trust callback consulted before any
// remote schema fetch.
func WithResolver(resolve ResolveFunc) Option {
	return func(c *Compiler) {
		c.resolve = resolve
	}
}

// WithLimits overrides the processing limits.
func WithLimits(limits config.Limits) Option {
	return func(c *Compiler) {
		c.limits = limits
	}
}

// WithHTTPClient overrides the client used for schema fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Compiler) {
		c.client = client
	}
}

// WithTimeout bounds each schema fetch.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Compiler) {
		c.timeout = timeout
	}
}

// WithCache toggles the in-process schema cache. Watch mode relies on it to
// avoid refetching unchanged schemas on every recompile.
func WithCache(enabled bool) Option {
	return func(c *Compiler) {
		c.cacheEnabled = enabled
	}
}

// WithLogger injects the diagnostics logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Compiler turns a template document plus variables into a prompt.
type Compiler struct {
	resolve      ResolveFunc
	client       *http.Client
	timeout      time.Duration
	limits       config.Limits
	cacheEnabled bool
	logger       *slog.Logger

	gate *schemaGate
}

// New constructs a Compiler from options.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		limits:       config.DefaultLimits(),
		timeout:      30 * time.Second,
		cacheEnabled: true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gate = newSchemaGate(c.resolve, c.client, c.timeout, c.limits.MaxResponseSize, c.cacheEnabled)
	return c
}

// Result is the output of a successful compilation.
type Result struct {
	Prompt   string
	Warnings []string
	Fetches  []FetchRecord
}

// ValidationResult reports template validity without producing a prompt.
type ValidationResult struct {
	Valid          bool
	Errors         []string
	Warnings       []string
	SecurityIssues []string
}

// templateFile is the JSON shape of a template document.
type templateFile struct {
	Schema                 string                     `json:"$schema"`
	Version                string                     `json:"version"`
	Extends                []string                   `json:"extends"`
	CustomInstructionTypes map[string]instructionType `json:"customInstructionTypes"`
	Variables              map[string]any             `json:"variables"`
	Content                []json.RawMessage          `json:"content"`
}

// instructionType describes how a placeholder is rendered into prompt text.
type instructionType struct {
	Template    string `json:"template"`
	Description string `json:"description"`
}

type contentElement struct {
	Type            string            `json:"type"`
	Text            string            `json:"text"`
	InstructionType string            `json:"instructionType"`
	Config          map[string]any    `json:"config"`
	Condition       string            `json:"condition"`
	Then            []json.RawMessage `json:"then"`
	Else            []json.RawMessage `json:"else"`
}

// Compile validates the document, resolves its schema references through the
// trust gate, and renders the content into a prompt. Variables passed by the
// caller override the template's declared defaults.
func (c *Compiler) Compile(ctx context.Context, doc template.Document, vars map[string]any) (Result, error) {
	c.gate.resetRun()

	parsed, err := c.parse(doc)
	if err != nil {
		return Result{}, err
	}

	merged := mergeVariables(parsed.Variables, vars)

	types, err := c.loadInstructionTypes(ctx, parsed)
	if err != nil {
		return Result{}, c.preferDenial(err)
	}

	if err := c.validateSchema(ctx, doc, parsed); err != nil {
		return Result{}, c.preferDenial(err)
	}

	var out strings.Builder
	count := 0
	if err := c.renderContent(&out, parsed.Content, merged, types, 0, &count); err != nil {
		return Result{}, err
	}

	result := Result{
		Prompt:  out.String(),
		Fetches: c.gate.fetches(),
	}
	for name := range parsed.CustomInstructionTypes {
		if _, shadowed := builtinTypes[name]; shadowed {
			result.Warnings = append(result.Warnings, fmt.Sprintf("custom instruction type %q overrides a built-in type", name))
		}
	}
	return result, nil
}

// Validate checks the document without rendering a prompt. Trust denials are
// reported as security issues rather than hard failures so a validation run
// can list every problem at once.
func (c *Compiler) Validate(ctx context.Context, doc template.Document) (ValidationResult, error) {
	c.gate.resetRun()
	out := ValidationResult{Valid: true}

	parsed, err := c.parse(doc)
	if err != nil {
		return ValidationResult{Errors: []string{err.Error()}}, nil
	}

	if parsed.Version == "" {
		out.Warnings = append(out.Warnings, "template does not declare a version")
	}
	if len(parsed.Content) == 0 {
		out.Valid = false
		out.Errors = append(out.Errors, "template has no content elements")
	}

	if _, err := c.loadInstructionTypes(ctx, parsed); err != nil {
		out.Valid = false
		out.SecurityIssues = append(out.SecurityIssues, err.Error())
	}
	if err := c.validateSchema(ctx, doc, parsed); err != nil {
		out.Valid = false
		if denial := c.gate.denial(); denial != nil {
			out.SecurityIssues = append(out.SecurityIssues, denial.Error())
		} else {
			out.Errors = append(out.Errors, err.Error())
		}
	}
	return out, nil
}

// Fetches returns the gate consultations recorded during the last run.
func (c *Compiler) Fetches() []FetchRecord {
	return c.gate.fetches()
}

func (c *Compiler) parse(doc template.Document) (*templateFile, error) {
	raw := doc.Raw()
	if c.limits.MaxTemplateSize > 0 && int64(len(raw)) > c.limits.MaxTemplateSize {
		return nil, fmt.Errorf("compiler: template exceeds %d bytes", c.limits.MaxTemplateSize)
	}

	var parsed templateFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("compiler: parse template %s: %w", doc.Source().Location(), err)
	}
	return &parsed, nil
}

// validateSchema compiles the template's $schema reference, fetching it (and
// anything it references) through the trust gate, then validates the raw
// document against it.
func (c *Compiler) validateSchema(ctx context.Context, doc template.Document, parsed *templateFile) error {
	if parsed.Schema == "" {
		return nil
	}

	sc := jsonschema.NewCompiler()
	sc.LoadURL = c.gate.loadURL(ctx)

	schema, err := sc.Compile(parsed.Schema)
	if err != nil {
		return fmt.Errorf("compiler: compile schema %s: %w", parsed.Schema, err)
	}

	var value any
	if err := json.Unmarshal(doc.Raw(), &value); err != nil {
		return fmt.Errorf("compiler: decode template for validation: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("compiler: template does not satisfy %s: %w", parsed.Schema, err)
	}
	return nil
}

// loadInstructionTypes merges built-ins, extension documents fetched through
// the trust gate, and the template's own custom types. Later sources win.
func (c *Compiler) loadInstructionTypes(ctx context.Context, parsed *templateFile) (map[string]instructionType, error) {
	types := make(map[string]instructionType, len(builtinTypes))
	for name, t := range builtinTypes {
		types[name] = t
	}

	for _, url := range parsed.Extends {
		data, err := c.gate.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		var ext struct {
			InstructionTypes map[string]instructionType `json:"instructionTypes"`
		}
		if err := json.Unmarshal(data, &ext); err != nil {
			return nil, fmt.Errorf("compiler: parse extension %s: %w", url, err)
		}
		for name, t := range ext.InstructionTypes {
			types[name] = t
		}
	}

	for name, t := range parsed.CustomInstructionTypes {
		types[name] = t
	}
	return types, nil
}

func (c *Compiler) renderContent(out *strings.Builder, elements []json.RawMessage, vars map[string]any, types map[string]instructionType, depth int, count *int) error {
	if c.limits.MaxNestingDepth > 0 && depth > c.limits.MaxNestingDepth {
		return fmt.Errorf("compiler: content nesting exceeds depth %d", c.limits.MaxNestingDepth)
	}

	for _, raw := range elements {
		*count++
		if c.limits.MaxContentElements > 0 && *count > c.limits.MaxContentElements {
			return fmt.Errorf("compiler: template exceeds %d content elements", c.limits.MaxContentElements)
		}

		var el contentElement
		if err := json.Unmarshal(raw, &el); err != nil {
			return fmt.Errorf("compiler: parse content element %d: %w", *count, err)
		}

		switch el.Type {
		case "text":
			rendered, err := renderText(el.Text, vars)
			if err != nil {
				return err
			}
			out.WriteString(rendered)
		case "placeholder":
			rendered, err := renderPlaceholder(el, types, vars)
			if err != nil {
				return err
			}
			out.WriteString(rendered)
		case "conditional":
			keep, err := evalCondition(el.Condition, vars)
			if err != nil {
				return err
			}
			branch := el.Then
			if !keep {
				branch = el.Else
			}
			if err := c.renderContent(out, branch, vars, types, depth+1, count); err != nil {
				return err
			}
		default:
			return fmt.Errorf("compiler: unknown content element type %q", el.Type)
		}
	}
	return nil
}

// preferDenial substitutes the typed trust denial for errors the schema
// compiler wrapped in its own types, so callers can classify them.
func (c *Compiler) preferDenial(err error) error {
	if denial := c.gate.denial(); denial != nil {
		return denial
	}
	return err
}

func mergeVariables(defaults, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
