package cli

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/its-lang/its-cli/internal/compiler"
	"github.com/its-lang/its-cli/internal/config"
	"github.com/its-lang/its-cli/internal/watch"
	"github.com/its-lang/its-cli/pkg/allowlist"
	"github.com/its-lang/its-cli/pkg/allowlist/prompt"
	"github.com/its-lang/its-cli/pkg/template"
)

// buildResolver wires the decision engine over the store. Prompting is only
// attached when the configuration allows it and a terminal is present;
// otherwise Ask outcomes fail closed inside the resolver.
func buildResolver(settings config.Settings, store *allowlist.Store, logger *slog.Logger) *allowlist.Resolver {
	engine := allowlist.NewEngine(store, allowlist.Config{
		InteractiveAllowlist: settings.InteractiveAllowlist,
		AutoApproveCI:        settings.AutoApproveCI,
		AllowHTTP:            settings.AllowHTTP,
		BlockLocalhost:       settings.BlockLocalhost,
	})

	opts := []allowlist.ResolverOption{allowlist.WithLogger(logger)}
	if settings.InteractiveAllowlist && prompt.Interactive() {
		opts = append(opts, allowlist.WithPrompter(prompt.NewSurveyPrompter()))
	}
	return allowlist.NewResolver(engine, store, opts...)
}

// runCompile is the root command action: compile or validate the template,
// then optionally keep watching it.
func (a *app) runCompile(ctx context.Context, rawSource string) error {
	src, err := template.ParseSource(rawSource)
	if err != nil {
		return err
	}

	if a.flags.watch && a.flags.validateOnly {
		return errors.New("cli: --watch cannot be combined with --validate-only")
	}
	if a.flags.watch && src.Kind() == template.SourceKindURL {
		return errors.New("cli: --watch requires a local template file")
	}

	var vars map[string]any
	if a.flags.variables != "" {
		vars, err = loadVariables(a.flags.variables)
		if err != nil {
			return err
		}
		a.printer.Detailf("loaded %d variables from %s", len(vars), a.flags.variables)
	}

	comp := compiler.New(
		compiler.WithResolver(a.resolver.Resolve),
		compiler.WithLimits(a.settings.Limits),
		compiler.WithTimeout(a.settings.RequestTimeout),
		compiler.WithCache(!a.flags.noCache),
		compiler.WithLogger(a.logger),
	)

	if a.flags.verbose {
		a.printSecurityStatus()
	}

	// Interrupts during a prompt or a watch loop cancel cleanly; the store
	// is only written by completed, synchronous saves.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.compileOnce(ctx, comp, src, vars, false); err != nil {
		return err
	}

	if !a.flags.watch {
		return nil
	}

	a.printer.Infof("watching %s for changes... (Ctrl+C to stop)", src.Location())
	watcher := watch.New(src.Location(), watch.WithLogger(a.logger))
	return watcher.Run(ctx, func(runCtx context.Context) error {
		a.printer.Infof("template changed, recompiling")
		if err := a.compileOnce(runCtx, comp, src, vars, true); err != nil {
			return err
		}
		a.printer.Successf("watch compilation successful")
		return nil
	}, func(err error) {
		a.printer.Errorf("compilation failed: %v", err)
		a.printer.Infof("waiting for fixes... (Ctrl+C to stop)")
	})
}

// compileOnce loads the template from its source and runs a single validate
// or compile pass.
func (a *app) compileOnce(ctx context.Context, comp *compiler.Compiler, src template.Source, vars map[string]any, watchMode bool) error {
	doc, err := a.loadDocument(ctx, src)
	if err != nil {
		return err
	}

	if a.flags.validateOnly {
		return a.validate(ctx, comp, doc)
	}

	start := time.Now()
	result, err := comp.Compile(ctx, doc, vars)
	if err != nil {
		a.reportSecurity(comp.Fetches())
		return err
	}
	a.printer.Successf("template compiled successfully (%.2fs)", time.Since(start).Seconds())

	for _, warning := range result.Warnings {
		a.printer.Warnf("%s", warning)
	}
	if a.flags.verbose {
		for _, fetch := range result.Fetches {
			a.printer.Detailf("schema fetch %s allowed=%t cached=%t", fetch.URL, fetch.Allowed, fetch.Cached)
		}
	}

	if a.flags.output != "" {
		if err := writeOutput(a.flags.output, result.Prompt); err != nil {
			return err
		}
		a.printer.Infof("output written to %s", a.flags.output)
	} else {
		a.printer.Promptf("%s", result.Prompt)
	}

	if a.flags.securityReport != "" && !watchMode {
		report := compiler.Report{
			Template:       doc.Source().Location(),
			GeneratedAt:    time.Now().UTC(),
			AllowHTTP:      a.settings.AllowHTTP,
			BlockLocalhost: a.settings.BlockLocalhost,
			Interactive:    a.settings.InteractiveAllowlist,
			Strict:         a.settings.Strict,
			Fetches:        result.Fetches,
			Warnings:       result.Warnings,
		}
		if err := compiler.WriteReport(a.flags.securityReport, report); err != nil {
			return err
		}
		a.printer.Infof("security report written to %s", a.flags.securityReport)
	}
	return nil
}

func (a *app) validate(ctx context.Context, comp *compiler.Compiler, doc template.Document) error {
	result, err := comp.Validate(ctx, doc)
	if err != nil {
		return err
	}

	if result.Valid {
		a.printer.Successf("template is valid")
		for _, warning := range result.Warnings {
			a.printer.Warnf("%s", warning)
		}
		return nil
	}

	a.printer.Errorf("template validation failed")
	for _, msg := range result.Errors {
		a.printer.Plainf("  error: %s", msg)
	}
	for _, issue := range result.SecurityIssues {
		a.printer.Plainf("  security: %s", issue)
	}
	if len(result.SecurityIssues) > 0 {
		return &allowlist.DeniedError{URL: doc.Source().Location(), Rule: allowlist.RuleAsk, Err: errors.New(result.SecurityIssues[0])}
	}
	return errors.New("cli: template validation failed")
}

// loadDocument reads a local file or downloads a remote template.
func (a *app) loadDocument(ctx context.Context, src template.Source) (template.Document, error) {
	if src.Kind() == template.SourceKindURL {
		a.printer.Infof("downloading template from %s", src.Location())
		return template.Fetch(ctx, src, template.FetchOptions{
			AllowHTTP: a.settings.AllowHTTP,
			Timeout:   a.settings.RequestTimeout,
			MaxSize:   a.settings.Limits.MaxResponseSize,
		})
	}
	if !fileExists(src.Location()) {
		return template.Document{}, errors.New("cli: template file not found: " + src.Location())
	}
	return template.Read(src)
}

func (a *app) printSecurityStatus() {
	a.printer.Infof("security configuration")
	a.printer.Detailf("  http allowed: %t", a.settings.AllowHTTP)
	a.printer.Detailf("  interactive allowlist: %t", a.settings.InteractiveAllowlist)
	a.printer.Detailf("  block localhost: %t", a.settings.BlockLocalhost)
	a.printer.Detailf("  auto-approve (CI): %t", a.settings.AutoApproveCI)
	a.printer.Detailf("  request timeout: %s", a.settings.RequestTimeout)
	a.printer.Detailf("  allowlist file: %s", a.settings.AllowlistFile)
	a.printer.Detailf("  strict limits: %t", a.settings.Strict)
}

// reportSecurity surfaces denied fetches when a compile fails, so the user
// sees which URL tripped which rule.
func (a *app) reportSecurity(fetches []compiler.FetchRecord) {
	for _, fetch := range fetches {
		if !fetch.Allowed {
			a.printer.Errorf("schema fetch denied: %s (%s)", fetch.URL, fetch.Detail)
		}
	}
}
