// Package cli assembles the cobra command tree: template compilation as the
// root action plus the allowlist administration commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	itscli "github.com/its-lang/its-cli"
	"github.com/its-lang/its-cli/internal/config"
	"github.com/its-lang/its-cli/pkg/allowlist"
)

// Exit codes. Security denials are distinguishable from plain failures so
// scripts can react to them.
const (
	ExitOK         = 0
	ExitValidation = 1
	ExitSecurity   = 2
	ExitIO         = 3
)

// compileFlags holds the root command's flag values.
type compileFlags struct {
	output               string
	variables            string
	watch                bool
	validateOnly         bool
	verbose              bool
	strict               bool
	noCache              bool
	timeout              time.Duration
	allowHTTP            bool
	interactiveAllowlist bool
	securityReport       string
	schemaVersion        bool
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		return exitCode(err)
	}
	return ExitOK
}

func newRootCmd() *cobra.Command {
	flags := &compileFlags{}

	root := &cobra.Command{
		Use:   "its-cli [template]",
		Short: "Compile instruction templates into AI prompts with schema trust controls",
		Long: `its-cli compiles instruction templates into AI prompts.

The template argument may be a local file or an https URL. Remote schemas
referenced by a template are only fetched once their URL is trusted: either
from the persisted allowlist, an interactive approval, or CI auto-approval.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       itscli.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.schemaVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "its-cli v%s\nSupported template specification version: %s\n",
					itscli.Version, itscli.SupportedSchemaVersion)
				return nil
			}
			if len(args) == 0 {
				return errors.New("cli: a template file or URL is required (see --help)")
			}
			app, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			return app.runCompile(cmd.Context(), args[0])
		},
	}

	root.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default: stdout)")
	root.Flags().StringVar(&flags.variables, "variables", "", "JSON file with variable values")
	root.Flags().BoolVarP(&flags.watch, "watch", "w", false, "watch the template file and recompile on change")
	root.Flags().BoolVar(&flags.validateOnly, "validate-only", false, "validate the template without compiling")
	root.Flags().BoolVar(&flags.verbose, "verbose", false, "show detailed output including security information")
	root.Flags().BoolVar(&flags.strict, "strict", false, "enable strict processing limits")
	root.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable the in-process schema cache")
	root.Flags().DurationVar(&flags.timeout, "timeout", 0, "network timeout for schema fetches (default 30s)")
	root.Flags().BoolVar(&flags.allowHTTP, "allow-http", false, "allow plain http URLs (not recommended)")
	root.Flags().BoolVar(&flags.interactiveAllowlist, "interactive-allowlist", true, "prompt interactively for untrusted schema URLs")
	root.Flags().StringVar(&flags.securityReport, "security-report", "", "write a JSON security report to the given file")
	root.Flags().BoolVar(&flags.schemaVersion, "supported-schema-version", false, "print the supported template specification version and exit")

	root.AddCommand(newAllowlistCmd())

	return root
}

// app carries the resolved dependencies for one invocation.
type app struct {
	flags    *compileFlags
	printer  *Printer
	logger   *slog.Logger
	settings config.Settings
	store    *allowlist.Store
	resolver *allowlist.Resolver
}

// newApp resolves configuration (environment, project file, flags) and opens
// the allowlist store.
func newApp(cmd *cobra.Command, flags *compileFlags) (*app, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	file, err := config.LoadFile(config.FileName)
	if err != nil {
		return nil, err
	}

	// Project file values fill in flags the user did not give.
	if flags.output == "" {
		flags.output = file.Output
	}
	if flags.variables == "" {
		flags.variables = file.Variables
	}

	overrides := config.Overrides{Strict: flags.strict}
	if cmd.Flags().Changed("allow-http") {
		overrides.AllowHTTP = &flags.allowHTTP
	}
	if cmd.Flags().Changed("interactive-allowlist") {
		overrides.InteractiveAllowlist = &flags.interactiveAllowlist
	}
	if cmd.Flags().Changed("timeout") {
		overrides.Timeout = &flags.timeout
	}
	settings := config.Resolve(env, file, overrides)

	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	store, err := allowlist.Load(settings.AllowlistFile)
	if err != nil {
		return nil, err
	}

	return &app{
		flags:    flags,
		printer:  NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), flags.verbose),
		logger:   logger,
		settings: settings,
		store:    store,
		resolver: buildResolver(settings, store, logger),
	}, nil
}

// exitCode maps an error to the process exit code: security denials are 2,
// store and filesystem failures are 3, everything else is 1.
func exitCode(err error) int {
	var denied *allowlist.DeniedError
	var insecure *allowlist.InsecureSchemeError
	if errors.As(err, &denied) || errors.As(err, &insecure) {
		return ExitSecurity
	}

	var corrupt *allowlist.CorruptError
	var perm *allowlist.PermissionError
	var pathErr *fs.PathError
	if errors.As(err, &corrupt) || errors.As(err, &perm) || errors.As(err, &pathErr) ||
		errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
		return ExitIO
	}

	return ExitValidation
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
