package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/its-lang/its-cli/internal/config"
	"github.com/its-lang/its-cli/pkg/allowlist"
)

// adminApp carries the dependencies shared by every allowlist subcommand.
type adminApp struct {
	printer  *Printer
	settings config.Settings
	store    *allowlist.Store
}

// newAdminApp resolves configuration and opens the store, without any of the
// compile-path flag handling.
func newAdminApp(cmd *cobra.Command) (*adminApp, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	file, err := config.LoadFile(config.FileName)
	if err != nil {
		return nil, err
	}
	settings := config.Resolve(env, file, config.Overrides{})

	store, err := allowlist.Load(settings.AllowlistFile)
	if err != nil {
		return nil, err
	}

	return &adminApp{
		printer:  NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), false),
		settings: settings,
		store:    store,
	}, nil
}

func newAllowlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowlist",
		Short: "Manage the schema URL allowlist",
		Long: `Manage the persisted allowlist of trusted schema URLs.

Entries added here are consulted before any remote schema is fetched during
compilation. Session approvals made at the interactive prompt are not
persisted and do not appear in exports.`,
	}

	cmd.AddCommand(
		newAllowlistStatusCmd(),
		newAllowlistAddCmd(),
		newAllowlistRemoveCmd(),
		newAllowlistExportCmd(),
		newAllowlistImportCmd(),
		newAllowlistCleanupCmd(),
	)
	return cmd
}

func newAllowlistStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the allowlist location and its entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAdminApp(cmd)
			if err != nil {
				return err
			}

			summary := a.store.Summary()
			a.printer.Infof("allowlist: %s", a.store.Path())
			a.printer.Plainf("  permanent allows: %d", summary.Permanent)
			a.printer.Plainf("  session allows:   %d", summary.Session)
			a.printer.Plainf("  denials:          %d", summary.Denied)

			if len(summary.Entries) == 0 {
				a.printer.Plainf("  no entries")
				return nil
			}
			for _, e := range summary.Entries {
				a.printer.Plainf("  %-5s %s (added %s, last used %s, via %s)",
					e.Trust.String(), e.URL,
					e.AddedAt.Format("2006-01-02"), e.LastUsedAt.Format("2006-01-02"),
					string(e.Source))
			}
			return nil
		},
	}
}

func newAllowlistAddCmd() *cobra.Command {
	var deny bool

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Trust a schema URL permanently (or record an explicit denial)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAdminApp(cmd)
			if err != nil {
				return err
			}

			trust := allowlist.TrustPermanent
			if deny {
				trust = allowlist.TrustDenied
			}
			entry, err := a.store.Add(args[0], trust, allowlist.ProvenanceCLI)
			if err != nil {
				return err
			}
			a.printer.Successf("recorded %s for %s", entry.Trust.String(), entry.URL)
			return nil
		},
	}
	cmd.Flags().BoolVar(&deny, "deny", false, "record an explicit denial instead of an allow")
	return cmd
}

func newAllowlistRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <url>",
		Short: "Remove a schema URL from the allowlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAdminApp(cmd)
			if err != nil {
				return err
			}

			removed, err := a.store.Remove(args[0])
			if err != nil {
				return err
			}
			if removed {
				a.printer.Successf("removed %s", args[0])
			} else {
				a.printer.Infof("no entry for %s", args[0])
			}
			return nil
		},
	}
}

func newAllowlistExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the persisted allowlist to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAdminApp(cmd)
			if err != nil {
				return err
			}

			if err := a.store.Export(args[0]); err != nil {
				return err
			}
			summary := a.store.Summary()
			a.printer.Successf("exported %d entries to %s", summary.Permanent+summary.Denied, args[0])
			return nil
		},
	}
}

func newAllowlistImportCmd() *cobra.Command {
	var merge bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load allowlist entries from a previously exported file",
		Long: `Load allowlist entries from a previously exported file.

By default the import replaces the persisted entries. With --merge, imported
entries are applied only where they are new or strictly newer than the
existing entry; on a timestamp tie the existing decision wins.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAdminApp(cmd)
			if err != nil {
				return err
			}

			mode := allowlist.ImportReplace
			if merge {
				mode = allowlist.ImportMerge
			}
			applied, err := a.store.Import(args[0], mode)
			if err != nil {
				return err
			}
			a.printer.Successf("imported %d entries from %s", applied, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&merge, "merge", false, "merge with existing entries instead of replacing them")
	return cmd
}

func newAllowlistCleanupCmd() *cobra.Command {
	var olderThan int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove permanent allows that have not been used recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("cli: --older-than must be a positive number of days")
			}
			a, err := newAdminApp(cmd)
			if err != nil {
				return err
			}

			removed, err := a.store.Cleanup(time.Duration(olderThan) * 24 * time.Hour)
			if err != nil {
				return err
			}
			if removed == 0 {
				a.printer.Infof("nothing to clean up")
				return nil
			}
			a.printer.Successf("removed %d stale entries", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&olderThan, "older-than", 90, "remove allows unused for this many days")
	return cmd
}
