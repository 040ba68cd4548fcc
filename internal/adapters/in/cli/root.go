// Package cli implements the CLI adapter for localroute.
// This package provides Cobra commands that delegate to the app layer.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/localroute/localroute/internal/adapters/in/cli/ui/styles"
	"github.com/localroute/localroute/internal/app"
	"github.com/localroute/localroute/internal/domain"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	sitesPath  string
	watch      bool
	clean      bool
	restoreDNS bool
}

// appFactory builds the application for a command. Tests replace it.
var appFactory = func(cmd *cobra.Command, opts *rootOptions) (runner, error) {
	return app.New(app.Options{
		ConfigPath: opts.configPath,
		SitesPath:  opts.sitesPath,
		Console:    cmd.ErrOrStderr(),
	})
}

// runner is the slice of *app.App the commands drive.
type runner interface {
	Setup(ctx context.Context) (*domain.RunResult, error)
	Refresh(ctx context.Context) (*domain.RunResult, error)
	Clean(ctx context.Context, restoreDNS bool) (*domain.RunResult, error)
	Watch(ctx context.Context, onResult func(*domain.RunResult, error)) error
	Close() error
}

// reloadSignaler forwards a refresh to a running watcher. Tests replace it.
var reloadSignaler = struct {
	running func() bool
	send    func() error
}{
	running: app.WatcherRunning,
	send:    app.SendReloadSignal,
}

// reportedError marks an error whose details were already printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// NewRootCmd creates the root command for the localroute CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "localroute",
		Short: "localroute - local development routing",
		Long: `localroute turns a list of sites into a working local routing setup.

It renders nginx and dnsmasq configuration from the site list, provisions
TLS certificates, points the system resolver at the local DNS service,
restarts the proxy and DNS containers and verifies every site.

Without a subcommand it runs the full setup.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefault(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default ./localroute.yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.sitesPath, "sites", "s", "", "Path to the site list (overrides sites.path)")
	addRunFlags(rootCmd, opts)

	rootCmd.AddCommand(newSetupCmd(opts))
	rootCmd.AddCommand(newRefreshCmd(opts))
	rootCmd.AddCommand(newCleanCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func addRunFlags(cmd *cobra.Command, opts *rootOptions) {
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep running and refresh when the site list changes or SIGUSR1 arrives")
	cmd.Flags().BoolVar(&opts.clean, "clean", false, "Stop the services and delete the generated configuration")
	cmd.Flags().BoolVar(&opts.restoreDNS, "restore-dns", false, "With --clean, restore the resolver backup")
}

// newSetupCmd creates the setup command.
func newSetupCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Run the full pipeline",
		Long: `Validate the site list, render and write the proxy and DNS configuration,
provision certificates, configure the resolver, restart the services and
verify every site.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefault(cmd, opts)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

// newRefreshCmd creates the refresh command.
func newRefreshCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "refresh",
		Aliases: []string{"reload"},
		Short:   "Re-render, restart and verify",
		Long: `Reload the site list, re-render the configuration, restart the services
and verify. When a watcher is running it is signalled instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(cmd, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep running and refresh when the site list changes or SIGUSR1 arrives")
	return cmd
}

// newCleanCmd creates the clean command.
func newCleanCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Stop the services and delete the generated configuration",
		Long: `Stop and remove the proxy and DNS containers and delete the generated
configuration files. Certificates are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.restoreDNS, "restore-dns", false, "Restore the resolver backup")
	return cmd
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("localroute %s\n", Version)
			cmd.Printf("Commit: %s\n", Commit)
			cmd.Printf("Build Date: %s\n", BuildDate)
		},
	}
}

func runDefault(cmd *cobra.Command, opts *rootOptions) error {
	if opts.clean {
		return runClean(cmd, opts)
	}
	return runSetup(cmd, opts)
}

func runSetup(cmd *cobra.Command, opts *rootOptions) error {
	a, err := appFactory(cmd, opts)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	result, err := a.Setup(ctx)
	if rerr := renderRunResult(out, "setup", result, err); rerr != nil {
		return rerr
	}
	if err != nil {
		return &reportedError{err: err}
	}

	if !opts.watch {
		return nil
	}

	return a.Watch(ctx, func(result *domain.RunResult, err error) {
		_ = renderRunResult(out, "refresh", result, err)
	})
}

func runRefresh(cmd *cobra.Command, opts *rootOptions) error {
	out := cmd.OutOrStdout()

	if reloadSignaler.running() {
		err := reloadSignaler.send()
		if err == nil {
			return cliWriteLine(out, cliRenderInfo("reload signal sent to the running watcher"))
		}
		if !errors.Is(err, domain.ErrWatcherNotActive) {
			_ = cliWriteLine(out, cliRenderWarning("could not signal watcher, refreshing in process: "+err.Error()))
		}
	}

	a, err := appFactory(cmd, opts)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	ctx := cmd.Context()
	result, err := a.Refresh(ctx)
	if rerr := renderRunResult(out, "refresh", result, err); rerr != nil {
		return rerr
	}
	if err != nil {
		return &reportedError{err: err}
	}

	if !opts.watch {
		return nil
	}

	return a.Watch(ctx, func(result *domain.RunResult, err error) {
		_ = renderRunResult(out, "refresh", result, err)
	})
}

func runClean(cmd *cobra.Command, opts *rootOptions) error {
	a, err := appFactory(cmd, opts)
	if err != nil {
		return err
	}
	defer closeApp(cmd, a)

	result, err := a.Clean(cmd.Context(), opts.restoreDNS)
	if rerr := renderRunResult(cmd.OutOrStdout(), "clean", result, err); rerr != nil {
		return rerr
	}
	if err != nil {
		return &reportedError{err: err}
	}
	return nil
}

func closeApp(cmd *cobra.Command, a runner) {
	if err := a.Close(); err != nil {
		_ = cliWriteLine(cmd.ErrOrStderr(), cliRenderWarning("shutdown: "+err.Error()))
	}
}

// Execute runs the CLI. The returned error has already been printed.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	var reported *reportedError
	if !errors.As(err, &reported) {
		_ = cliWriteLine(rootCmd.ErrOrStderr(), styles.RenderError(err.Error()))
	}
	return err
}

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(version, commit, date string) {
	Version = version
	Commit = commit
	BuildDate = date
}
