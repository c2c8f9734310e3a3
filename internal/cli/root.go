// Package cli wires the Cobra command tree, grounded on the roach88-nysm
// example's internal/cli package: a RootOptions struct threaded through
// persistent flags, log/slog configured from a verbose flag, and
// ExitError-carried exit codes rather than bare os.Exit calls scattered
// through command bodies.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/webpreempt/sage/internal/config"
)

// RootOptions holds flags shared by every subcommand.
type RootOptions struct {
	Manifest string
	Verbose  bool

	registry *config.Registry
}

// Registry lazily loads and caches the dataset registry named by
// --manifest, so every subcommand shares one set of opened backends within
// a single CLI invocation.
func (o *RootOptions) Registry() (*config.Registry, error) {
	if o.registry != nil {
		return o.registry, nil
	}
	m, err := config.Load(o.Manifest)
	if err != nil {
		return nil, err
	}
	r, err := config.NewRegistry(m)
	if err != nil {
		return nil, err
	}
	o.registry = r
	return r, nil
}

// Logger returns a slog.Logger at Debug level when Verbose is set, Info
// otherwise, writing text-formatted records to stderr.
func (o *RootOptions) Logger() *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// NewRootCommand builds the sage command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sage",
		Short: "A preemptable SPARQL query server",
		Long: `sage runs SPARQL SELECT and ASK queries under a quota: when a query's
time or result budget runs out mid-execution, sage hands back an opaque
continuation token that resumes the exact same physical plan from where it
left off, rather than losing the partial work or blocking indefinitely.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Manifest, "manifest", "sage.yaml", "path to the dataset registry manifest")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(newQueryCommand(opts))
	cmd.AddCommand(newResumeCommand(opts))
	cmd.AddCommand(newDemoCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

// Execute runs the CLI and translates a returned ExitError into the
// process's exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
