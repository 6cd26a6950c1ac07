// Package cli implements the pictoctl command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pictocore/internal/core"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	Locale string
	Actor  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Opener builds the service a command runs against. The returned function
// releases it.
type Opener func(ctx context.Context) (*core.Service, func() error, error)

// NewRootCommand creates the root command. open is called once per command
// invocation.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pictoctl",
		Short: "Inspect and maintain a pictocore data store",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Locale, "locale", "", "locale for translated output (default from config)")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "", "user ID recorded in history for mutations")

	cmd.AddCommand(newSeedCommand(opts, open))
	cmd.AddCommand(newBindersCommand(opts, open))
	cmd.AddCommand(newPictogramsCommand(opts, open))
	cmd.AddCommand(newDeleteBinderCommand(opts, open))
	cmd.AddCommand(newDeleteCategoryCommand(opts, open))
	cmd.AddCommand(newTranslateCommand(opts, open))
	cmd.AddCommand(newExportCommand(opts, open))
	cmd.AddCommand(newImportCommand(opts, open))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withService opens the service, attaches the actor and runs fn.
func withService(cmd *cobra.Command, opts *RootOptions, open Opener, fn func(context.Context, *core.Service) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, release, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := release(); err == nil {
			err = cerr
		}
	}()
	if opts.Actor != "" {
		ctx = core.WithActor(ctx, opts.Actor)
	}
	return fn(ctx, svc)
}
