package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pictocore/internal/core"
	"pictocore/pkg/domain"
)

func newSeedCommand(opts *RootOptions, open Opener) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Run the configured seed, or apply a YAML seed file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, open, func(ctx context.Context, svc *core.Service) error {
				if err := svc.Bootstrap(ctx); err != nil {
					return err
				}
				if file == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "seed applied")
					return nil
				}
				data, err := core.LoadSeedFile(file)
				if err != nil {
					return err
				}
				if err := svc.WithTransaction(ctx, domain.AllCollections(), data.Apply); err != nil {
					return fmt.Errorf("apply %s: %w", file, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d binders, %d pictograms, %d categories\n",
					len(data.Binders), len(data.Pictograms), len(data.Categories))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file to apply")
	return cmd
}

func newBindersCommand(opts *RootOptions, open Opener) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "binders",
		Short: "List binders, or the binders of one user, with translated titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, open, func(ctx context.Context, svc *core.Service) error {
				var binders []domain.Binder
				var err error
				locale := opts.Locale
				if user != "" {
					binders, err = svc.TranslatedBindersOfUser(ctx, user, locale)
				} else {
					binders, err = svc.TranslatedBinders(ctx, locale)
				}
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(binders))
				for _, b := range binders {
					rows = append(rows, []string{b.ID, localeText(svc, b.Properties, locale, domain.PropTitle), b.AuthorID, strconv.Itoa(len(b.Pictograms))})
				}
				return newPrinter(opts, cmd.OutOrStdout()).print(binders, []string{"ID", "TITLE", "AUTHOR", "PICTOGRAMS"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "only binders authored by or shared with this user")
	return cmd
}

func newPictogramsCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "pictograms <binder-id>",
		Short: "List the pictograms of a binder in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, open, func(ctx context.Context, svc *core.Service) error {
				pictograms, err := svc.TranslatedPictogramsOfBinder(ctx, args[0], opts.Locale)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(pictograms))
				for _, p := range pictograms {
					rows = append(rows, []string{
						strconv.Itoa(p.Order), p.ID, localeText(svc, p.Properties, opts.Locale, domain.PropTitle), strings.Join(p.Categories, ","),
					})
				}
				return newPrinter(opts, cmd.OutOrStdout()).print(pictograms, []string{"ORDER", "ID", "TITLE", "CATEGORIES"}, rows)
			})
		},
	}
}

func newDeleteBinderCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-binder <id>",
		Short: "Delete a binder with its pictograms and their translations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, open, func(ctx context.Context, svc *core.Service) error {
				deleted, err := svc.DeleteBinder(ctx, args[0])
				if err != nil {
					return err
				}
				return reportDeleted(cmd, opts, "binder", args[0], deleted)
			})
		},
	}
}

func newDeleteCategoryCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-category <id>",
		Short: "Delete a category and unlink it from every pictogram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, open, func(ctx context.Context, svc *core.Service) error {
				deleted, err := svc.DeleteCategory(ctx, args[0])
				if err != nil {
					return err
				}
				return reportDeleted(cmd, opts, "category", args[0], deleted)
			})
		},
	}
}

func reportDeleted(cmd *cobra.Command, opts *RootOptions, entity, id string, deleted bool) error {
	result := map[string]any{"entity": entity, "id": id, "deleted": deleted}
	row := []string{entity, id, strconv.FormatBool(deleted)}
	return newPrinter(opts, cmd.OutOrStdout()).print(result, []string{"ENTITY", "ID", "DELETED"}, [][]string{row})
}

func newTranslateCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <object-id> <locale> <key> [value]",
		Short: "Set a translation row; omit the value to delete it",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value string
			if len(args) == 4 {
				value = args[3]
			}
			return withService(cmd, opts, open, func(ctx context.Context, svc *core.Service) error {
				if err := svc.SetTranslation(ctx, args[0], args[1], args[2], value); err != nil {
					return err
				}
				rows, err := svc.TranslationsOf(ctx, args[0])
				if err != nil {
					return err
				}
				table := make([][]string, 0, len(rows))
				for _, t := range rows {
					table = append(table, []string{t.Locale, t.Key, t.Value})
				}
				return newPrinter(opts, cmd.OutOrStdout()).print(rows, []string{"LOCALE", "KEY", "VALUE"}, table)
			})
		},
	}
}

func newExportCommand(opts *RootOptions, open Opener) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of every collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, open, func(ctx context.Context, svc *core.Service) error {
				snap, err := svc.Export(ctx)
				if err != nil {
					return err
				}
				if out == "" || out == "-" {
					return core.WriteSnapshot(cmd.OutOrStdout(), snap)
				}
				f, err := os.Create(out) // #nosec G304 -- operator-chosen output path
				if err != nil {
					return err
				}
				if err := core.WriteSnapshot(f, snap); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "snapshot file (default stdout)")
	return cmd
}

func newImportCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "import <snapshot-file>",
		Short: "Replace store content with a snapshot written by export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0]) // #nosec G304 -- operator-chosen input path
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			snap, err := core.ReadSnapshot(f)
			if err != nil {
				return err
			}
			return withService(cmd, opts, open, func(ctx context.Context, svc *core.Service) error {
				if err := svc.Import(ctx, snap); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d collections\n", len(snap.Collections))
				return nil
			})
		},
	}
}

func localeText(svc *core.Service, props domain.LocalizedProps, locale, key string) string {
	canon, err := svc.ResolveLocale(locale)
	if err != nil {
		return ""
	}
	return props.Text(canon, key)
}
