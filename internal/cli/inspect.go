package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foldsync/foldsync/internal/ctxlog"
	"github.com/foldsync/foldsync/internal/recipe"
	"github.com/foldsync/foldsync/internal/source"
)

func (a *App) newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list RECIPE",
		Short: "List the target paths a sync would produce",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxlog.WithLogger(cmd.Context(), a.logger)
			resolver := a.newResolver()
			defer resolver.Close()

			manifest, err := a.loadManifest(ctx, resolver, args[0])
			if err != nil {
				return err
			}
			for _, p := range manifest.Paths() {
				fmt.Fprintln(a.outW, p)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&a.tags, "tag", "t", nil, "Activate a tag. May be repeated.")
	return cmd
}

func (a *App) newTagsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tags RECIPE",
		Short: "List every tag the recipe declares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxlog.WithLogger(cmd.Context(), a.logger)
			resolver := a.newResolver()
			defer resolver.Close()

			abs, err := absLocator(args[0])
			if err != nil {
				return err
			}
			rec, err := recipe.Load(ctx, resolver, abs, "")
			if err != nil {
				return err
			}
			for _, t := range rec.Tags() {
				fmt.Fprintln(a.outW, t)
			}
			return nil
		},
	}
}

func (a *App) newHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash FILE",
		Short: "Print the SHA3-256 hash of a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.outW, source.Sum(data))
			return nil
		},
	}
}

func (a *App) newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show LOCATOR",
		Short: "Fetch a single source and print its content",
		Long: `Show resolves a compact locator the way recipe sources do (local path,
URL, user@host:path, repo#revision:path) and prints the fetched bytes, or
writes them to the file given with -o.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxlog.WithLogger(cmd.Context(), a.logger)
			resolver := a.newResolver()
			defer resolver.Close()

			abs, err := absLocator(args[0])
			if err != nil {
				return err
			}
			ref, err := recipe.ParseLocator(abs)
			if err != nil {
				return err
			}
			data, err := resolver.Fetch(ctx, ref)
			if err != nil {
				return err
			}
			if a.showOutput != "" {
				return os.WriteFile(a.showOutput, data, 0o644)
			}
			_, err = a.outW.Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&a.showOutput, "output", "o", "", "Write the content to this file instead of stdout.")
	return cmd
}
