package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/foldsync/foldsync/internal/assemble"
	"github.com/foldsync/foldsync/internal/ctxlog"
	"github.com/foldsync/foldsync/internal/recipe"
	"github.com/foldsync/foldsync/internal/reconcile"
)

func (a *App) newSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync RECIPE TARGET",
		Short: "Make TARGET match the recipe exactly",
		Long: `Sync resolves the recipe into a manifest, fetches every entry that is
not already present with the right content, then deletes and rewrites the
target directory. With --skip-first-level only the first-level entries the
manifest controls are replaced; everything else in the target survives.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSync(cmd.Context(), args[0], args[1])
		},
	}
	cmd.Flags().StringArrayVarP(&a.tags, "tag", "t", nil, "Activate a tag. May be repeated.")
	cmd.Flags().BoolVar(&a.skipFirstLvl, "skip-first-level", false, "Replace only the first-level entries the recipe controls.")
	cmd.Flags().BoolVarP(&a.assumeYes, "yes", "y", false, "Skip the confirmation prompt.")
	cmd.Flags().IntVar(&a.workers, "workers", reconcile.DefaultWorkers, "Number of concurrent source fetches.")
	return cmd
}

func (a *App) newCleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean RECIPE TARGET",
		Short: "Delete what a sync of this recipe would control",
		Long: `Clean deletes the whole target directory, or with --skip-first-level
only the first-level entries the recipe's manifest controls.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runClean(cmd.Context(), args[0], args[1])
		},
	}
	cmd.Flags().StringArrayVarP(&a.tags, "tag", "t", nil, "Activate a tag. May be repeated.")
	cmd.Flags().BoolVar(&a.skipFirstLvl, "skip-first-level", false, "Delete only the first-level entries the recipe controls.")
	cmd.Flags().BoolVarP(&a.assumeYes, "yes", "y", false, "Skip the confirmation prompt.")
	return cmd
}

func (a *App) runSync(ctx context.Context, locator, target string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	mode := reconcile.Full
	if a.skipFirstLvl {
		mode = reconcile.SkipFirstLevel
	}
	if mode == reconcile.Full {
		if err := guardTarget(target); err != nil {
			return err
		}
	}

	resolver := a.newResolver()
	defer resolver.Close()

	manifest, err := a.loadManifest(ctx, resolver, locator)
	if err != nil {
		return err
	}

	if !a.confirm(fmt.Sprintf("Sync %d files into %q (%s mode)?", manifest.Len(), target, mode)) {
		fmt.Fprintln(a.outW, "Aborted.")
		return nil
	}

	syncer := reconcile.NewSyncer(resolver, a.workers)
	result, err := syncer.Sync(ctx, manifest, target, mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "Synced %q: %d written, %d reused.\n", target, result.Written, result.Reused)
	return nil
}

func (a *App) runClean(ctx context.Context, locator, target string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	mode := reconcile.Full
	if a.skipFirstLvl {
		mode = reconcile.SkipFirstLevel
	}
	if mode == reconcile.Full {
		if err := guardTarget(target); err != nil {
			return err
		}
	}

	resolver := a.newResolver()
	defer resolver.Close()

	manifest, err := a.loadManifest(ctx, resolver, locator)
	if err != nil {
		return err
	}

	victims := reconcile.Deletions(manifest, mode)
	if !a.confirm(fmt.Sprintf("Delete %d entries under %q?", len(victims), target)) {
		fmt.Fprintln(a.outW, "Aborted.")
		return nil
	}
	for _, rel := range victims {
		victim := target
		if rel != "." {
			victim = filepath.Join(target, filepath.FromSlash(rel))
		}
		if err := os.RemoveAll(victim); err != nil {
			return fmt.Errorf("could not remove %q: %w", victim, err)
		}
		fmt.Fprintf(a.outW, "Removed %s\n", victim)
	}
	return nil
}

// loadManifest loads and resolves the recipe at locator, then assembles it
// under the activated tags.
func (a *App) loadManifest(ctx context.Context, src assemble.SourceService, locator string) (*assemble.Manifest, error) {
	abs, err := absLocator(locator)
	if err != nil {
		return nil, err
	}
	rec, err := recipe.Load(ctx, src, abs, "")
	if err != nil {
		return nil, err
	}
	return assemble.New(src).Assemble(ctx, rec, a.tags)
}
