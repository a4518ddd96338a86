package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
)

func newImportCmd(configPath *string) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Copy a local directory into the badger record store",
		Long: `Copy a local directory tree into the configured badger root.

Directories become folder records and files become blob records; archives
stay browsable once imported. Requires root.type = badger.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.OutOrStdout(), *configPath, args[0], prefix)
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "/", "Record path under which the tree is stored")
	return cmd
}

func runImport(ctx context.Context, out io.Writer, configPath, dir, prefix string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	if env.root.Store == nil {
		return fmt.Errorf("import requires a badger root (configured: %s)", env.cfg.Root.Type)
	}

	count, err := env.root.Store.Import(ctx, osfs.New(dir), "/", prefix)
	if err != nil {
		return fmt.Errorf("import failed after %d record(s): %w", count, err)
	}

	_, err = fmt.Fprintf(out, "Imported %s record(s) from %s\n", humanize.Comma(int64(count)), dir)
	return err
}
