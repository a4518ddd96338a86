package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newCatCmd(configPath *string) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "cat <path>",
		Short: "Print the content of an element",
		Long: `Print the content of an element of the configured root.

Kinds:
  text     raw text (text-like extensions)
  image64  base64 data URI (image extensions)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCat(cmd.Context(), cmd.OutOrStdout(), *configPath, args[0], kind)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "text", "Content kind (text, image64)")
	return cmd
}

func runCat(ctx context.Context, out io.Writer, configPath, p, kind string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer env.Close()

	svc := env.newService(nil)
	defer svc.Close()

	id, err := svc.OpenSession(ctx)
	if err != nil {
		return err
	}

	content, err := svc.Content(ctx, id, p, kind)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(out, content)
	return err
}
