package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/marmos91/dittobrowse/pkg/browsable"
	"github.com/marmos91/dittobrowse/pkg/wire"
	"github.com/spf13/cobra"
)

type lsOptions struct {
	first  int
	number int
	sort   string
	json   bool
}

func newLsCmd(configPath *string) *cobra.Command {
	var opts lsOptions

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List one level of the configured root",
		Long: `List the children of a path of the configured root.

Examples:
  dittobrowse ls /                        # root level
  dittobrowse ls /logs --sort size        # folders first, then by size
  dittobrowse ls /runs.zip/data --json    # inside an archive, JSON output`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := "/"
			if len(args) == 1 {
				p = args[0]
			}
			return runLs(cmd.Context(), cmd.OutOrStdout(), *configPath, p, opts)
		},
	}

	cmd.Flags().IntVar(&opts.first, "first", 0, "Index of the first item to show")
	cmd.Flags().IntVar(&opts.number, "number", 0, "Number of items to show (0 = all)")
	cmd.Flags().StringVar(&opts.sort, "sort", "name", "Sort method (unsorted, name, size, mtime, or empty for folders first)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the reply as JSON")

	return cmd
}

func runLs(ctx context.Context, out io.Writer, configPath, p string, opts lsOptions) error {
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

	reply, err := svc.Process(ctx, id, browsable.Request{
		Path:   p,
		First:  opts.first,
		Number: opts.number,
		Sort:   opts.sort,
	})
	if err != nil {
		return err
	}

	if opts.json {
		return wire.JSON{Indent: true}.Encode(out, reply)
	}
	return printListing(out, reply)
}

// printListing writes a reply as an aligned table.
func printListing(out io.Writer, reply *browsable.Reply) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	for _, item := range reply.Items {
		kind := "-"
		if item.IsFolder() {
			kind = "d"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", kind, item.Attrs["fsize"], item.Attrs["mtime"], item.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	summary := fmt.Sprintf("%d of %d item(s)", len(reply.Items), reply.Total)
	if reply.Partial {
		summary += fmt.Sprintf(", listing truncated at %d", browsable.MaxChildren)
	}
	_, err := fmt.Fprintln(out, summary)
	return err
}
