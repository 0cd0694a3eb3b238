package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <storage-key>...",
		Short: "Delete stored photos and their records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), opts, cmd.OutOrStdout(), args)
		},
	}

	cmd.Flags().String("bucket", "", "S3 bucket name")
	annotate(cmd.Flags(), "bucket", "s3.bucket")

	return cmd
}

func runDelete(ctx context.Context, opts *rootOptions, out io.Writer, keys []string) error {
	a, err := newApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	res, err := a.pipeline.Delete(ctx, keys)
	fmt.Fprintf(out, "Deleted %d images, removed %d records\n", len(res.Deleted), res.RecordsRemoved)
	if len(res.Failed) > 0 {
		fmt.Fprintf(out, "Failed: %s\n", strings.Join(res.Failed, ", "))
	}
	return err
}
