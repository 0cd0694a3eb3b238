package cli

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/bstardust/photo-ingest/internal/fshelper"
	"github.com/bstardust/photo-ingest/internal/ingest"
	"github.com/bstardust/photo-ingest/internal/journal"
	"github.com/bstardust/photo-ingest/internal/logger"
	"github.com/bstardust/photo-ingest/internal/progress"
	"github.com/bstardust/photo-ingest/internal/records"
	"github.com/bstardust/photo-ingest/internal/uploader"
	"github.com/bstardust/photo-ingest/internal/worker"
	"github.com/bstardust/photo-ingest/pkg/s3client"
)

func newIngestCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [flags] <file|dir|archive.zip|glob>...",
		Short: "Upload photos and record their location",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), opts, cmd.OutOrStdout(), args)
		},
	}

	// S3 connection flags
	cmd.Flags().String("bucket", "", "S3 bucket name")
	annotate(cmd.Flags(), "bucket", "s3.bucket")
	cmd.Flags().String("prefix", "", "Prefix for S3 object keys")
	annotate(cmd.Flags(), "prefix", "s3.prefix")

	// Upload options
	cmd.Flags().Int("concurrency", 4, "Number of concurrent uploads")
	annotate(cmd.Flags(), "concurrency", "upload.concurrency")
	cmd.Flags().Bool("strip-exif", true, "Remove the EXIF segment from JPEG files before upload")
	annotate(cmd.Flags(), "strip-exif", "upload.strip_exif")
	cmd.Flags().Bool("preserve-metadata", false, "Copy capture time and camera into the object metadata")
	annotate(cmd.Flags(), "preserve-metadata", "upload.preserve_metadata")
	cmd.Flags().String("journal", "", "Journal file for resumable ingests")
	annotate(cmd.Flags(), "journal", "upload.journal")

	return cmd
}

func runIngest(ctx context.Context, opts *rootOptions, out io.Writer, paths []string) error {
	sources, err := fshelper.Collect(paths)
	if err != nil {
		return err
	}
	defer func() { _ = sources.Close() }()

	a, err := newApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	if !a.uploader.Configured() {
		return uploader.ErrBucketNotConfigured
	}

	// Initialize journal for resumable ingests
	jnl := journal.New(opts.cfg.Upload.Journal)
	if err := jnl.Load(); err != nil {
		logger.Warn("Could not load journal: %v", err)
	}

	reporter := progress.New(2 * time.Second)
	reporter.Start(len(sources.Sources))

	var mu sync.Mutex
	pool := worker.NewPool(opts.cfg.Upload.Concurrency)
	for _, src := range sources.Sources {
		src := src
		if !s3client.IsImageFile(src.Path) {
			reporter.Skip(src.Display)
			continue
		}
		if _, done := jnl.Lookup(src.Display); done {
			reporter.Skip(src.Display)
			continue
		}

		scheduled := pool.Go(ctx, func() {
			rec, err := ingestSource(ctx, a.pipeline, src)
			if err != nil {
				reporter.Error(src.Display, err)
				return
			}
			jnl.MarkIngested(src.Display, src.Archive, rec.StorageKey)
			reporter.Complete(src.Display)

			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "%s\t%s\n", src.Display, rec.StorageKey)
		})
		if !scheduled {
			reporter.Error(src.Display, ctx.Err())
		}
	}
	pool.Wait()

	if err := jnl.Save(); err != nil {
		logger.Error("Failed to save journal: %v", err)
	}

	summary := reporter.Finish()
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Total)
	}
	return nil
}

func ingestSource(ctx context.Context, pipeline *ingest.Pipeline, src fshelper.Source) (*records.Record, error) {
	data, err := src.ReadFile()
	if err != nil {
		return nil, err
	}

	in := ingest.Input{
		FileName:    path.Base(src.Path),
		ContentType: s3client.DetectContentType(src.Path),
		Data:        data,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		in.Width = strconv.Itoa(cfg.Width)
		in.Height = strconv.Itoa(cfg.Height)
	}
	return pipeline.Ingest(ctx, in)
}
