package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bstardust/photo-ingest/internal/exif"
	"github.com/bstardust/photo-ingest/internal/logger"
)

func newStripCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "strip <in.jpg> <out.jpg>",
		Short: "Write a copy of a JPEG without its EXIF segment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStrip(args[0], args[1])
		},
	}
}

func runStrip(in, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	if !exif.IsJPEG(data) {
		return fmt.Errorf("%s is not a JPEG file", in)
	}

	stripped := exif.StripMetadataSegment(data)
	if err := os.WriteFile(out, stripped, 0o644); err != nil {
		return err
	}

	logger.Info("Wrote %s (%d bytes removed)", out, len(data)-len(stripped))
	return nil
}
