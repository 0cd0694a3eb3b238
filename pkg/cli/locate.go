package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bstardust/photo-ingest/internal/geo"
	"github.com/bstardust/photo-ingest/internal/geocode"
	"github.com/bstardust/photo-ingest/internal/metadata"
	"github.com/bstardust/photo-ingest/pkg/s3client"
)

type locateOptions struct {
	lat  float64
	lon  float64
	file string
}

func newLocateCommand(opts *rootOptions) *cobra.Command {
	o := &locateOptions{}
	cmd := &cobra.Command{
		Use:   "locate (--lat <deg> --lon <deg> | --file <photo>)",
		Short: "Resolve the place name of a point or a photo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := o.payload()
			if err != nil {
				return err
			}
			return runLocate(cmd.Context(), opts, cmd.OutOrStdout(), payload)
		},
	}

	cmd.Flags().Float64Var(&o.lat, "lat", 0, "Latitude in decimal degrees")
	cmd.Flags().Float64Var(&o.lon, "lon", 0, "Longitude in decimal degrees")
	cmd.Flags().StringVar(&o.file, "file", "", "Photo whose EXIF GPS position is resolved")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
	cmd.MarkFlagsMutuallyExclusive("lat", "file")
	cmd.MarkFlagsOneRequired("lat", "file")

	cmd.Flags().String("mapbox-token", "", "Mapbox access token")
	annotate(cmd.Flags(), "mapbox-token", "geocoding.mapbox_token")
	cmd.Flags().String("amap-token", "", "AMap web service key")
	annotate(cmd.Flags(), "amap-token", "geocoding.amap_token")

	return cmd
}

func (o *locateOptions) payload() (geocode.Payload, error) {
	if o.file == "" {
		c := geo.Coordinates{Latitude: o.lat, Longitude: o.lon}
		if !c.Valid() {
			return geocode.Payload{}, fmt.Errorf("coordinates out of range: latitude %v, longitude %v", o.lat, o.lon)
		}
		return geocode.PayloadFromCoordinates(c), nil
	}

	data, err := os.ReadFile(o.file)
	if err != nil {
		return geocode.Payload{}, err
	}
	md := metadata.NewExtractor(time.UTC).Extract(s3client.DetectContentType(o.file), data)
	return geocode.Payload{Exif: metadata.WithCoordinates(md.Exif, md.GPSPoint)}, nil
}

func runLocate(ctx context.Context, opts *rootOptions, out io.Writer, payload geocode.Payload) error {
	a, err := newLocator(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	loc, err := a.resolver.Resolve(ctx, payload)
	if err != nil {
		return err
	}

	if v := loc.Value(); v != nil {
		fmt.Fprintln(out, *v)
		return nil
	}
	fmt.Fprintln(out, "null")
	return nil
}
