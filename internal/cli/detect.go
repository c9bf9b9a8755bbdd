package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fleet-visualizer/internal/model"
)

func newDetectCmd(g *globalFlags) *cobra.Command {
	var lat, lng float64
	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Upload a photo for trash detection",
		Long: `Uploads an image to the backend detection endpoint and prints the detected
objects. --lat and --lng tag the photo with where it was taken.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd)
			if err != nil {
				return err
			}
			var pos *model.Position
			latSet, lngSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
			if latSet != lngSet {
				return fmt.Errorf("--lat and --lng must be given together")
			}
			if latSet {
				pos = &model.Position{Lat: lat, Lng: lng}
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open image: %w", err)
			}
			defer f.Close()

			res, err := newClient(cfg).Detect(cmd.Context(), filepath.Base(args[0]), f, pos)
			if err != nil {
				return fmt.Errorf("detection failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(res.Detections) == 0 {
				fmt.Fprintln(out, "No objects detected.")
			} else {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CLASS\tCONFIDENCE\tBBOX")
				for _, d := range res.Detections {
					fmt.Fprintf(tw, "%s\t%.1f%%\t%v\n", d.ClassName, d.Confidence*100, d.BBox)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			if res.AnnotatedImagePath != "" {
				fmt.Fprintf(out, "annotated image: %s\n", res.AnnotatedImagePath)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude where the photo was taken")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude where the photo was taken")
	return cmd
}
