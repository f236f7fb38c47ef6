package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shadowroads/internal/shadow"
	"shadowroads/internal/solar"
	"shadowroads/internal/types"
)

func newSunCmd() *cobra.Command {
	var (
		lat, lon   float64
		datetime   string
		timezone   string
		refraction bool
		height     float64
	)

	cmd := &cobra.Command{
		Use:   "sun",
		Short: "Print the sun position for a place and local time",
		Long: `Prints the solar elevation and azimuth (clockwise from north) for the
observer and instant. With --height, also prints the shadow a vertical
object of that height would cast.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			when, err := solar.ParseLocal(datetime, timezone)
			if err != nil {
				return types.NewAppError(types.ErrCodeConfigInvalid, "invalid --datetime or --timezone", err)
			}

			sun := solar.NewNOAA(refraction).Position(lat, lon, when)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "time: %s\n", when.UTC().Format("2006-01-02 15:04:05 UTC"))
			fmt.Fprintf(out, "elevation: %.4f°\n", sun.ElevationDeg)
			fmt.Fprintf(out, "azimuth: %.4f°\n", sun.AzimuthDeg)
			if sun.BelowHorizon() {
				fmt.Fprintln(out, "sun is at or below the horizon")
			}

			if height > 0 {
				d := shadow.Displacement(height, sun.ElevationDeg, sun.AzimuthDeg, shadow.DefaultMinElevationDeg)
				fmt.Fprintf(out, "shadow of %.2f m: %.2f m (dx %.2f, dy %.2f)\n", height, d.Length(), d.DX, d.DY)
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.Float64Var(&lat, "lat", 0, "observer latitude in degrees")
	fs.Float64Var(&lon, "lon", 0, "observer longitude in degrees")
	fs.StringVar(&datetime, "datetime", "", `local date and time, "YYYY-MM-DD HH:MM:SS"`)
	fs.StringVar(&timezone, "timezone", "UTC", "IANA zone of --datetime")
	fs.BoolVar(&refraction, "refraction", true, "apply atmospheric refraction correction")
	fs.Float64Var(&height, "height", 0, "object height in meters")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	_ = cmd.MarkFlagRequired("datetime")

	return cmd
}
