package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menlo-oaks/crimefeed/internal/geofence"
)

var geoCmd = &cobra.Command{
	Use:   "geo",
	Short: "Inspect the configured reference area",
}

var geoShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved reference area",
	RunE: func(cmd *cobra.Command, _ []string) error {
		area, err := buildArea(cfg)
		if err != nil {
			return err
		}

		lat, lng := area.Center()
		fmt.Printf("Name:   %s\n", cfg.Area.Name)
		fmt.Printf("Center: %.6f, %.6f\n", lat, lng)
		if area.IsPolygon() {
			fmt.Printf("Shape:  polygon (%d vertices)\n", area.Ring().NumCoords())
		} else {
			fmt.Println("Shape:  point")
		}
		fmt.Printf("Radii:  property %.0fm, suspicious %.0fm\n",
			cfg.Radii.PropertyCrimeM, cfg.Radii.SuspiciousActivityM)
		return nil
	},
}

var (
	geoCheckLat float64
	geoCheckLng float64
)

var geoCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Test a coordinate against the reference area and alert radii",
	RunE: func(cmd *cobra.Command, _ []string) error {
		area, err := buildArea(cfg)
		if err != nil {
			return err
		}

		dist := area.Distance(geoCheckLat, geoCheckLng)
		fmt.Printf("Distance: %.0fm (%.2fmi)\n", dist, dist/1609.34)
		fmt.Printf("Within property radius (%.0fm):   %v\n",
			cfg.Radii.PropertyCrimeM, dist <= cfg.Radii.PropertyCrimeM)
		fmt.Printf("Within suspicious radius (%.0fm): %v\n",
			cfg.Radii.SuspiciousActivityM, dist <= cfg.Radii.SuspiciousActivityM)
		return nil
	},
}

var geoImportCmd = &cobra.Command{
	Use:   "import <boundary.shp>",
	Short: "Read a boundary shapefile and print a config-ready vertex list",
	Long: `Reads the outer ring of the first polygon in a shapefile and prints it
as YAML suitable for the area.vertices config key. Pipe the output into
your config file to pin the boundary without shipping the shapefile.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		area, err := geofence.LoadShapefileArea(cfg.Area.Name, args[0])
		if err != nil {
			return err
		}

		ring := area.Ring()
		fmt.Println("area:")
		fmt.Printf("  name: %s\n", cfg.Area.Name)
		fmt.Println("  vertices:")
		for i := 0; i < ring.NumCoords(); i++ {
			c := ring.Coord(i)
			fmt.Printf("    - [%.6f, %.6f]\n", c.Y(), c.X())
		}
		return nil
	},
}

func init() {
	geoCheckCmd.Flags().Float64Var(&geoCheckLat, "lat", 0, "latitude to test")
	geoCheckCmd.Flags().Float64Var(&geoCheckLng, "lng", 0, "longitude to test")
	geoCheckCmd.MarkFlagRequired("lat")
	geoCheckCmd.MarkFlagRequired("lng")
	geoCmd.AddCommand(geoShowCmd, geoCheckCmd, geoImportCmd)
	rootCmd.AddCommand(geoCmd)
}
