package main

import (
	"github.com/spf13/cobra"

	"bike_hotels/internal/bootstrap"
)

var matchFlags struct{ lat, lng float64 }

func init() {
	matchCmd.Flags().Float64Var(&matchFlags.lat, "lat", 0, "latitude of the destination")
	matchCmd.Flags().Float64Var(&matchFlags.lng, "lng", 0, "longitude of the destination")
	_ = matchCmd.MarkFlagRequired("lat")
	_ = matchCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(matchCmd)
}

var matchCmd = &cobra.Command{
	Use:     "match <destination> <hotel name>",
	Aliases: []string{"check"},
	Short:   "Tell whether a booked hotel has bikes",
	Example: `  hotelctl match --lat 41.878 --lng -87.629 "Chicago, IL" "Club Quarters Central Loop"`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(d *bootstrap.Deps) error {
			res, err := d.Service.BookingCheck(cmd.Context(), matchFlags.lat, matchFlags.lng, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}
