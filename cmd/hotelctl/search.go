package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bike_hotels/internal/app"
	"bike_hotels/internal/bootstrap"
)

var searchFlags struct {
	lat, lng    float64
	featureType string
	freeText    string
	loyalty     []string
	inRoom      bool
	inGym       bool
	rank        bool
	bbox        string
}

func init() {
	f := searchCmd.Flags()
	f.Float64Var(&searchFlags.lat, "lat", 0, "latitude of the searched place")
	f.Float64Var(&searchFlags.lng, "lng", 0, "longitude of the searched place")
	f.StringVar(&searchFlags.featureType, "type", "place", "geocoder feature type (place, poi, ...)")
	f.StringVar(&searchFlags.freeText, "hotel", "", "hotel name to match")
	f.StringSliceVar(&searchFlags.loyalty, "loyalty", nil, "loyalty programs to keep")
	f.BoolVar(&searchFlags.inRoom, "in-room", false, "only hotels with in-room bikes")
	f.BoolVar(&searchFlags.inGym, "in-gym", false, "only hotels with gym bikes")
	f.BoolVar(&searchFlags.rank, "rank", false, "rank by bikes and features")
	f.StringVar(&searchFlags.bbox, "bbox", "", "geocoder extent as minLng,minLat,maxLng,maxLat")
	_ = searchCmd.MarkFlagRequired("lat")
	_ = searchCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "List hotels around a place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := app.SearchCriteria{
			Lat: searchFlags.lat, Lng: searchFlags.lng,
			SearchTerm:  args[0],
			FeatureType: searchFlags.featureType,
			FreeText:    searchFlags.freeText,
			Filters: app.Filters{
				Loyalty: searchFlags.loyalty, InRoom: searchFlags.inRoom,
				InGym: searchFlags.inGym, Rank: searchFlags.rank,
			},
		}
		if searchFlags.bbox != "" {
			b, err := parseFloats4(searchFlags.bbox)
			if err != nil {
				return err
			}
			q.ExternalBBox = b
		}
		return withService(cmd.Context(), func(d *bootstrap.Deps) error {
			res, err := d.Service.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

func parseFloats4(s string) (*[4]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox needs 4 numbers, got %d", len(parts))
	}
	var out [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox: %w", err)
		}
		out[i] = f
	}
	return &out, nil
}
