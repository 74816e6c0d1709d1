package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bike_hotels/internal/app"
	"bike_hotels/internal/bootstrap"
)

var (
	invalidateAll bool
	missesLimit   int
)

func init() {
	invalidateCmd.Flags().BoolVar(&invalidateAll, "all", false, "drop every cached area")
	missesCmd.Flags().IntVar(&missesLimit, "limit", 50, "maximum rows to print")
	rootCmd.AddCommand(invalidateCmd, missesCmd, loyaltyCmd)
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate [cityBbox]",
	Short: "Drop cached hotel lists from the shared cache",
	Long:  "Drop cached hotel lists. Only useful with REDIS_ADDR set; the in-process cache dies with this command.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := app.InvalidateRequest{All: invalidateAll}
		if len(args) == 1 {
			req.BBox = args[0]
		}
		return withService(cmd.Context(), func(d *bootstrap.Deps) error {
			n, err := d.Service.Invalidate(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d entries\n", n)
			return nil
		})
	},
}

var missesCmd = &cobra.Command{
	Use:   "misses",
	Short: "Show recent hotel names that matched nothing (needs MYSQL_DSN)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(d *bootstrap.Deps) error {
			out, err := d.Service.RecentMatchMisses(cmd.Context(), missesLimit)
			if err != nil {
				return err
			}
			return printJSON(out)
		})
	},
}

var loyaltyCmd = &cobra.Command{
	Use:   "loyalty",
	Short: "List the loyalty programs hotels are grouped into",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range app.LoyaltyPrograms {
			fmt.Println(p)
		}
		fmt.Println(app.OtherProgram)
	},
}
