package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/scanlock/internal/monitoring"
)

var statusLookbackHours int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scanning health metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := monitoring.NewCollector(env.Store).Collect(ctx, statusLookbackHours)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLookbackHours, "lookback", 24, "lookback window in hours")
	rootCmd.AddCommand(statusCmd)
}
