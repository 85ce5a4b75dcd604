package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/scanlock/internal/export"
	"github.com/sells-group/scanlock/internal/model"
	"github.com/sells-group/scanlock/internal/store"
)

var (
	decisionsSource string
	decisionsLimit  int
	decisionsOffset int
	exportOut       string
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Inspect decision history",
}

var decisionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded decisions as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		decisions, err := env.Store.ListDecisions(ctx, store.DecisionFilter{
			Source: model.DecisionSource(decisionsSource),
			Limit:  decisionsLimit,
			Offset: decisionsOffset,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(decisions)
	},
}

var decisionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export decision history to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		decisions, err := env.Store.ListDecisions(ctx, store.DecisionFilter{
			Source: model.DecisionSource(decisionsSource),
			Limit:  decisionsLimit,
			Offset: decisionsOffset,
		})
		if err != nil {
			return err
		}

		if err := export.WriteDecisions(exportOut, decisions); err != nil {
			return err
		}
		zap.L().Info("decisions exported",
			zap.String("path", exportOut),
			zap.Int("count", len(decisions)))
		return nil
	},
}

func init() {
	decisionsCmd.PersistentFlags().StringVar(&decisionsSource, "source", "", "filter by decision source (evaluation, emergency, burst)")
	decisionsCmd.PersistentFlags().IntVar(&decisionsLimit, "limit", 0, "maximum decisions to return")
	decisionsCmd.PersistentFlags().IntVar(&decisionsOffset, "offset", 0, "number of decisions to skip")

	decisionsExportCmd.Flags().StringVar(&exportOut, "out", "decisions.xlsx", "output file path")

	decisionsCmd.AddCommand(decisionsListCmd)
	decisionsCmd.AddCommand(decisionsExportCmd)
	rootCmd.AddCommand(decisionsCmd)
}
