package cli

import (
	"github.com/spf13/cobra"
)

func newForecastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forecast",
		Short: "Show the snow prediction",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []SnowPrediction

			if err := client.Get("/api/snow-prediction", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
