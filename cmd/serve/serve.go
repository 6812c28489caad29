package serve

import (
	"github.com/spf13/cobra"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/service"
)

// Command creates the long-running service command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		threshold int
		listen    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Rank the pool whenever it grows and serve Prometheus metrics",
		Long:  "Check the pool size on an interval and run a ranking pass once enough new images arrived. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("threshold") {
				settings.Scheduler.Threshold = threshold
			}
			if cmd.Flags().Changed("listen") {
				settings.Metrics.Listen = listen
			}
			if err := conf.ValidateSettings(settings); err != nil {
				return err
			}

			svc, err := service.New(settings)
			if err != nil {
				return err
			}
			defer svc.Close()

			return svc.Serve(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&threshold, "threshold", 0, "New pool images that trigger a ranking pass")
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address of the metrics endpoint")

	return cmd
}
