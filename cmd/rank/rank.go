package rank

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/service"
)

// Command creates the one-shot ranking command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		budget    int
		algorithm string
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Run one ranking pass over the unlabeled pool",
		Long:  "Score every object-detection image, select the annotation order and replace the stored ranking.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("budget") {
				settings.ActiveLearning.Budget = budget
			}
			if cmd.Flags().Changed("algorithm") {
				settings.ActiveLearning.Algorithm = algorithm
			}
			if cmd.Flags().Changed("workers") {
				settings.Features.Workers = workers
			}
			if err := conf.ValidateSettings(settings); err != nil {
				return err
			}

			svc, err := service.New(settings)
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Ranker.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !res.Written {
				fmt.Fprintf(out, "Pool has no usable images (%d in pool), stored ranking left unchanged\n", res.PoolSize)
				return nil
			}
			fmt.Fprintf(out, "Ranked %d of %d images for %q in %v (run %s)\n",
				len(res.Ranked), res.PoolSize, svc.Ranker.Algorithm(), res.Duration.Round(time.Millisecond), res.RunID)
			fmt.Fprintf(out, "  by diversity: %d, by entropy fill: %d, minority classes: %d\n",
				res.Stats.ByDiversity, res.Stats.ByEntropyFill, res.Stats.MinorityClasses)
			return nil
		},
	}

	cmd.Flags().IntVar(&budget, "budget", 0, "Maximum number of images to rank (0 ranks the whole pool)")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Tag the ranking is stored under")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel feature extraction workers")

	return cmd
}
