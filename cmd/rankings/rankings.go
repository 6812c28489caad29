package rankings

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/datastore"
)

// Command creates the command printing the next images a user should annotate.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		userID    uint
		limit     int
		algorithm string
	)

	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "Print the head of the stored ranking for a user",
		Long:  "List the highest ranked images the given user has not annotated yet, in annotation order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("algorithm") {
				algorithm = settings.ActiveLearning.Algorithm
			}

			store, err := datastore.New(settings)
			if err != nil {
				return err
			}
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			images, err := store.RankedImages(cmd.Context(), algorithm, userID, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(images) == 0 {
				fmt.Fprintf(out, "No ranked images left for user %d under %q\n", userID, algorithm)
				return nil
			}
			for i, img := range images {
				fmt.Fprintf(out, "%2d. image %d  %s  (%dx%d)\n", i+1, img.ID, img.Filepath, img.Width, img.Height)
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&userID, "user", 0, "Annotator whose finished images are skipped")
	cmd.Flags().IntVar(&limit, "limit", 10, fmt.Sprintf("Number of images to list, one of %v", datastore.RankedImagesLimits))
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Ranking tag to read (default: activelearning.algorithm)")

	return cmd
}
