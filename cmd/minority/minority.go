package minority

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wildlens/wildlens-go/internal/activelearning"
	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/datastore"
)

// classStore is the part of the datastore the report reads.
type classStore interface {
	CountPoolImages(ctx context.Context) (int64, error)
	ClassCount(ctx context.Context) (int, error)
	LabeledClassCounts(ctx context.Context) (map[int]int, error)
}

// Command creates the minority class report command.
func Command(settings *conf.Settings) *cobra.Command {
	var budget int

	cmd := &cobra.Command{
		Use:   "minority",
		Short: "Print the minority classes and their selection quotas",
		Long:  "Show which classes the next ranking pass treats as under-labeled and how many selections each of them is reserved.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("budget") {
				settings.ActiveLearning.Budget = budget
			}

			store, err := datastore.New(settings)
			if err != nil {
				return err
			}
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			return printReport(cmd.Context(), cmd.OutOrStdout(), store, settings)
		},
	}

	cmd.Flags().IntVar(&budget, "budget", 0, "Budget the quotas are computed for (0 uses the pool size)")

	return cmd
}

// printReport writes the minority table for the current labeled counts.
func printReport(ctx context.Context, w io.Writer, store classStore, settings *conf.Settings) error {
	al := settings.ActiveLearning

	numClasses, err := store.ClassCount(ctx)
	if err != nil || numClasses <= 0 {
		numClasses = al.NumClasses
	}

	budget := al.Budget
	if budget <= 0 {
		pool, err := store.CountPoolImages(ctx)
		if err != nil {
			return err
		}
		budget = int(pool)
	}

	labeled, err := store.LabeledClassCounts(ctx)
	if err != nil {
		return err
	}
	counts := activelearning.CountsFromMap(labeled, numClasses)

	params := activelearning.Params{
		ENMSThreshold:  al.ENMSThreshold,
		IntraThreshold: al.IntraThreshold,
		InterThreshold: al.InterThreshold,
		Alpha:          al.Alpha,
		Beta:           al.Beta,
	}
	m := activelearning.MinorityClasses(counts, numClasses, budget, params)

	fmt.Fprintf(w, "Classes: %d, budget: %d, minority classes: %d\n", numClasses, budget, m.Count)
	fmt.Fprintf(w, "%-8s %-8s %-6s\n", "CLASS", "LABELED", "QUOTA")
	for _, c := range m.Classes {
		fmt.Fprintf(w, "%-8d %-8d %-6d\n", c, counts.Get(c), m.Quotas[c])
	}
	return nil
}
