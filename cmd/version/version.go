package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wildlens/wildlens-go/internal/buildinfo"
)

// Command creates the version command.
func Command(info *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wildlens %s\n", info)
		},
	}
}
