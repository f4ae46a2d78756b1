package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fedquery/internal/format"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outputStyle(cmd) == format.StyleJSON {
				return format.PrintJSON(os.Stdout, map[string]string{
					"version": version,
					"commit":  commit,
				})
			}
			_, _ = fmt.Fprintf(os.Stdout, "fedq version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
