package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/optiscope/pkg/inspector"
)

var forceCmd = &cobra.Command{
	Use:   "force <url> <experiment-id> <variation-id>",
	Short: "Print a URL that forces an experiment into a variation",
	Long: `Print the page URL with the query parameter that buckets the visitor
into the given variation. Open it in a browser to preview the variation.

Example:
  optiscope force "https://shop.example.com/" 123 456`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := inspector.ForceVariationURL(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), u)
		return err
	},
}

func init() {
	rootCmd.AddCommand(forceCmd)
}
