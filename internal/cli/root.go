// Package cli defines the cobra command tree for realtyads.
package cli

import (
	"github.com/spf13/cobra"
)

var flagConfig string

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "realtyads",
		Short:         "Real estate classifieds API server",
		Long:          "The realtyads backend: property listings, geospatial search, wishlists, and agent enquiries over a JSON API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "realtyads.yaml", "path to the YAML config file")

	root.AddCommand(
		newServeCmd(),
		newMintTokenCmd(),
		newVersionCmd(),
	)

	return root
}
