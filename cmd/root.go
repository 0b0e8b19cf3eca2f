// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCommand returns the sirt3d root command; subcommands are attached by main.
func NewRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sirt3d",
		Short: "Distributed SIRT reconstruction of 3D volumes from projection images",
		Long: `Distributed SIRT reconstruction of 3D volumes from projection images.

Every process of a rows x cols grid owns a z slab of the volume; projections are dealt
round-robin over the processes and the slabs are refined together until the global
residual settles.`,
		SilenceUsage: true,
	}
}
