package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "disklayout",
		Short: "inspect and resize partitions in disk layout files",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logging")

	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newResizeCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
