package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/osbuild/disklayout/internal/datasizes"
	"github.com/osbuild/disklayout/internal/layout"
)

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "print the partition table and per-device size ranges of a layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := layout.Load(args[0])
			if err != nil {
				return err
			}
			d, devices, err := layout.Realize(doc)
			if err != nil {
				return err
			}

			fmt.Printf("disk %s: %s, %d byte sectors, %s grain, %s label\n",
				d.Path,
				datasizes.FromSectors(d.Length, d.SectorSize),
				d.SectorSize,
				datasizes.Size(d.GrainBytes()),
				d.Label)

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "DEVICE\tTYPE\tSTART\tEND\tSIZE\tMIN\tMAX")
			for _, dev := range devices {
				part := dev.Partition()
				min, err := dev.MinSize()
				if err != nil {
					return err
				}
				max, err := dev.MaxSize()
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					dev.Name(), part.Type, part.Start, part.End, dev.Size(), min, max)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			for _, free := range d.FreeRegions() {
				fmt.Printf("free: sectors %d-%d (%s)\n",
					free.Start, free.End, datasizes.FromSectors(free.Length(), d.SectorSize))
			}
			return nil
		},
	}
}
