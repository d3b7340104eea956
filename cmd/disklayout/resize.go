package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/disklayout/internal/datasizes"
	"github.com/osbuild/disklayout/internal/device"
	"github.com/osbuild/disklayout/internal/layout"
)

func newResizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resize FILE DEVICE SIZE",
		Short: "set the target size of a partition device and rewrite the layout",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, name, sizeArg := args[0], args[1], args[2]

			requested, err := datasizes.Parse(sizeArg)
			if err != nil {
				return fmt.Errorf("%w: %v", device.ErrInvalidArgument, err)
			}

			doc, err := layout.Load(file)
			if err != nil {
				return err
			}
			d, devices, err := layout.Realize(doc)
			if err != nil {
				return err
			}

			var target *device.PartitionDevice
			for _, dev := range devices {
				if dev.Name() == name {
					target = dev
					break
				}
			}
			if target == nil {
				return fmt.Errorf("no device %q in layout %q", name, file)
			}

			before := target.Size()
			if err := target.SetTargetSize(datasizes.Size(requested)); err != nil {
				return err
			}
			logrus.Debugf("resized %s: %s -> %s", name, before, target.Size())

			if err := layout.Save(file, layout.Snapshot(d, devices)); err != nil {
				return err
			}
			fmt.Printf("%s: %s -> %s\n", name, before, target.Size())
			return nil
		},
	}
}
