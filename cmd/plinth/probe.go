package main

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"
	"github.com/spf13/cobra"

	"github.com/dudk/plinth/atomics"
)

func probeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report CPU features used by the atomic primitives",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cell, err := atomics.NewTagged(atomics.CASAuto)
			if err != nil {
				return err
			}
			defer cell.Deinit()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cpu:          %s\n", cpuid.CPU.BrandName)
			fmt.Fprintf(out, "logical cores: %d\n", cpuid.CPU.LogicalCores)
			fmt.Fprintf(out, "cmpxchg16b:   %t\n", cpuid.CPU.Supports(cpuid.CX16))
			fmt.Fprintf(out, "native cas2:  %t\n", atomics.NativeCAS2())
			fmt.Fprintf(out, "tagged mode:  %v\n", cell.Mode())
			return nil
		},
	}
}
