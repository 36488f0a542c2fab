package main

import (
	"fmt"
	"os"

	"github.com/liquidhelium/verilog-target-turing-complete/pkg/hierarchy"
	"github.com/liquidhelium/verilog-target-turing-complete/pkg/yosys"
	"github.com/spf13/cobra"
)

func main() {
	var top string
	var compact bool
	var noFlatten bool
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "vttc <input> <output-directory>",
		Short: "Compile a hardware description into a grid-sandbox schematic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			driver := &hierarchy.Driver{
				Source:    string(source),
				Top:       top,
				Compact:   compact,
				NoFlatten: noFlatten,
				Verbose:   verbose,
			}

			if verbose {
				fmt.Fprintf(os.Stderr, "synthesizer: %s\n", yosys.Binary())
			}

			project, err := driver.Compile()
			if err != nil {
				return err
			}
			if err := project.Write(args[1]); err != nil {
				return err
			}

			fmt.Printf("wrote %s (%d bytes)\n", args[1]+"/circuit.data", len(project.Top.Data))
			for _, sub := range project.Subs {
				fmt.Printf("  dependency %s (%d bytes)\n", sub.Name, len(sub.Data))
			}
			return nil
		},
	}
	rootCmd.Flags().StringVar(&top, "top", "", "Top module name (required)")
	rootCmd.Flags().BoolVar(&compact, "compact", false, "Compact packing with teleport wires")
	rootCmd.Flags().BoolVar(&noFlatten, "no-flatten", false, "Keep the synthesizer hierarchy unflattened")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	_ = rootCmd.MarkFlagRequired("top")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
