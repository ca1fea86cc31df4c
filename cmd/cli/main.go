// Command railsim runs rail network scenarios. Without a scenario argument
// it uses the built-in station preset; "-" reads the scenario from stdin.
//
//	railsim run [scenario.yaml] --ticks 600 > log.json
//	railsim serve [scenario.yaml] --addr :8080
//	railsim export [scenario.yaml] > network.geojson
//	railsim validate scenario.yaml
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "railsim",
		Short:        "Rail network simulator with block signaling",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		ticks  int
		delta  float64
		output string
		preset string
	)
	cmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "Run a scenario headless and write the simulation log as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), scenarioArg(args), preset, ticks, delta, output)
		},
	}
	cmd.Flags().IntVarP(&ticks, "ticks", "n", 600, "number of ticks to simulate")
	cmd.Flags().Float64Var(&delta, "delta", 1, "frames advanced per tick")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the log to a file instead of stdout")
	cmd.Flags().StringVar(&preset, "preset", "", "built-in scenario to use when no file is given")
	return cmd
}

func serveCmd() *cobra.Command {
	var (
		addr   string
		fps    int
		preset string
	)
	cmd := &cobra.Command{
		Use:   "serve [scenario]",
		Short: "Run a scenario in real time, streaming frames over SSE",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), scenarioArg(args), preset, addr, fps)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().IntVar(&fps, "fps", 60, "simulation frames per second")
	cmd.Flags().StringVar(&preset, "preset", "", "built-in scenario to use when no file is given")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		output   string
		preset   string
		samples  int
		noRails  bool
		sleepers float64
	)
	cmd := &cobra.Command{
		Use:   "export [scenario]",
		Short: "Build a scenario's network and write it as GeoJSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), scenarioArg(args), preset, output, samples, !noRails, sleepers)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().StringVar(&preset, "preset", "", "built-in scenario to use when no file is given")
	cmd.Flags().IntVar(&samples, "samples", 32, "sample intervals per curve")
	cmd.Flags().BoolVar(&noRails, "no-rails", false, "omit rail lines")
	cmd.Flags().Float64Var(&sleepers, "sleepers", 0, "sleeper spacing; 0 omits sleepers")
	return cmd
}

func validateCmd() *cobra.Command {
	var preset string
	cmd := &cobra.Command{
		Use:   "validate [scenario]",
		Short: "Check a scenario and report its network without simulating",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), scenarioArg(args), preset)
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "built-in scenario to use when no file is given")
	return cmd
}

func scenarioArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
