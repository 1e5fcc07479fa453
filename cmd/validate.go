package cmd

import (
	"errors"
	"fmt"

	"github.com/sherine-k/schedtrace/pkg/command"
	"github.com/spf13/cobra"
)

var requestFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an engine command request",
	Long: `Validate checks a run_simulation or run_with_parameters request file against
the parameter ranges accepted by the engine, without dispatching it.

Example request:
  command: run_simulation
  atLambda: 2.5
  cbtLambda: 0.5
  numOfProcesses: 20
  contextSwitch: 5
  queue: RR
  timeQuantum: 40`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&requestFile, "file", "f", "", "Path to the request file (YAML or JSON)")
	validateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	req, err := command.LoadRequest(requestFile)
	if err != nil {
		return err
	}

	if err := req.Validate(); err != nil {
		var ve *command.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		fmt.Printf("%s request in %s is invalid:\n", req.Name(), requestFile)
		for _, f := range ve.Fields {
			fmt.Printf("  - %s: %s\n", f.Field, f.Message)
		}
		return fmt.Errorf("%d invalid parameter(s)", len(ve.Fields))
	}

	algorithm := req.Algorithm()
	fmt.Printf("%s request in %s is valid\n", req.Name(), requestFile)
	fmt.Printf("  - Algorithm: %s\n", algorithm)
	fmt.Printf("  - Preemptive: %t\n", algorithm.IsPreemptive())
	fmt.Printf("  - Multi-level: %t\n", algorithm.IsMultiLevel())
	return nil
}
