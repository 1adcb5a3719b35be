// abs run [config] [-- args]
package cmd

import (
	"github.com/qobs-build/abs/internal/builder"
	"github.com/qobs-build/abs/internal/msg"
	"github.com/spf13/cobra"
)

func doRun(cmd *cobra.Command, args []string) {
	var programArgs []string
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		programArgs = args[dash:] // passed to the program
		args = args[:dash]
	}
	b, err := builder.NewBuilder(configPath(args), "", buildOptions())
	if err != nil {
		msg.Fatal("%v", err)
	}
	if err := b.BuildAndRun(programArgs); err != nil {
		msg.Fatal("%v", err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run [config] [-- args...]",
	Short: "Build and run the project",
	Long:  `Build and run the project binary. Arguments after "--" are passed to the program.`,
	Args:  cobra.ArbitraryArgs,
	Run:   doRun,
}

func init() {
	// abs run subcommand
	rootCmd.AddCommand(runCmd)
	addBuildFlags(runCmd)
}
