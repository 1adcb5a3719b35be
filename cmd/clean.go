// abs clean [config]
package cmd

import (
	"github.com/qobs-build/abs/internal/builder"
	"github.com/qobs-build/abs/internal/msg"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [config]",
	Short: "Remove object files of the project and its modules",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, err := builder.NewBuilder(configPath(args), "", builder.Options{Mode: flagMode})
		if err != nil {
			msg.Fatal("%v", err)
		}
		if err := b.Clean(); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

func init() {
	// abs clean subcommand
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringVarP(&flagMode, "mode", "m", "", "Resolve the project with the given mode")
}
