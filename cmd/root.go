// abs [config], abs build [config]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/qobs-build/abs/internal/builder"
	"github.com/qobs-build/abs/internal/msg"
	"github.com/spf13/cobra"
)

var (
	flagForce  bool
	flagDryRun bool
	flagMode   string
	flagPhase  EnumValue = NewEnumValue("", map[string]string{
		"":        "Use [compiler].phase from the project file",
		"all":     "Compile stale sources and link",
		"compile": "Only compile stale sources",
		"link":    "Only link existing objects",
	})
)

// configPath returns the project file for a target, which may be a directory or a file
func configPath(args []string) string {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return filepath.Join(target, builder.ConfigFilename)
	}
	return target
}

func buildOptions() builder.Options {
	return builder.Options{
		Force:  flagForce,
		DryRun: flagDryRun,
		Mode:   flagMode,
		Phase:  flagPhase.Value(),
	}
}

func doBuild(cmd *cobra.Command, args []string) {
	b, err := builder.NewBuilder(configPath(args), "", buildOptions())
	if err != nil {
		msg.Fatal("%v", err)
	}
	if err := b.Build(); err != nil {
		msg.Fatal("%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "abs [config]",
	Short: "A Build System for C and C++",
	Long: `A Build System for C and C++.

Reads the project file (` + builder.ConfigFilename + ` by default), compiles stale sources and
links the output. If no config is given, uses "./` + builder.ConfigFilename + `".`,
	Args: cobra.MaximumNArgs(1),
	Run:  doBuild,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			msg.Verbose = true
		}
	},
}

var buildCmd = &cobra.Command{
	Use:   "build [config]",
	Short: "Build the project",
	Long:  `Build the project and its modules. If no config is given, uses "./` + builder.ConfigFilename + `"`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

var flagVerbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print debug output")
	addBuildFlags(rootCmd)

	// abs build subcommand
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&flagForce, "force", "f", false, "Recompile all sources")
	cmd.Flags().BoolVarP(&flagDryRun, "dry-run", "n", false, "Print the build command without running it")
	cmd.Flags().StringVarP(&flagMode, "mode", "m", "", "Build with the given mode instead of [modes].active")
	cmd.Flags().Var(&flagPhase, "phase", "Phase to run, one of "+flagPhase.HelpString())
	cmd.RegisterFlagCompletionFunc("phase", flagPhase.CompletionFunc())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
