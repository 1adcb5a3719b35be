// abs docs
package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type docKey struct {
	key, value, help string
}

type docSection struct {
	name string
	keys []docKey
}

var docSections = []docSection{
	{"[project]", []docKey{
		{"name", "string", "project name, printed in the build banner"},
		{"version", "string", "project version, printed in the build banner"},
		{"build", "expr", "script run before the build, may call Patch(path, diff) and ReadFile(path)"},
	}},
	{"[compiler]", []docKey{
		{"cc", "string", "compiler command; default $CC/$CXX, then the first compiler found, then gcc"},
		{"build", "binary|static|shared", "artifact kind, default binary"},
		{"phase", "all|compile|link", "which half of the build runs, default all"},
		{"cleanup", "bool", "remove the object directory after a full build, default false"},
	}},
	{"[flags]", []docKey{
		{"common", "list", "flags passed to every compile and link command"},
		{"hardening", "list", "flags added when the active mode sets security = true"},
		{"defines", "list", "NAME or NAME=VALUE, passed as -D"},
	}},
	{"[modes]", []docKey{
		{"active", "string", "mode used when --mode is not given, default debug"},
	}},
	{"[mode.<name>]", []docKey{
		{"flags", "list", "flags added in this mode"},
		{"security", "bool", "append [flags].hardening"},
	}},
	{"[files]", []docKey{
		{"sources", "list", "source paths or globs relative to dirs.src"},
		{"output", "string", "output name; static and shared libraries become lib<output>.a/.so"},
	}},
	{"[dirs]", []docKey{
		{"src", "string", "source directory, default the project directory"},
		{"output", "string", "output directory, default the project directory"},
		{"includes", "list", "include directories (-I)"},
		{"libs", "list", "library directories (-L), also searched for library globs"},
		{"objects", "string", "object directory, default .objs"},
	}},
	{"[dependencies]", []docKey{
		{"pkg_config_path", "string", "exported as PKG_CONFIG_PATH for the build command"},
		{"pkg_config_libs", "list", "packages passed to pkg-config --cflags/--libs"},
		{"libs", "list", "library names (-l), paths or globs; lib<name>.a/.so is reduced to <name>"},
	}},
	{"[defines]", []docKey{
		{"<NAME>", "string", "extra define, emitted as -DNAME=VALUE or -DNAME when empty"},
	}},
	{"[[modules]]", []docKey{
		{"name", "string", "module name used in output"},
		{"dir", "string", "module directory relative to the project"},
		{"config", "string", "module project file, default abs.toml"},
		{"source", "string", "git source fetched when dir is missing: git:<url>, gh:user/repo, gl:, bb:, sr:, cb:, with optional @branch and #revision"},
	}},
}

func printDocs() {
	fmt.Println("Values may contain {{ expr }} interpolations over target_os, target_arch, environ and root_dir.")
	fmt.Println("Sub-tables of [flags], [files], [dirs] and [dependencies] named by an expression are merged when it is true,")
	fmt.Printf("e.g. %s\n", color.HiBlackString(`[flags.'target_os == "linux"']`))
	fmt.Println("List values may be arrays or space-separated strings.")
	for _, sec := range docSections {
		fmt.Printf("\n%s\n", color.YellowString(sec.name))
		for _, k := range sec.keys {
			fmt.Printf("  %-16s %-22s %s\n", color.GreenString(k.key), color.HiBlackString(k.value), k.help)
		}
	}
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Print the project file reference",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printDocs()
	},
}

func init() {
	// abs docs subcommand
	rootCmd.AddCommand(docsCmd)
}
