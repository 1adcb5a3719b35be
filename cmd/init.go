// abs init <name>, abs new <path>
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/abs/internal/builder"
	"github.com/qobs-build/abs/internal/msg"
	"github.com/spf13/cobra"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	} else {
		msg.Warn("%s already exists, leaving it as is", filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "abs"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

// defaultConfig returns the project file written by `init` and `new`
func defaultConfig(name string, lib bool) string {
	build, output, sources := "binary", name, `["main.c"]`
	if lib {
		build, sources = "static", `["*.c"]`
	}
	return `[project]
name = "` + name + `"
version = "0.1.0"

[compiler]
# cc = "gcc"
build = "` + build + `"
phase = "all"
cleanup = false

[flags]
common = ["-Wall", "-Wextra"]
hardening = ["-fstack-protector-strong", "-D_FORTIFY_SOURCE=2"]
defines = []

[modes]
active = "debug"

[mode.debug]
flags = ["-g", "-O0"]
security = false

[mode.release]
flags = ["-O2"]
security = true

[files]
sources = ` + sources + `
output = "` + output + `"

[dirs]
src = "src"
output = "build"
includes = ["include"]
libs = []
objects = "build/obj"

[dependencies]
pkg_config_libs = []
libs = []

# [flags.'target_os == "windows"']
# defines = ["WIN32_LEAN_AND_MEAN"]

# [[modules]]
# name = "mylib"
# dir = "mylib"
# source = "gh:someone/mylib"
`
}

// initIn initializes a project in an existing specified directory
func initIn(dir, name string, lib bool) {
	writefile(defaultConfig(name, lib), dir, builder.ConfigFilename)

	mkdir(dir, "src")
	mkdir(dir, "include")

	if lib {
		// src/hello_world.c
		writefile(`#include <stdio.h>
#include "hello_world.h"

void hello_world(void) {
    puts("Hello, World!");
}
`, dir, "src", "hello_world.c")

		// include/hello_world.h
		writefile(`#ifndef HELLOWORLD_H
#define HELLOWORLD_H

#ifdef __cplusplus
extern "C" {
#endif

void hello_world(void);

#ifdef __cplusplus
} // extern "C"
#endif

#endif
`, dir, "include", "hello_world.h")
	} else {
		// src/main.c
		writefile(`#include <stdio.h>

int main(void) {
    puts("Hello, World!");
    return 0;
}
`, dir, "src", "main.c")
	}

	// .gitignore
	writefile(`build/
`, dir, ".gitignore")

	programName := getProgramName()
	fmt.Printf("You can now do %s to build, or %s to build and run.\n", color.HiCyanString(programName+" "+dir), color.HiCyanString(programName+" run "+dir))
}

var library bool

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a new project in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0], library)
	},
}

var newCmd = &cobra.Command{
	Use:   "new <path>",
	Short: "Create a new project in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]), library)
	},
}

func init() {
	// abs init subcommand
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&library, "lib", "l", false, "Create a static library project")

	// abs new subcommand
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolVarP(&library, "lib", "l", false, "Create a static library project")
}
