package builder

import (
	"os"
	"os/exec"
)

// defaultCompiler is used when no compiler is configured or found
const defaultCompiler = "gcc"

var (
	commonCCompilers   = []string{"gcc", "clang", "icx", "icc", "tcc"}
	commonCxxCompilers = []string{"g++", "clang++", "icpx", "icpc", "gcc", "clang"}
)

// lookPath is replaced in tests
var lookPath = exec.LookPath

// findCompiler attempts to find a suitable C or C++ compiler on the system
func findCompiler(needCxx bool) string {
	cc := os.Getenv("CC")
	cxx := os.Getenv("CXX")

	if needCxx && cxx != "" {
		return cxx
	}
	if !needCxx && cc != "" {
		return cc
	}

	compilersToTry := commonCCompilers
	if needCxx {
		compilersToTry = commonCxxCompilers
	}

	for _, compiler := range compilersToTry {
		if _, err := lookPath(compiler); err == nil {
			return compiler
		}
	}

	return defaultCompiler
}
