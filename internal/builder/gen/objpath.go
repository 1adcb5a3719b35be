package gen

import (
	"path/filepath"
	"strings"
)

// flattenChar replaces path separators in object file names
const flattenChar = '_'

// SourceTag classifies a source file by its extension
func SourceTag(src string) string {
	switch filepath.Ext(src) {
	case ".c":
		return "c"
	case ".cpp", ".cc", ".cxx", ".c++", ".C":
		return "cpp"
	case ".h", ".hpp", ".hh", ".hxx":
		return "h"
	case ".s", ".S", ".asm":
		return "asm"
	}
	return "unk"
}

// ObjectPath maps a source path (relative to the source directory) to its object
// file: `<objDir>/<tag>_<flattened stem>.o`. The same inputs always give the same path.
func ObjectPath(objDir, src string) string {
	src = filepath.ToSlash(filepath.Clean(src))
	stem := strings.TrimSuffix(src, filepath.Ext(src))
	flat := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return flattenChar
		}
		return r
	}, stem)
	flat = strings.TrimLeft(flat, string(flattenChar))
	return joinPath(objDir, SourceTag(src)+string(flattenChar)+flat+".o")
}
