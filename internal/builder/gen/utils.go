package gen

import (
	"path/filepath"
	"strings"
)

func write(sb *strings.Builder, s ...string) {
	for _, str := range s {
		sb.WriteString(str)
	}
}

// writeArgs writes each argument preceded by a space
func writeArgs(sb *strings.Builder, args ...string) {
	for _, arg := range args {
		if arg == "" {
			continue
		}
		sb.WriteByte(' ')
		sb.WriteString(arg)
	}
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
