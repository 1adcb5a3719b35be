package builder

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

// writeFile creates path relative to dir, backdated so that later outputs are newer
func writeFile(t *testing.T, dir, path, content string) string {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(full, past, past))
	return full
}

type runCall struct {
	dir     string
	command string
	env     []string
}

// fakeRunner records commands and creates the file named by every `-o` (or `ar rcs`)
// so that the next build sees up-to-date artifacts
type fakeRunner struct {
	calls []runCall
	err   error
}

func (r *fakeRunner) Run(dir, command string, env []string) error {
	r.calls = append(r.calls, runCall{dir, command, env})
	if r.err != nil {
		return r.err
	}
	for _, step := range strings.Split(command, " && ") {
		fields := strings.Fields(step)
		var out string
		if len(fields) > 2 && fields[0] == "ar" {
			out = fields[2]
		}
		for i, f := range fields {
			if f == "-o" && i+1 < len(fields) {
				out = fields[i+1]
			}
		}
		if out == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(out, nil, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func newTestBuilder(t *testing.T, configPath string, runner Runner) (*Builder, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	b, err := NewBuilder(configPath, "", Options{Runner: runner, Out: &out})
	require.NoError(t, err)
	return b, &out
}
