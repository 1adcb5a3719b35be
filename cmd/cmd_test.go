package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qobs-build/abs/internal/builder"
	"github.com/qobs-build/abs/internal/builder/gen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	for _, lib := range []bool{false, true} {
		dir := t.TempDir()
		initIn(dir, "hello", lib)

		b, err := builder.NewBuilderInDirectory(dir, builder.Options{Out: new(strings.Builder)})
		require.NoError(t, err)
		assert.Equal(t, "hello", b.Config().Project.Name)

		cfg, err := b.Resolve()
		require.NoError(t, err)
		if lib {
			assert.Equal(t, gen.StaticLibrary, cfg.Kind())
			assert.Equal(t, []string{"hello_world.c"}, cfg.Sources())
			assert.Equal(t, filepath.Join(dir, "build", "libhello.a"), cfg.OutputPath())
		} else {
			assert.Equal(t, gen.Binary, cfg.Kind())
			assert.Equal(t, []string{"main.c"}, cfg.Sources())
			assert.Equal(t, []string{"-Wall", "-Wextra", "-g", "-O0"}, cfg.CommonFlags())
		}
		assert.Equal(t, filepath.Join(dir, "build", "obj"), cfg.ObjDir())
	}
}

func TestConfigPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, builder.ConfigFilename), configPath([]string{dir}))

	file := filepath.Join(dir, "other.toml")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Equal(t, file, configPath([]string{file}))

	assert.Equal(t, builder.ConfigFilename, configPath(nil))
}

func TestEnumValue(t *testing.T) {
	e := NewEnumValue("", map[string]string{"": "unset", "b": "", "a": "first"})
	assert.Equal(t, []string{"a", "b"}, e.AllowedKeys())
	assert.Equal(t, "[a, b]", e.HelpString())

	require.NoError(t, e.Set("b"))
	assert.Equal(t, "b", e.Value())
	assert.Error(t, e.Set("c"))
	assert.Equal(t, "b", e.Value())

	items, _ := e.CompletionFunc()(nil, nil, "")
	assert.Equal(t, []string{"a\tfirst", "b"}, items)

	assert.Panics(t, func() { NewEnumValue("z", map[string]string{"a": ""}) })
}
