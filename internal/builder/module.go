package builder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/qobs-build/abs/internal/msg"
)

// BuildFunc builds the project described by configPath inside dir. rootDir is the
// directory of the top-level project.
type BuildFunc func(dir, configPath, rootDir string) error

// RunModules builds each module in declaration order and stops at the first failure
func RunModules(w io.Writer, modules []ModuleSection, baseDir, rootDir string, build BuildFunc) error {
	for _, mod := range modules {
		dir := filepath.Join(baseDir, mod.Dir)
		configName := mod.Config
		if configName == "" {
			configName = ConfigFilename
		}

		fmt.Fprintf(w, "%s building module: %s (%s, %s)\n", color.GreenString("[modules]"), mod.Name, mod.Dir, configName)

		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) && mod.Source != "" {
			if err := fetchModule(w, mod.Source, dir, configName); err != nil {
				return fmt.Errorf("failed to fetch module %q: %w", mod.Name, err)
			}
		}

		configPath := filepath.Join(dir, configName)
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("%w: module %q: config %s not found", ErrConfig, mod.Name, configPath)
		}

		err := build(dir, configPath, rootDir)
		msg.Success(w, color.YellowString("[modules][%s]", mod.Name), err == nil)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrModuleFailed, mod.Name, err)
		}
	}
	return nil
}
