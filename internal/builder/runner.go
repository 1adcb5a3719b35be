package builder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Runner executes a synthesized shell command in dir
type Runner interface {
	Run(dir, command string, env []string) error
}

// ShellRunner runs commands with `sh -c`
type ShellRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ShellRunner) Run(dir, command string, env []string) error {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return cmd.Run()
}

// CleanObjects removes every file in dir and then dir itself
func CleanObjects(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(dir); err != nil {
		errs = append(errs, fmt.Errorf("remove object directory: %w", err))
	}
	return errors.Join(errs...)
}
