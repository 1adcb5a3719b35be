package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/abs/internal/builder/gen"
	"github.com/qobs-build/abs/internal/msg"
)

const defaultObjDir = ".objs"

// hasGlob reports whether s contains glob meta characters
func hasGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// abs makes path absolute relative to the project directory
func (b *Builder) abs(path string) string {
	if path == "" {
		return b.basedir
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(b.basedir, path)
}

// activeMode returns the selected build mode and its section
func (b *Builder) activeMode() (string, ModeSection, error) {
	mode := b.opts.Mode
	if mode == "" {
		mode = b.cfg.Modes.Active
	}
	if mode == "" {
		mode = ModeDebug
	}
	if !slices.Contains(b.cfg.KnownModes(), mode) {
		return "", ModeSection{}, fmt.Errorf("%w: unknown mode %q, known modes: %s", ErrConfig, mode, strings.Join(b.cfg.KnownModes(), ", "))
	}
	return mode, b.cfg.Mode[mode], nil
}

// Resolve turns the project file into a normalized build configuration
func (b *Builder) Resolve() (*gen.BuildConfig, error) {
	if !b.cfg.HasFiles {
		return nil, fmt.Errorf("%w: project has no [files] section", ErrConfig)
	}

	phaseStr := b.opts.Phase
	if phaseStr == "" {
		phaseStr = b.cfg.Compiler.Phase
	}
	phase, err := gen.ParsePhase(phaseStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	kind, err := gen.ParseBuildKind(b.cfg.Compiler.Build)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	_, mode, err := b.activeMode()
	if err != nil {
		return nil, err
	}

	flags := slices.Clone(b.cfg.Flags.Common)
	flags = append(flags, mode.Flags...)
	if mode.Security {
		flags = append(flags, b.cfg.Flags.Hardening...)
	}

	defines := slices.Clone(b.cfg.Flags.Defines)
	defines = append(defines, b.cfg.OrderedDefines()...)

	srcDir := b.abs(b.cfg.Dirs.Src)
	sources, err := expandSources(srcDir, b.cfg.Files.Sources)
	if err != nil {
		return nil, err
	}

	var includeDirs []string
	for _, dir := range b.cfg.Dirs.Includes {
		includeDirs = append(includeDirs, b.abs(dir))
	}

	var searchDirs []string
	for _, dir := range b.cfg.Dirs.Libs {
		searchDirs = append(searchDirs, b.abs(dir))
	}
	libDirs, libs := b.expandLibs(searchDirs, b.cfg.Dependencies.Libs)
	libDirs = appendUnique(libDirs, searchDirs...)

	objDir := b.cfg.Dirs.Objects
	if objDir == "" {
		objDir = defaultObjDir
	}

	compiler := b.cfg.Compiler.CC
	if compiler == "" {
		compiler = findCompiler(hasCxxSources(sources))
	}

	cfg, err := gen.NewBuildConfig(gen.Target{
		Compiler:      compiler,
		CommonFlags:   flags,
		Defines:       defines,
		IncludeDirs:   includeDirs,
		LibDirs:       libDirs,
		Sources:       sources,
		Libs:          libs,
		SrcDir:        srcDir,
		ObjDir:        b.abs(objDir),
		OutDir:        b.abs(b.cfg.Dirs.Output),
		Output:        b.cfg.Files.Output,
		Kind:          kind,
		Phase:         phase,
		PkgConfigPath: b.cfg.Dependencies.PkgConfigPath,
		PkgConfigLibs: b.cfg.Dependencies.PkgConfigLibs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return cfg, nil
}

// expandSources expands source patterns relative to srcDir. Plain paths are kept even
// if they do not exist, so that a missing source is reported by the build.
func expandSources(srcDir string, patterns []string) ([]string, error) {
	var sources []string
	fsys := os.DirFS(srcDir)

	for _, pat := range patterns {
		if !hasGlob(pat) {
			sources = appendUnique(sources, filepath.Clean(pat))
			continue
		}

		var matches []string
		var err error
		if filepath.IsAbs(pat) {
			matches, err = doublestar.FilepathGlob(pat, doublestar.WithFilesOnly())
		} else {
			matches, err = doublestar.Glob(fsys, filepath.ToSlash(pat), doublestar.WithFilesOnly())
		}
		if err != nil {
			return nil, fmt.Errorf("while globbing sources %s: %w", pat, err)
		}
		if len(matches) == 0 {
			msg.Warn("no files matched pattern: %s", pat)
			continue
		}
		for _, match := range matches {
			sources = appendUnique(sources, filepath.FromSlash(match))
		}
	}

	return sources, nil
}

// expandLibs resolves library names, paths and globs into library directories and
// names to link with `-l`
func (b *Builder) expandLibs(searchDirs, patterns []string) (libDirs, libs []string) {
	addMatches := func(matches []string) {
		for _, match := range matches {
			libDirs = appendUnique(libDirs, filepath.Dir(match))
			libs = append(libs, extractLibName(match))
		}
	}

	for _, pat := range patterns {
		switch {
		case hasGlob(pat):
			dirs := searchDirs
			if len(dirs) == 0 || filepath.IsAbs(pat) {
				dirs = []string{b.basedir}
			}
			found := false
			for _, dir := range dirs {
				matches, err := doublestar.FilepathGlob(joinIfRelative(dir, pat), doublestar.WithFilesOnly())
				if err != nil || len(matches) == 0 {
					continue
				}
				addMatches(matches)
				found = true
				break
			}
			if !found {
				msg.Warn("no libs matched pattern: %s", pat)
			}
		case strings.ContainsAny(pat, `/\`) || strings.Contains(pat, ".a") || strings.Contains(pat, ".so"):
			if dir := filepath.Dir(pat); dir != "." {
				libDirs = appendUnique(libDirs, b.abs(dir))
			}
			libs = append(libs, extractLibName(pat))
		default:
			libs = append(libs, pat)
		}
	}

	return libDirs, libs
}

func joinIfRelative(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// extractLibName turns `path/to/libfoo.so.1` into `foo`
func extractLibName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimPrefix(name, "lib")
	if i := strings.Index(name, ".so"); i >= 0 && (len(name) == i+3 || name[i+3] == '.') {
		return name[:i]
	}
	return strings.TrimSuffix(name, ".a")
}

func hasCxxSources(sources []string) bool {
	return slices.ContainsFunc(sources, func(src string) bool {
		return gen.SourceTag(src) == "cpp"
	})
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if !slices.Contains(list, item) {
			list = append(list, item)
		}
	}
	return list
}
