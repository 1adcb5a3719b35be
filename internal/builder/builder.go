package builder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/abs/internal/builder/gen"
	"github.com/qobs-build/abs/internal/msg"
)

var (
	ErrConfig       = errors.New("configuration error")
	ErrBuildFailed  = errors.New("build failed")
	ErrModuleFailed = errors.New("module build failed")
	ErrCantRunLib   = errors.New("can't run a library target (compiler.build is not binary)")
)

// Options control a build run. They are inherited by module builds.
type Options struct {
	Force  bool
	DryRun bool
	// Mode and Phase override the project file when set
	Mode  string
	Phase string

	Runner Runner
	Out    io.Writer
}

type Builder struct {
	cfg        *Config
	basedir    string
	configPath string
	rootDir    string // empty for the top-level project
	env        ConfigEnv
	opts       Options
	// parents are the project files of the modules being built around this one
	parents []string
}

// NewBuilder loads the project file at configPath. rootDir is the directory of the
// top-level project, or empty if this is the top-level project.
func NewBuilder(configPath, rootDir string, opts Options) (*Builder, error) {
	configPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}
	basedir := filepath.Dir(configPath)

	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Runner == nil {
		opts.Runner = ShellRunner{Stdout: os.Stdout, Stderr: os.Stderr}
	}

	envRoot := rootDir
	if envRoot == "" {
		envRoot = basedir
	}
	env := NewConfigEnv(basedir, envRoot)

	cfg, err := ParseConfigFromFile(configPath, env)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to load configuration: %w", ErrConfig, err)
		}
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	return &Builder{
		cfg:        cfg,
		basedir:    basedir,
		configPath: configPath,
		rootDir:    rootDir,
		env:        env,
		opts:       opts,
	}, nil
}

// NewBuilderInDirectory loads the default project file of the project in path
func NewBuilderInDirectory(path string, opts Options) (*Builder, error) {
	return NewBuilder(filepath.Join(path, ConfigFilename), "", opts)
}

func (b *Builder) Config() *Config { return b.cfg }

func (b *Builder) isRoot() bool { return b.rootDir == "" }

func (b *Builder) name() string {
	if b.cfg.Project.Name != "" {
		return b.cfg.Project.Name
	}
	return "<program>"
}

// Build builds all modules of the project and then the project itself
func (b *Builder) Build() error {
	w := b.opts.Out

	if b.isRoot() {
		if b.cfg.Project.Name != "" {
			fmt.Fprintf(w, "Building project %s\n", color.YellowString(b.cfg.Project.Name))
		}
		if b.cfg.Project.Version != "" {
			fmt.Fprintf(w, "Version %s\n", color.BlueString(b.cfg.Project.Version))
		}
	}

	if err := b.cfg.RunBuildScript(b.env); err != nil {
		return err
	}

	if err := RunModules(w, b.cfg.Modules, b.basedir, b.env.RootDir, b.buildModule); err != nil {
		return err
	}

	// projects without files only aggregate modules
	if !b.cfg.HasFiles {
		return nil
	}

	target, err := b.Resolve()
	if err != nil {
		return err
	}
	msg.Debug("%s: %d sources, %s %s, phase %s", b.name(), len(target.Sources()), target.Kind(), target.OutputPath(), target.Phase())

	reporter := msg.NewReporter(w)
	if !b.isRoot() {
		reporter.Indent = "  "
	}
	outcome, err := gen.Synthesize(target, b.opts.Force, reporter)
	if err != nil {
		return err
	}
	if err := outcome.Err(); err != nil {
		return err
	}

	tag := color.BlueString("[gen]")
	if outcome.NothingToDo() {
		fmt.Fprintf(w, "%s %s: nothing to do\n", tag, b.name())
		return b.cleanup(target)
	}

	fmt.Fprintf(w, "%s command: %s\n", tag, color.HiBlackString(outcome.Command))
	if b.opts.DryRun {
		return nil
	}

	var env []string
	if !b.isRoot() {
		env = append(env, "MAIN_DIR="+b.rootDir)
	}
	runErr := b.opts.Runner.Run(b.basedir, outcome.Command, env)
	if b.isRoot() {
		msg.Success(w, tag+": "+b.name(), runErr == nil)
	}
	if runErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrBuildFailed, b.name(), runErr)
	}

	return b.cleanup(target)
}

// module loads a module of this project. A module that leads back to one of its
// parents is an ErrConfig.
func (b *Builder) module(configPath, rootDir string) (*Builder, error) {
	parents := append(slices.Clone(b.parents), b.configPath)
	if slices.Contains(parents, configPath) {
		return nil, fmt.Errorf("%w: module cycle: %s", ErrConfig, strings.Join(append(parents, configPath), " -> "))
	}
	mb, err := NewBuilder(configPath, rootDir, b.opts)
	if err != nil {
		return nil, err
	}
	mb.parents = parents
	return mb, nil
}

// buildModule builds a module project with the options of this build
func (b *Builder) buildModule(dir, configPath, rootDir string) error {
	mb, err := b.module(configPath, rootDir)
	if err != nil {
		return err
	}
	return mb.Build()
}

// cleanup removes the object directory after a complete build when the project asks for it
func (b *Builder) cleanup(target *gen.BuildConfig) error {
	if !b.cfg.Compiler.Cleanup || target.Phase() != gen.Both || b.opts.DryRun {
		return nil
	}
	msg.Debug("removing object directory %s", target.ObjDir())
	return CleanObjects(target.ObjDir())
}

// Clean removes the object directory of the project and of its modules. Modules
// that were never fetched are skipped.
func (b *Builder) Clean() error {
	var modules []ModuleSection
	for _, mod := range b.cfg.Modules {
		if _, err := os.Stat(filepath.Join(b.basedir, mod.Dir)); err != nil {
			msg.Debug("skipping module %s: %v", mod.Name, err)
			continue
		}
		modules = append(modules, mod)
	}

	err := RunModules(io.Discard, modules, b.basedir, b.env.RootDir, func(dir, configPath, rootDir string) error {
		mb, err := b.module(configPath, rootDir)
		if err != nil {
			return err
		}
		return mb.Clean()
	})
	if err != nil {
		return err
	}
	if !b.cfg.HasFiles {
		return nil
	}

	target, err := b.Resolve()
	if err != nil {
		return err
	}
	fmt.Fprintf(b.opts.Out, "%s %s\n", color.HiGreenString("Removing"), filepath.ToSlash(target.ObjDir()))
	return CleanObjects(target.ObjDir())
}

// BuildAndRun builds the project and runs the produced binary with args
func (b *Builder) BuildAndRun(args []string) error {
	kind, err := gen.ParseBuildKind(b.cfg.Compiler.Build)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if kind != gen.Binary || !b.cfg.HasFiles {
		return ErrCantRunLib
	}

	if err := b.Build(); err != nil {
		return err
	}

	target, err := b.Resolve()
	if err != nil {
		return err
	}

	cmd := exec.Command(target.OutputPath(), args...)
	cmd.Dir = b.basedir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd.Run()
}
