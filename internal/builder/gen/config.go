package gen

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrNoCompiler = errors.New("no compiler set")
	ErrNoOutput   = errors.New("no output file set")
	ErrNoSources  = errors.New("no sources resolved")
)

// BuildKind is the type of artifact a target produces
type BuildKind int

const (
	Binary BuildKind = iota
	StaticLibrary
	SharedLibrary
)

func (k BuildKind) String() string {
	switch k {
	case Binary:
		return "binary"
	case StaticLibrary:
		return "static"
	case SharedLibrary:
		return "shared"
	}
	return fmt.Sprintf("BuildKind(%d)", int(k))
}

// ParseBuildKind parses the `compiler.build` value of a project file
func ParseBuildKind(s string) (BuildKind, error) {
	switch s {
	case "", "binary":
		return Binary, nil
	case "static":
		return StaticLibrary, nil
	case "shared":
		return SharedLibrary, nil
	}
	return Binary, fmt.Errorf("unknown build kind %q, must be one of: binary, static, shared", s)
}

// Phase filters which half of a build run is allowed to execute
type Phase int

const (
	Both Phase = iota
	CompileOnly
	LinkOnly
)

func (p Phase) String() string {
	switch p {
	case Both:
		return "all"
	case CompileOnly:
		return "compile"
	case LinkOnly:
		return "link"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// ParsePhase parses the `compiler.phase` value of a project file
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "", "all", "both":
		return Both, nil
	case "compile":
		return CompileOnly, nil
	case "link":
		return LinkOnly, nil
	}
	return Both, fmt.Errorf("unknown phase %q, must be one of: all, compile, link", s)
}

func (p Phase) compiles() bool { return p == Both || p == CompileOnly }
func (p Phase) links() bool    { return p == Both || p == LinkOnly }

// Target holds the already-resolved inputs of a BuildConfig. Globs, environment and
// library names are resolved before a Target is built.
type Target struct {
	Compiler      string
	CommonFlags   []string
	Defines       []string
	IncludeDirs   []string
	LibDirs       []string
	Sources       []string // relative to SrcDir
	Libs          []string
	SrcDir        string
	ObjDir        string
	OutDir        string
	Output        string
	Kind          BuildKind
	Phase         Phase
	PkgConfigPath string
	PkgConfigLibs []string
}

// BuildConfig is the normalized description of one build target. It is read-only
// once constructed.
type BuildConfig struct {
	t Target
}

// NewBuildConfig validates t and returns the BuildConfig for it
func NewBuildConfig(t Target) (*BuildConfig, error) {
	if strings.TrimSpace(t.Compiler) == "" {
		return nil, ErrNoCompiler
	}
	if t.Output == "" {
		return nil, ErrNoOutput
	}
	if len(t.Sources) == 0 {
		return nil, ErrNoSources
	}
	switch t.Kind {
	case Binary, StaticLibrary, SharedLibrary:
	default:
		return nil, fmt.Errorf("invalid build kind %v", t.Kind)
	}
	switch t.Phase {
	case Both, CompileOnly, LinkOnly:
	default:
		return nil, fmt.Errorf("invalid phase %v", t.Phase)
	}
	if t.SrcDir == "" {
		t.SrcDir = "."
	}
	if t.OutDir == "" {
		t.OutDir = "."
	}
	if t.ObjDir == "" {
		t.ObjDir = ".objs"
	}

	// flattened object names can collide, e.g. `a/b.c` and `a_b.c`
	owners := make(map[string]string, len(t.Sources))
	for _, src := range t.Sources {
		obj := ObjectPath(t.ObjDir, src)
		if prev, ok := owners[obj]; ok {
			if prev == src {
				return nil, fmt.Errorf("source %s is listed more than once", src)
			}
			return nil, fmt.Errorf("sources %s and %s map to the same object file %s", prev, src, obj)
		}
		owners[obj] = src
	}

	c := &BuildConfig{t: t}
	c.t.CommonFlags = slices.Clone(t.CommonFlags)
	c.t.Defines = slices.Clone(t.Defines)
	c.t.IncludeDirs = slices.Clone(t.IncludeDirs)
	c.t.LibDirs = slices.Clone(t.LibDirs)
	c.t.Sources = slices.Clone(t.Sources)
	c.t.Libs = slices.Clone(t.Libs)
	c.t.PkgConfigLibs = slices.Clone(t.PkgConfigLibs)
	return c, nil
}

func (c *BuildConfig) Compiler() string        { return c.t.Compiler }
func (c *BuildConfig) CommonFlags() []string   { return slices.Clone(c.t.CommonFlags) }
func (c *BuildConfig) Defines() []string       { return slices.Clone(c.t.Defines) }
func (c *BuildConfig) IncludeDirs() []string   { return slices.Clone(c.t.IncludeDirs) }
func (c *BuildConfig) LibDirs() []string       { return slices.Clone(c.t.LibDirs) }
func (c *BuildConfig) Sources() []string       { return slices.Clone(c.t.Sources) }
func (c *BuildConfig) Libs() []string          { return slices.Clone(c.t.Libs) }
func (c *BuildConfig) SrcDir() string          { return c.t.SrcDir }
func (c *BuildConfig) ObjDir() string          { return c.t.ObjDir }
func (c *BuildConfig) OutDir() string          { return c.t.OutDir }
func (c *BuildConfig) Output() string          { return c.t.Output }
func (c *BuildConfig) Kind() BuildKind         { return c.t.Kind }
func (c *BuildConfig) Phase() Phase            { return c.t.Phase }
func (c *BuildConfig) PkgConfigPath() string   { return c.t.PkgConfigPath }
func (c *BuildConfig) PkgConfigLibs() []string { return slices.Clone(c.t.PkgConfigLibs) }

// OutputName returns the file name of the produced artifact (`main`, `libfoo.a` or `libfoo.so`)
func (c *BuildConfig) OutputName() string {
	switch c.t.Kind {
	case StaticLibrary:
		return "lib" + c.t.Output + ".a"
	case SharedLibrary:
		return "lib" + c.t.Output + ".so"
	case Binary:
		return c.t.Output
	}
	panic("OutputName: unreachable")
}

// OutputPath returns the path of the produced artifact inside OutDir
func (c *BuildConfig) OutputPath() string {
	return joinPath(c.t.OutDir, c.OutputName())
}

// SourcePath returns the path of src inside SrcDir. Absolute sources are returned as is.
func (c *BuildConfig) SourcePath(src string) string {
	if filepath.IsAbs(src) {
		return src
	}
	return joinPath(c.t.SrcDir, src)
}
