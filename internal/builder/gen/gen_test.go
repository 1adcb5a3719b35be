package gen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// touch creates path (and its parent directories) with the given modification time
func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

type event struct {
	kind string
	path string
}

type recorder struct {
	events []event
	reason LinkReason
}

func (r *recorder) ReportSkip(src string)         { r.events = append(r.events, event{"skip", src}) }
func (r *recorder) ReportCompile(src, obj string) { r.events = append(r.events, event{"compile", src}) }
func (r *recorder) ReportMissing(src string)      { r.events = append(r.events, event{"missing", src}) }
func (r *recorder) ReportUpToDate(out string)     { r.events = append(r.events, event{"uptodate", out}) }
func (r *recorder) ReportLink(out string, reason LinkReason) {
	r.events = append(r.events, event{"link", out})
	r.reason = reason
}

type project struct {
	dir string
	cfg *BuildConfig
}

func newProject(t *testing.T, kind BuildKind, phase Phase, sources ...string) *project {
	t.Helper()
	dir := t.TempDir()
	cfg, err := NewBuildConfig(Target{
		Compiler:    "gcc",
		CommonFlags: []string{"-Wall", "-O2"},
		Sources:     sources,
		Libs:        []string{"m"},
		SrcDir:      filepath.Join(dir, "src"),
		ObjDir:      filepath.Join(dir, "objs"),
		OutDir:      filepath.Join(dir, "bin"),
		Output:      "app",
		Kind:        kind,
		Phase:       phase,
	})
	require.NoError(t, err)
	return &project{dir: dir, cfg: cfg}
}

func (p *project) src(name string) string { return p.cfg.SourcePath(name) }
func (p *project) obj(name string) string { return ObjectPath(p.cfg.ObjDir(), name) }

// countCompiles counts compile commands in a synthesized command
func countCompiles(cmd string) int {
	n := 0
	for _, step := range strings.Split(cmd, " && ") {
		if strings.Contains(step, " -c ") {
			n++
		}
	}
	return n
}

func TestScenarioA_FreshBinary(t *testing.T) {
	p := newProject(t, Binary, Both, "a.c", "b.c")
	touch(t, p.src("a.c"), base)
	touch(t, p.src("b.c"), base)

	rec := &recorder{}
	out, err := Synthesize(p.cfg, false, rec)
	require.NoError(t, err)

	want := strings.Join([]string{
		"gcc -Wall -O2 -c " + p.src("a.c") + " -o " + p.obj("a.c"),
		"gcc -Wall -O2 -c " + p.src("b.c") + " -o " + p.obj("b.c"),
		"gcc -Wall -O2 " + p.obj("a.c") + " " + p.obj("b.c") + " -lm -o " + p.cfg.OutputPath(),
	}, " && ")
	assert.Equal(t, want, out.Command)
	assert.Equal(t, []string{p.src("a.c"), p.src("b.c")}, out.Compiled)
	assert.Equal(t, LinkCompiled, out.Link)
	assert.False(t, out.NothingToDo())
	assert.Equal(t, []event{
		{"compile", p.src("a.c")},
		{"compile", p.src("b.c")},
		{"link", p.cfg.OutputPath()},
	}, rec.events)

	// directories are created on demand
	assert.DirExists(t, p.cfg.ObjDir())
	assert.DirExists(t, p.cfg.OutDir())
}

func TestScenarioB_UpToDate(t *testing.T) {
	p := newProject(t, Binary, Both, "a.c", "b.c")
	touch(t, p.src("a.c"), base)
	touch(t, p.src("b.c"), base)
	touch(t, p.obj("a.c"), base.Add(time.Minute))
	touch(t, p.obj("b.c"), base.Add(time.Minute))
	touch(t, p.cfg.OutputPath(), base.Add(2*time.Minute))

	rec := &recorder{}
	out, err := Synthesize(p.cfg, false, rec)
	require.NoError(t, err)
	assert.True(t, out.NothingToDo())
	assert.Equal(t, NoOpCommand, out.Command)
	assert.Equal(t, LinkUpToDate, out.Link)
	assert.Empty(t, out.Compiled)
	assert.Equal(t, 2, out.Ledger.Len())
	assert.Equal(t, []event{
		{"skip", p.src("a.c")},
		{"skip", p.src("b.c")},
		{"uptodate", p.cfg.OutputPath()},
	}, rec.events)
}

func TestScenarioC_BinaryMissing(t *testing.T) {
	p := newProject(t, Binary, Both, "a.c", "b.c")
	touch(t, p.src("a.c"), base)
	touch(t, p.src("b.c"), base)
	touch(t, p.obj("a.c"), base.Add(time.Minute))
	touch(t, p.obj("b.c"), base.Add(time.Minute))

	out, err := Synthesize(p.cfg, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, countCompiles(out.Command))
	assert.Equal(t, LinkOutputMissing, out.Link)
	assert.Equal(t, "gcc -Wall -O2 "+p.obj("a.c")+" "+p.obj("b.c")+" -lm -o "+p.cfg.OutputPath(), out.Command)
}

func TestScenarioD_StaticLibrary(t *testing.T) {
	p := newProject(t, StaticLibrary, Both, "a.c", "b.c")
	touch(t, p.src("a.c"), base.Add(time.Hour)) // stale
	touch(t, p.src("b.c"), base)
	touch(t, p.obj("a.c"), base.Add(time.Minute))
	touch(t, p.obj("b.c"), base.Add(time.Minute))
	touch(t, p.cfg.OutputPath(), base.Add(2*time.Minute))

	out, err := Synthesize(p.cfg, false, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.dir, "bin", "libapp.a"), p.cfg.OutputPath())

	steps := strings.Split(out.Command, " && ")
	require.Len(t, steps, 2)
	assert.Equal(t, "gcc -Wall -O2 -c "+p.src("a.c")+" -o "+p.obj("a.c"), steps[0])
	assert.Equal(t, "ar rcs "+p.cfg.OutputPath()+" "+p.obj("a.c")+" "+p.obj("b.c"), steps[1])
}

func TestScenarioE_LinkOnly(t *testing.T) {
	p := newProject(t, Binary, LinkOnly, "a.c", "b.c")
	// sources are newer than everything, but link-only never compiles
	touch(t, p.src("a.c"), base.Add(time.Hour))
	touch(t, p.src("b.c"), base.Add(time.Hour))
	touch(t, p.obj("a.c"), base.Add(2*time.Minute))
	touch(t, p.obj("b.c"), base)
	touch(t, p.cfg.OutputPath(), base.Add(time.Minute))

	rec := &recorder{}
	out, err := Synthesize(p.cfg, false, rec)
	require.NoError(t, err)
	assert.Equal(t, 0, countCompiles(out.Command))
	assert.Equal(t, LinkObjectNewer, out.Link)
	assert.Equal(t, "gcc -Wall -O2 "+p.obj("a.c")+" "+p.obj("b.c")+" -lm -o "+p.cfg.OutputPath(), out.Command)
	assert.Equal(t, []event{{"link", p.cfg.OutputPath()}}, rec.events)
	assert.Equal(t, []string{p.obj("a.c"), p.obj("b.c")}, out.Ledger.Objects())
}

func TestCompileOnlyNeverLinks(t *testing.T) {
	p := newProject(t, Binary, CompileOnly, "a.c")
	touch(t, p.src("a.c"), base)

	out, err := Synthesize(p.cfg, false, nil)
	require.NoError(t, err)
	assert.Equal(t, "gcc -Wall -O2 -c "+p.src("a.c")+" -o "+p.obj("a.c"), out.Command)
	assert.Equal(t, LinkNotRun, out.Link)

	// nothing stale and no link phase: no-op
	touch(t, p.obj("a.c"), base.Add(time.Minute))
	out, err = Synthesize(p.cfg, false, nil)
	require.NoError(t, err)
	assert.True(t, out.NothingToDo())
}

func TestIdempotence(t *testing.T) {
	p := newProject(t, Binary, Both, "a.c", "sub/b.c")
	touch(t, p.src("a.c"), base)
	touch(t, p.src("sub/b.c"), base)

	out, err := Synthesize(p.cfg, false, nil)
	require.NoError(t, err)
	require.False(t, out.NothingToDo())

	// simulate the toolchain producing every artifact
	for _, obj := range out.Ledger.Objects() {
		touch(t, obj, base.Add(time.Minute))
	}
	touch(t, p.cfg.OutputPath(), base.Add(2*time.Minute))

	out, err = Synthesize(p.cfg, false, nil)
	require.NoError(t, err)
	assert.True(t, out.NothingToDo())

	again, err := Synthesize(p.cfg, false, nil)
	require.NoError(t, err)
	assert.Equal(t, out.Command, again.Command)
}

func TestForceRecompile(t *testing.T) {
	p := newProject(t, Binary, Both, "a.c", "b.c")
	touch(t, p.src("a.c"), base)
	touch(t, p.src("b.c"), base)
	touch(t, p.obj("a.c"), base.Add(time.Minute))
	touch(t, p.obj("b.c"), base.Add(time.Minute))
	touch(t, p.cfg.OutputPath(), base.Add(2*time.Minute))

	out, err := Synthesize(p.cfg, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, countCompiles(out.Command))
	assert.True(t, out.Link.Required())
	assert.Contains(t, out.Command, "-o "+p.cfg.OutputPath())

	// link-only still relinks when forced
	lp := &project{dir: p.dir}
	lp.cfg, err = NewBuildConfig(Target{
		Compiler: "gcc", Sources: []string{"a.c", "b.c"}, Output: "app", Phase: LinkOnly,
		SrcDir: p.cfg.SrcDir(), ObjDir: p.cfg.ObjDir(), OutDir: p.cfg.OutDir(),
	})
	require.NoError(t, err)
	out, err = Synthesize(lp.cfg, true, nil)
	require.NoError(t, err)
	assert.Equal(t, LinkForced, out.Link)
	assert.Equal(t, 0, countCompiles(out.Command))
}

func TestSharedLibrary(t *testing.T) {
	p := newProject(t, SharedLibrary, Both, "a.c")
	touch(t, p.src("a.c"), base)

	out, err := Synthesize(p.cfg, false, nil)
	require.NoError(t, err)
	want := "gcc -fPIC -Wall -O2 -c " + p.src("a.c") + " -o " + p.obj("a.c") +
		" && gcc -shared " + p.obj("a.c") + " -lm -o " + filepath.Join(p.dir, "bin", "libapp.so")
	assert.Equal(t, want, out.Command)
}

func TestLinkMonotonicity(t *testing.T) {
	tests := []struct {
		name   string
		output time.Time
		want   LinkReason
	}{
		{"output older than an object", base.Add(30 * time.Second), LinkObjectNewer},
		{"output equal to newest object", base.Add(time.Minute), LinkUpToDate},
		{"output newer than all objects", base.Add(time.Hour), LinkUpToDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProject(t, Binary, Both, "a.c", "b.c")
			touch(t, p.src("a.c"), base)
			touch(t, p.src("b.c"), base)
			touch(t, p.obj("a.c"), base.Add(time.Second))
			touch(t, p.obj("b.c"), base.Add(time.Minute))
			touch(t, p.cfg.OutputPath(), tt.output)

			out, err := Synthesize(p.cfg, false, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Link)
			assert.Equal(t, tt.want.Required(), !out.NothingToDo())
		})
	}
}

func TestLinkOnlyMissingObject(t *testing.T) {
	p := newProject(t, Binary, LinkOnly, "a.c", "b.c")
	touch(t, p.obj("a.c"), base)
	touch(t, p.cfg.OutputPath(), base.Add(time.Minute))

	out, err := Synthesize(p.cfg, false, nil)
	require.NoError(t, err)
	assert.Equal(t, LinkObjectMissing, out.Link)
}

func TestMissingSource(t *testing.T) {
	p := newProject(t, Binary, Both, "a.c", "gone.c")
	touch(t, p.src("a.c"), base)
	touch(t, p.obj("a.c"), base.Add(time.Minute))
	touch(t, p.obj("gone.c"), base.Add(time.Minute))
	touch(t, p.cfg.OutputPath(), base.Add(time.Hour))

	rec := &recorder{}
	out, err := Synthesize(p.cfg, false, rec)
	require.NoError(t, err)
	assert.Equal(t, []string{p.src("gone.c")}, out.Missing)
	assert.ErrorIs(t, out.Err(), ErrSourceNotFound)
	assert.Contains(t, rec.events, event{"missing", p.src("gone.c")})
	assert.Equal(t, 2, out.Ledger.Len())
}

func TestMissingSourceFirstBuild(t *testing.T) {
	p := newProject(t, Binary, Both, "a.c", "gone.c")
	touch(t, p.src("a.c"), base)

	for _, force := range []bool{false, true} {
		rec := &recorder{}
		out, err := Synthesize(p.cfg, force, rec)
		require.NoError(t, err)
		assert.Equal(t, []string{p.src("gone.c")}, out.Missing)
		assert.Equal(t, []string{p.src("a.c")}, out.Compiled)
		assert.ErrorIs(t, out.Err(), ErrSourceNotFound)
		assert.NotContains(t, out.Command, p.src("gone.c"))
		assert.Contains(t, rec.events, event{"missing", p.src("gone.c")})
		assert.NotContains(t, rec.events, event{"compile", p.src("gone.c")})
	}
}

func TestPkgConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := NewBuildConfig(Target{
		Compiler:      "cc",
		Defines:       []string{"DEBUG=1"},
		IncludeDirs:   []string{"include"},
		LibDirs:       []string{"lib"},
		Libs:          []string{"z", "vendor/libfoo.a"},
		Sources:       []string{"main.c"},
		SrcDir:        filepath.Join(dir, "src"),
		ObjDir:        filepath.Join(dir, "objs"),
		OutDir:        dir,
		Output:        "main",
		PkgConfigPath: "/opt/pc",
		PkgConfigLibs: []string{"sdl2"},
	})
	require.NoError(t, err)
	touch(t, cfg.SourcePath("main.c"), base)

	out, err := Synthesize(cfg, false, nil)
	require.NoError(t, err)
	obj := ObjectPath(cfg.ObjDir(), "main.c")
	want := strings.Join([]string{
		"export PKG_CONFIG_PATH=/opt/pc",
		"cc -DDEBUG=1 -Iinclude $(pkg-config --cflags sdl2) -c " + cfg.SourcePath("main.c") + " -o " + obj,
		"cc " + obj + " -Llib $(pkg-config --libs sdl2) -lz vendor/libfoo.a -o " + filepath.Join(dir, "main"),
	}, " && ")
	assert.Equal(t, want, out.Command)
}

func TestQuotesPathsWithSpaces(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my project")
	cfg, err := NewBuildConfig(Target{
		Compiler: "cc", Sources: []string{"main.c"}, Output: "main",
		SrcDir: dir, ObjDir: filepath.Join(dir, "objs"), OutDir: dir, Phase: CompileOnly,
	})
	require.NoError(t, err)
	touch(t, cfg.SourcePath("main.c"), base)

	out, err := Synthesize(cfg, true, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Command, " -c '"+cfg.SourcePath("main.c")+"' -o ")
}

func TestQuotesDefines(t *testing.T) {
	dir := t.TempDir()
	cfg, err := NewBuildConfig(Target{
		Compiler: "cc", Sources: []string{"main.c"}, Output: "main",
		Defines: []string{`MSG="hello world"`, "VERSION=2", "PATH_SEP='/'"},
		SrcDir:  dir, ObjDir: filepath.Join(dir, "objs"), OutDir: dir, Phase: CompileOnly,
	})
	require.NoError(t, err)
	touch(t, cfg.SourcePath("main.c"), base)

	out, err := Synthesize(cfg, false, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Command, `cc '-DMSG="hello world"' -DVERSION=2 -DPATH_SEP=\'/\' -c `)
}
