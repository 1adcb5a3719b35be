package gen

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kballard/go-shellquote"
)

// NoOpCommand is emitted when a run has nothing to do
const NoOpCommand = "true"

const (
	picFlag    = "-fPIC"
	sharedFlag = "-shared"
	archiver   = "ar"
)

// LinkReason explains the link/archive decision of a run
type LinkReason int

const (
	LinkNotRun        LinkReason = iota // the phase filter excluded linking
	LinkUpToDate                        // output is newer than every object
	LinkCompiled                        // at least one source was compiled in this run
	LinkForced                          // recompilation was forced
	LinkOutputMissing                   // output does not exist
	LinkObjectMissing                   // an object to link does not exist
	LinkObjectNewer                     // an object is newer than the output
)

func (r LinkReason) String() string {
	switch r {
	case LinkNotRun:
		return "not run"
	case LinkUpToDate:
		return "up to date"
	case LinkCompiled:
		return "objects changed"
	case LinkForced:
		return "forced"
	case LinkOutputMissing:
		return "binary missing"
	case LinkObjectMissing:
		return "object missing"
	case LinkObjectNewer:
		return "object newer than binary"
	}
	return fmt.Sprintf("LinkReason(%d)", int(r))
}

// Required reports whether a link/archive command must be emitted
func (r LinkReason) Required() bool {
	return r >= LinkCompiled
}

// Outcome is the result of one synthesis run
type Outcome struct {
	// Command is a shell command; steps are joined with `&&`
	Command  string
	Compiled []string // sources with a compile command, in order
	Missing  []string // sources that do not exist on disk
	Link     LinkReason
	Ledger   *Ledger
}

// NothingToDo reports whether the run emitted neither compile nor link commands
func (o *Outcome) NothingToDo() bool {
	return o.Command == NoOpCommand
}

// Err returns an error wrapping ErrSourceNotFound if any source was missing
func (o *Outcome) Err() error {
	if len(o.Missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSourceNotFound, strings.Join(o.Missing, ", "))
}

// Synthesize decides which sources are stale and whether the output must be relinked,
// and returns the command that brings cfg's output up to date. objDir and outDir are
// created if missing. r may be nil.
func Synthesize(cfg *BuildConfig, force bool, r Reporter) (*Outcome, error) {
	if r == nil {
		r = NopReporter{}
	}
	for _, dir := range []string{cfg.ObjDir(), cfg.OutDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	out := &Outcome{Ledger: new(Ledger)}
	var steps []string

	// compile phase
	for _, src := range cfg.Sources() {
		path := cfg.SourcePath(src)
		obj := ObjectPath(cfg.ObjDir(), src)

		if cfg.Phase().compiles() {
			stale, err := IsStale(path, obj)
			switch {
			case errors.Is(err, ErrSourceNotFound):
				out.Missing = append(out.Missing, path)
				r.ReportMissing(path)
			case err != nil:
				return nil, err
			case force || stale:
				steps = append(steps, compileCommand(cfg, path, obj))
				out.Compiled = append(out.Compiled, path)
				r.ReportCompile(path, obj)
			default:
				r.ReportSkip(path)
			}
		}

		out.Ledger.Record(path, obj)
	}

	// link/archive phase
	if cfg.Phase().links() {
		reason, err := linkReason(cfg, out.Ledger, len(out.Compiled) > 0, force)
		if err != nil {
			return nil, err
		}
		out.Link = reason
		if reason.Required() {
			steps = append(steps, linkCommand(cfg, out.Ledger))
			r.ReportLink(cfg.OutputPath(), reason)
		} else {
			r.ReportUpToDate(cfg.OutputPath())
		}
	}

	if len(steps) == 0 {
		out.Command = NoOpCommand
		return out, nil
	}

	if cfg.PkgConfigPath() != "" && len(cfg.PkgConfigLibs()) > 0 {
		steps = append([]string{"export PKG_CONFIG_PATH=" + shellquote.Join(cfg.PkgConfigPath())}, steps...)
	}
	out.Command = strings.Join(steps, " && ")
	return out, nil
}

// linkReason decides whether the output has to be linked from the ledger objects
func linkReason(cfg *BuildConfig, ledger *Ledger, compiled, force bool) (LinkReason, error) {
	if compiled {
		return LinkCompiled, nil
	}
	if force {
		return LinkForced, nil
	}

	output := cfg.OutputPath()
	outInfo, err := os.Stat(output)
	if errors.Is(err, os.ErrNotExist) {
		return LinkOutputMissing, nil
	} else if err != nil {
		return LinkNotRun, fmt.Errorf("stat output %s: %w", output, err)
	}

	for _, obj := range ledger.Objects() {
		objInfo, err := os.Stat(obj)
		if errors.Is(err, os.ErrNotExist) {
			return LinkObjectMissing, nil
		} else if err != nil {
			return LinkNotRun, fmt.Errorf("stat object %s: %w", obj, err)
		}
		if objInfo.ModTime().After(outInfo.ModTime()) {
			return LinkObjectNewer, nil
		}
	}

	return LinkUpToDate, nil
}

func compileCommand(cfg *BuildConfig, src, obj string) string {
	var sb strings.Builder
	write(&sb, cfg.Compiler())
	if cfg.Kind() == SharedLibrary {
		writeArgs(&sb, picFlag)
	}
	writeArgs(&sb, cfg.CommonFlags()...)
	for _, def := range cfg.Defines() {
		writeArgs(&sb, shellquote.Join("-D"+def))
	}
	for _, dir := range cfg.IncludeDirs() {
		writeArgs(&sb, "-I"+shellquote.Join(dir))
	}
	for _, pkg := range cfg.PkgConfigLibs() {
		writeArgs(&sb, "$(pkg-config --cflags "+shellquote.Join(pkg)+")")
	}
	writeArgs(&sb, "-c", shellquote.Join(src), "-o", shellquote.Join(obj))
	return sb.String()
}

func linkCommand(cfg *BuildConfig, ledger *Ledger) string {
	var sb strings.Builder
	output := shellquote.Join(cfg.OutputPath())

	switch cfg.Kind() {
	case StaticLibrary:
		write(&sb, archiver)
		writeArgs(&sb, "rcs", output)
		writeArgs(&sb, shellquote.Join(ledger.Objects()...))
		return sb.String()
	case SharedLibrary:
		write(&sb, cfg.Compiler())
		writeArgs(&sb, sharedFlag)
	case Binary:
		write(&sb, cfg.Compiler())
		writeArgs(&sb, cfg.CommonFlags()...)
	}

	writeArgs(&sb, shellquote.Join(ledger.Objects()...))
	writeLinkFlags(&sb, cfg)
	writeArgs(&sb, "-o", output)
	return sb.String()
}

func writeLinkFlags(sb *strings.Builder, cfg *BuildConfig) {
	for _, dir := range cfg.LibDirs() {
		writeArgs(sb, "-L"+shellquote.Join(dir))
	}
	for _, pkg := range cfg.PkgConfigLibs() {
		writeArgs(sb, "$(pkg-config --libs "+shellquote.Join(pkg)+")")
	}
	for _, lib := range cfg.Libs() {
		if strings.ContainsAny(lib, `/\`) {
			writeArgs(sb, shellquote.Join(lib))
		} else {
			writeArgs(sb, "-l"+shellquote.Join(lib))
		}
	}
}
