package msg

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/qobs-build/abs/internal/builder/gen"
)

// Reporter prints colored status lines for a build run
type Reporter struct {
	W io.Writer
	// Indent is written before every line, used for nested module builds
	Indent string
}

var _ gen.Reporter = (*Reporter)(nil)

func NewReporter(w io.Writer) *Reporter {
	return &Reporter{W: w}
}

func (r *Reporter) line(tag, verb, path string) {
	fmt.Fprintf(r.W, "%s%s %s %s\n", r.Indent, tag, verb, color.HiBlackString(filepath.ToSlash(path)))
}

func (r *Reporter) ReportSkip(src string) {
	r.line(color.HiBlackString("[skip]"), "up to date:", src)
}

func (r *Reporter) ReportCompile(src, obj string) {
	r.line(color.HiGreenString("[cc]"), "compiling", src)
}

func (r *Reporter) ReportMissing(src string) {
	r.line(color.HiRedString("[error]"), "source not found:", src)
}

func (r *Reporter) ReportLink(output string, reason gen.LinkReason) {
	r.line(color.HiCyanString("[link]"), "linking ("+reason.String()+")", output)
}

func (r *Reporter) ReportUpToDate(output string) {
	r.line(color.HiBlackString("[link]"), "up to date:", output)
}
