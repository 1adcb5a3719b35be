package builder

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/qobs-build/abs/internal/msg"
)

var sourceShortcuts = map[string]string{
	"gh:": "https://github.com/",
	"gl:": "https://gitlab.com/",
	"bb:": "https://bitbucket.org/",
	"sr:": "https://sr.ht/",
	"cb:": "https://codeberg.org/",
}

const gitPrefix = "git:"

var (
	errIllegalSource = errors.New("empty or illegal module source")
	errArchiveSource = errors.New("archive module sources are not supported, use a git source")
)

// moduleSource is the parsed `source` of a [[modules]] entry
type moduleSource struct {
	URL      string // always ends in .git
	Branch   string
	Revision string // commit or tag checked out after cloning
}

func (s moduleSource) String() string {
	str := s.URL
	if s.Branch != "" {
		str += "@" + s.Branch
	}
	if s.Revision != "" {
		str += "#" + s.Revision
	}
	return str
}

// parseModuleSource expands shortcuts and splits off `@branch` and `#revision`:
//
//	gh:someone/something@master#0.1.0
//	git:https://example.com/something@feature-branch#12345abc
//	https://example.com/something.git#12345abc
func parseModuleSource(source string) (moduleSource, error) {
	if source == "" {
		return moduleSource{}, errIllegalSource
	}

	remote, explicit := strings.CutPrefix(source, gitPrefix)
	if !explicit {
		for shortcut, base := range sourceShortcuts {
			if rest, ok := strings.CutPrefix(source, shortcut); ok {
				remote, explicit = base+rest, true
				break
			}
		}
	}
	if !explicit && !isURL(source) {
		return moduleSource{}, fmt.Errorf("%w: %q", errIllegalSource, source)
	}

	var res moduleSource
	remote, res.Revision, _ = strings.Cut(remote, "#")
	// `@` before the last slash belongs to the URL, as in ssh://git@host/repo
	if at := strings.LastIndex(remote, "@"); at > strings.LastIndex(remote, "/") {
		remote, res.Branch = remote[:at], remote[at+1:]
	}

	if !strings.HasSuffix(remote, ".git") {
		if !explicit {
			return moduleSource{}, errArchiveSource
		}
		remote += ".git"
	}
	res.URL = remote
	return res, nil
}

func isURL(maybeURL string) bool {
	u, err := url.Parse(maybeURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// cloneFunc is replaced in tests
var cloneFunc = cloneGitRepo

// fetchModule clones source into dir and checks that the clone holds the module's
// project file. dir is removed again if either step fails, so the next build retries.
func fetchModule(w io.Writer, source, dir, configName string) error {
	src, err := parseModuleSource(source)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s %s\n", color.HiGreenString("Fetching"), src)
	if err := cloneFunc(src, dir, &msg.IndentWriter{Indent: "    ", W: w}); err != nil {
		os.RemoveAll(dir)
		return err
	}

	if _, err := os.Stat(filepath.Join(dir, configName)); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("%w: %s has no %s", ErrConfig, src, configName)
	}
	return nil
}

// cloneGitRepo clones a module source into dir
func cloneGitRepo(src moduleSource, dir string, progress io.Writer) error {
	cloneOptions := &git.CloneOptions{
		URL:               src.URL,
		Progress:          progress,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}

	if src.Revision == "" {
		cloneOptions.Depth = 1 // only the tip is needed
	}

	if src.Branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
		cloneOptions.SingleBranch = true
	}

	repo, err := git.PlainClone(dir, cloneOptions)
	if err != nil {
		return err
	}
	if src.Revision == "" {
		return nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("could not get worktree: %w", err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(src.Revision))
	if err != nil {
		return fmt.Errorf("could not resolve revision `%s`: %w", src.Revision, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return fmt.Errorf("failed to checkout `%s`: %w", src.Revision, err)
	}
	return nil
}
