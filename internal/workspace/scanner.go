package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// ProjectComponent is what a ProjectScanner discovers for one build
// directory: enough to construct a ComponentSession.
type ProjectComponent struct {
	BuildDir       string
	SourceRoot     string
	CompileDBPath  string
}

// ProjectScanner is the only recognized entry point for dynamic workspace
// expansion (spec §4.12 step 3): naming a build directory the workspace
// didn't know about at startup still works if the scanner can find a
// compilation database there.
type ProjectScanner interface {
	DiscoverComponent(buildDir string) (*ProjectComponent, error)
}

// buildArtifactGlobs lists build-artifact file names. FilesystemScanner
// does not consult it; it searches for compile_commands.json only.
var buildArtifactGlobs = []string{
	"compile_commands.json",
	"CMakeCache.txt",
	"build.ninja",
}

// FilesystemScanner discovers components by walking buildDir (bounded by
// maxDepth) looking for a compile_commands.json. CMakeCache.txt and
// build.ninja are not checked.
type FilesystemScanner struct {
	sourceRoot string
	maxDepth   int
}

// NewFilesystemScanner builds a scanner for sourceRoot (the project
// checkout, recorded as every discovered component's SourceRoot) with a
// walk depth bound.
func NewFilesystemScanner(sourceRoot string, maxDepth int) *FilesystemScanner {
	if maxDepth <= 0 {
		maxDepth = 4
	}
	return &FilesystemScanner{sourceRoot: sourceRoot, maxDepth: maxDepth}
}

func (s *FilesystemScanner) DiscoverComponent(buildDir string) (*ProjectComponent, error) {
	canonical, err := filepath.Abs(buildDir)
	if err != nil {
		return nil, fmt.Errorf("workspace: canonicalizing %s: %w", buildDir, err)
	}
	if resolved, err := filepath.EvalSymlinks(canonical); err == nil {
		canonical = resolved
	}

	cdbPath, err := s.findCompileDB(canonical)
	if err != nil {
		return nil, err
	}

	return &ProjectComponent{
		BuildDir:      canonical,
		SourceRoot:    s.sourceRoot,
		CompileDBPath: cdbPath,
	}, nil
}

// findCompileDB walks down from dir, at most maxDepth levels, returning
// the first compile_commands.json found. doublestar's glob matcher is
// used against each candidate depth's pattern so the scanner generalizes
// cleanly to future build-artifact discovery rules beyond a flat
// directory listing.
func (s *FilesystemScanner) findCompileDB(dir string) (string, error) {
	for depth := 0; depth <= s.maxDepth; depth++ {
		pattern := filepath.Join(dir, glob(depth), "compile_commands.json")
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			continue
		}
		if len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("workspace: no compile_commands.json found under %s within %d levels", dir, s.maxDepth)
}

func glob(depth int) string {
	if depth == 0 {
		return ""
	}
	out := ""
	for i := 0; i < depth; i++ {
		out = filepath.Join(out, "*")
	}
	return out
}
