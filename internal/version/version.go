// Package version detects the installed clangd binary's version and derives
// the index-format and hash-selection gates that depend on it.
package version

import (
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ClangdVersion is the parsed result of `clangd --version`.
type ClangdVersion struct {
	Major   int
	Minor   int
	Patch   int
	Variant string // e.g. "Debian", empty if none
	Date    string // build-date suffix some distros append, empty if none

	semver *semver.Version
}

var versionLine = regexp.MustCompile(`(?i)version\s+(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// Detect runs `clangdPath --version` and parses the result. clangdPath may
// be empty, in which case "clangd" is resolved on PATH by exec.Command.
func Detect(clangdPath string) (*ClangdVersion, error) {
	if clangdPath == "" {
		clangdPath = "clangd"
	}
	out, err := exec.Command(clangdPath, "--version").Output()
	if err != nil {
		return nil, fmt.Errorf("version: running %s --version: %w", clangdPath, err)
	}
	return Parse(string(out))
}

// Parse extracts a ClangdVersion from the raw `--version` output. It is
// tolerant of distro variants such as "Debian clangd version 18.1.3" and
// build-date suffixes.
func Parse(output string) (*ClangdVersion, error) {
	line := strings.TrimSpace(strings.SplitN(output, "\n", 2)[0])

	loc := versionLine.FindStringSubmatchIndex(line)
	if loc == nil {
		return nil, fmt.Errorf("version: no version string found in %q", line)
	}
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] < 0 {
			continue
		}
		m[i] = line[loc[2*i]:loc[2*i+1]]
	}

	major, _ := strconv.Atoi(m[1])
	minor := 0
	if m[2] != "" {
		minor, _ = strconv.Atoi(m[2])
	}
	patch := 0
	if m[3] != "" {
		patch, _ = strconv.Atoi(m[3])
	}

	variant := strings.TrimSpace(line[:strings.Index(strings.ToLower(line), "version")])
	if strings.HasSuffix(strings.ToLower(variant), "clangd") {
		variant = strings.TrimSpace(variant[:len(variant)-len("clangd")])
	}

	// Anything after the matched version number is a distro/build suffix,
	// e.g. Debian's trailing "(++20240410104313+3b5b5c1ec4a3-1~exp1)".
	date := strings.TrimSpace(line[loc[1]:])
	date = strings.Trim(date, "()")

	sv, err := semver.NewVersion(fmt.Sprintf("%d.%d.%d", major, minor, patch))
	if err != nil {
		return nil, fmt.Errorf("version: building semver from %q: %w", line, err)
	}

	return &ClangdVersion{
		Major:   major,
		Minor:   minor,
		Patch:   patch,
		Variant: variant,
		Date:    date,
		semver:  sv,
	}, nil
}

// IndexFormatVersion maps a clangd major version to the numeric index
// format it writes: 12-18 -> 18; 19-20 -> 19.
func (v *ClangdVersion) IndexFormatVersion() int {
	switch {
	case v.Major >= 19:
		return 19
	default:
		return 18
	}
}

// UsesXXH3 reports whether this clangd version hashes index file names
// with XXH3-64 (version >= 19) rather than xxHash64 (<= 18).
func (v *ClangdVersion) UsesXXH3() bool {
	return v.Major >= 19
}

// SupportsCallHierarchy reports whether this clangd build is new enough
// for full call-hierarchy support (clangd >= 20, per spec).
func (v *ClangdVersion) SupportsCallHierarchy() bool {
	return v.Major >= 20
}

// Satisfies reports whether the detected version satisfies a semver
// constraint string, e.g. ">= 18".
func (v *ClangdVersion) Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("version: bad constraint %q: %w", constraint, err)
	}
	return c.Check(v.semver), nil
}

func (v *ClangdVersion) String() string {
	if v.Variant != "" {
		return fmt.Sprintf("%s clangd %d.%d.%d", v.Variant, v.Major, v.Minor, v.Patch)
	}
	return fmt.Sprintf("clangd %d.%d.%d", v.Major, v.Minor, v.Patch)
}
