package requirements

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var ErrManifest = errors.New("invalid dependency manifest")

// Package name charset, per the Python packaging name convention: letters,
// digits, and interior runs of ".", "_", or "-".
var namePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

// Operators recognized in version constraints, longest first so that "==="
// and "==" are not mistaken for "=".
var constraintOperators = []string{"===", "==", "~=", "!=", "<=", ">=", "<", ">"}

// A single declared dependency.
type Requirement struct {
	Name       string // Package name as written.
	Extras     string // Optional extras list, without brackets (e.g. "standard").
	Constraint string // Optional version constraint (e.g. "==2.31.0").
	Marker     string // Optional environment marker, without the leading ";".
}

// Formats the requirement back into manifest line form.
func (r Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if r.Extras != "" {
		b.WriteString("[" + r.Extras + "]")
	}
	b.WriteString(r.Constraint)
	if r.Marker != "" {
		b.WriteString("; " + r.Marker)
	}
	return b.String()
}

// Reads a dependency manifest file.
func ParseFile(path string) ([]Requirement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parses a flat dependency manifest: one "<package>[<constraint>]" entry per
// line, with blank lines and "#" comments skipped.
//
// The parser validates only the shape of each entry. Whether a package
// actually resolves is decided by the installer inside the build container,
// which owns version resolution and transitive dependencies.
func Parse(r io.Reader) ([]Requirement, error) {
	var reqs []Requirement

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		req, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrManifest, lineNo, err)
		}
		reqs = append(reqs, req)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}

	return reqs, nil
}

// Removes a trailing comment and surrounding whitespace from a line.
func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// Parses one manifest entry into its name, extras, constraint, and marker
// parts.
func parseLine(line string) (Requirement, error) {
	if strings.HasPrefix(line, "-") {
		return Requirement{}, fmt.Errorf("unsupported option %q", line)
	}

	var req Requirement

	rest := line
	if i := strings.IndexByte(rest, ';'); i >= 0 {
		req.Marker = strings.TrimSpace(rest[i+1:])
		rest = strings.TrimSpace(rest[:i])
	}

	rest, constraint, err := splitConstraint(rest)
	if err != nil {
		return Requirement{}, err
	}
	req.Constraint = constraint

	if i := strings.IndexByte(rest, '['); i >= 0 {
		if !strings.HasSuffix(rest, "]") {
			return Requirement{}, fmt.Errorf("unterminated extras in %q", line)
		}
		req.Extras = strings.TrimSpace(rest[i+1 : len(rest)-1])
		rest = rest[:i]
	}

	req.Name = strings.TrimSpace(rest)
	if !namePattern.MatchString(req.Name) {
		return Requirement{}, fmt.Errorf("invalid package name %q", req.Name)
	}

	return req, nil
}

// Splits an entry into the part before the version constraint and the
// constraint itself.
func splitConstraint(s string) (head, constraint string, err error) {
	i := strings.IndexAny(s, "=~!<>")
	if i < 0 {
		return strings.TrimSpace(s), "", nil
	}

	head = strings.TrimSpace(s[:i])
	constraint = strings.TrimSpace(s[i:])

	for _, spec := range strings.Split(constraint, ",") {
		spec = strings.TrimSpace(spec)
		if !hasConstraintOperator(spec) {
			return "", "", fmt.Errorf("invalid version constraint %q", constraint)
		}
	}

	return head, constraint, nil
}

// Reports whether a single version spec starts with a known operator followed
// by a version.
func hasConstraintOperator(spec string) bool {
	for _, op := range constraintOperators {
		if v, ok := strings.CutPrefix(spec, op); ok {
			return strings.TrimSpace(v) != ""
		}
	}
	return false
}
