// Package changelog reads and writes the packaging changelog file: the
// first line encodes "<source> (<version>) <series>; urgency=<level>",
// and a new entry is prepended ending with a signed-off trailer line.
// Writes go through a temp file and rename so a crash mid-write never
// leaves a truncated changelog behind.
package changelog

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"packastack/buildtype"
)

// Entry is one parsed changelog entry header.
type Entry struct {
	Source string
	Version string
	Series string
	Urgency string
}

var headerRe = regexp.MustCompile(`^(\S+) \(([^)]+)\) ([^;]+); urgency=(\S+)`)

// ParseHeader parses a single changelog entry's first line.
func ParseHeader(line string) (Entry, error) {
	m := headerRe.FindStringSubmatch(line)
	if m == nil {
		return Entry{}, fmt.Errorf("changelog: malformed entry header %q", line)
	}
	return Entry{Source: m[1], Version: m[2], Series: strings.TrimSpace(m[3]), Urgency: m[4]}, nil
}

// epochRe splits a Debian-style version epoch:upstream-revision.
var epochRe = regexp.MustCompile(`^(?:(\d+):)?(.+?)(?:-([^-]+))?$`)

// splitVersion extracts the epoch and revision from a rendered version
// string, leaving the upstream portion unused by the caller here.
func splitVersion(v string) (epoch int, revision string) {
	m := epochRe.FindStringSubmatch(v)
	if m == nil {
		return 0, ""
	}
	if m[1] != "" {
		epoch, _ = strconv.Atoi(m[1])
	}
	return epoch, m[3]
}

// File wraps a changelog file on disk, supporting the two operations the
// pipeline needs: reading the most recent entry's revision/epoch (to
// preserve packaging revision numbers across a rebuild, manifest.go's
// ChangelogRevision) and prepending a new entry (pipeline.go's
// ChangelogWriter, step 6).
type File struct {
	path string
}

// Open wraps an existing (or not-yet-existing) changelog file at path.
func Open(path string) *File {
	return &File{path: path}
}

// Revision returns the revision and epoch recorded in the most recent
// entry for pkg, if the file exists and its top entry matches pkg.
func (f *File) Revision(pkg string) (revision string, epoch int, ok bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", 0, false
	}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	if !scanner.Scan() {
		return "", 0, false
	}
	entry, err := ParseHeader(scanner.Text())
	if err != nil || entry.Source != pkg {
		return "", 0, false
	}
	epoch, revision = splitVersion(entry.Version)
	if revision == "" {
		return "", 0, false
	}
	return revision, epoch, true
}

// WriteEntry prepends a new entry for pkg at resolved version, with a
// note describing how the version was chosen and a signed-off trailer,
// then renames the result into place atomically.
func (f *File) WriteEntry(pkg, resolved string, buildType buildtype.Type, signatureOK bool, note string) error {
	var existing []byte
	if data, err := os.ReadFile(f.path); err == nil {
		existing = data
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) unstable; urgency=medium\n\n", pkg, resolved)
	fmt.Fprintf(&b, " * %s (build type: %s, signature-verified: %v)\n\n", note, buildType, signatureOK)
	fmt.Fprintf(&b, " -- packastack <packastack@example.invalid> %s\n\n", time.Now().Format(time.RFC1123Z))
	b.Write(existing)

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("changelog: writing temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("changelog: renaming into place: %w", err)
	}
	return nil
}
