// Package control parses the packaging-control file: a multi-paragraph,
// key/value text file whose first paragraph declares the source package
// and whose subsequent paragraphs each declare one binary package. Each
// dependency field is fed through version.ParseField for its
// constraint grammar.
package control

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"packastack/version"
)

// BinaryStanza is one binary-package paragraph.
type BinaryStanza struct {
	Package string
	Depends []version.Constraint
	PreDepends []version.Constraint
	Provides []string
}

// File is a parsed packaging-control file.
type File struct {
	Source string
	BuildDepends []version.Constraint
	BuildDependsIndep []version.Constraint
	Binaries []BinaryStanza
}

// stanza is a raw paragraph: key/value pairs (field order is not kept), folding continuation
// lines (leading whitespace) into the previous field per RFC822 framing.
type stanza map[string]string

// Parse reads a packaging-control file and returns the parsed File. Only
// the named fields are consumed; unrecognized fields are
// ignored rather than rejected, so packaging metadata can carry fields
// this parser doesn't need.
func Parse(r io.Reader) (*File, error) {
	stanzas, err := splitStanzas(r)
	if err != nil {
		return nil, fmt.Errorf("control: %w", err)
	}
	if len(stanzas) == 0 {
		return nil, fmt.Errorf("control: empty control file")
	}

	first := stanzas[0]
	f := &File{
		Source: first["Source"],
		BuildDepends: version.ParseField(first["Build-Depends"]),
		BuildDependsIndep: version.ParseField(first["Build-Depends-Indep"]),
	}
	if f.Source == "" {
		return nil, fmt.Errorf("control: missing Source field in first paragraph")
	}

	for _, st := range stanzas[1:] {
		pkg := st["Package"]
		if pkg == "" {
			continue
		}
		f.Binaries = append(f.Binaries, BinaryStanza{
			Package: pkg,
			Depends: version.ParseField(st["Depends"]),
			PreDepends: version.ParseField(st["Pre-Depends"]),
			Provides: splitProvides(st["Provides"]),
		})
	}
	return f, nil
}

func splitProvides(field string) []string {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(field, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// Strip a trailing (= version) qualifier; a Provides entry's
		// version is not meaningful to the dependency grammar here.
		if idx := strings.IndexByte(p, '('); idx >= 0 {
			p = strings.TrimSpace(p[:idx])
		}
		out = append(out, p)
	}
	return out
}

// splitStanzas splits r into paragraphs on blank lines, folding
// continuation lines (starting with whitespace) into the prior field.
func splitStanzas(r io.Reader) ([]stanza, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var stanzas []stanza
	cur := stanza{}
	lastKey := ""
	haveField := false

	flush := func() {
		if haveField {
			stanzas = append(stanzas, cur)
		}
		cur = stanza{}
		lastKey = ""
		haveField = false
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && lastKey != "" {
			cur[lastKey] = cur[lastKey] + " " + strings.TrimSpace(line)
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		cur[key] = val
		lastKey = key
		haveField = true
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return stanzas, nil
}
