// Package archive parses compressed archive package-list streams into an
// in-memory index usable by the graph builder, the satisfaction evaluator,
// and the version-sync engine.
package archive

import (
	"bufio"
	"compress/gzip"
	"io"
	"strings"

	"packastack/version"
)

// Component classifies which top-level archive section a binary ships in.
type Component string

const (
	ComponentMain Component = "main"
	ComponentUniverse Component = "universe"
	ComponentOther Component = "other"
)

// BinaryRecord is one parsed stanza of an archive package list.
type BinaryRecord struct {
	Name string
	Version string
	Architecture string
	SourceName string
	Depends []version.Constraint
	PreDepends []version.Constraint
	Provides []string
	Component Component
	Pocket string
}

// Index is the archive index: name -> highest-version BinaryRecord, plus
// source and virtual-provides back-references.
type Index struct {
	cmp version.Comparator
	byName map[string]*BinaryRecord
	bySource map[string][]string
	provides map[string][]string
	// insertion order of names, for stable virtual-provides resolution.
	order []string
}

// New creates an empty index. cmp is the version comparator to use for
// keep-highest-version resolution; a nil cmp falls back to
// version.Lexicographic (offline testing only).
func New(cmp version.Comparator) *Index {
	return &Index{
		cmp: cmp,
		byName: make(map[string]*BinaryRecord),
		bySource: make(map[string][]string),
		provides: make(map[string][]string),
	}
}

// LoadGzip parses a gzip-compressed package-list stream and adds every
// stanza to the index via Add.
func (ix *Index) LoadGzip(r io.Reader) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()
	return ix.Load(gz)
}

// Load parses an uncompressed multi-paragraph package-list stream.
func (ix *Index) Load(r io.Reader) error {
	for _, stanza := range parseStanzas(r) {
		rec, ok := stanzaToRecord(stanza)
		if !ok {
			continue // missing Package: field, rejected
		}
		ix.Add(rec)
	}
	return nil
}

// Add inserts rec into the index, applying keep-highest-version semantics:
// if an entry for rec.Name already exists and compares >= rec.Version, rec
// is discarded.
func (ix *Index) Add(rec BinaryRecord) {
	existing, ok := ix.byName[rec.Name]
	if ok && version.Compare(ix.cmp, rec.Version, existing.Version) <= 0 {
		return
	}

	r := rec
	if !ok {
		ix.order = append(ix.order, rec.Name)
	} else {
		ix.removeBackrefs(existing)
	}
	ix.byName[rec.Name] = &r
	ix.addBackrefs(&r)
}

func (ix *Index) addBackrefs(rec *BinaryRecord) {
	if rec.SourceName != "" {
		ix.bySource[rec.SourceName] = appendUnique(ix.bySource[rec.SourceName], rec.Name)
	}
	for _, v := range rec.Provides {
		ix.provides[v] = appendUnique(ix.provides[v], rec.Name)
	}
}

func (ix *Index) removeBackrefs(rec *BinaryRecord) {
	if rec.SourceName != "" {
		ix.bySource[rec.SourceName] = removeOne(ix.bySource[rec.SourceName], rec.Name)
	}
	for _, v := range rec.Provides {
		ix.provides[v] = removeOne(ix.provides[v], rec.Name)
	}
}

func appendUnique(ss []string, s string) []string {
	for _, e := range ss {
		if e == s {
			return ss
		}
	}
	return append(ss, s)
}

func removeOne(ss []string, s string) []string {
	out := ss[:0]
	for _, e := range ss {
		if e != s {
			out = append(out, e)
		}
	}
	return out
}

// FindPackage returns the matching real package for name, or, failing
// that, the first real provider of the virtual name in insertion order.
func (ix *Index) FindPackage(name string) (*BinaryRecord, bool) {
	if rec, ok := ix.byName[name]; ok {
		return rec, true
	}
	for _, candidate := range ix.order {
		if containsProvider(ix.provides[name], candidate) {
			return ix.byName[candidate], true
		}
	}
	return nil, false
}

func containsProvider(providers []string, name string) bool {
	for _, p := range providers {
		if p == name {
			return true
		}
	}
	return false
}

// BinariesOf returns the binary package names produced by source.
func (ix *Index) BinariesOf(source string) []string {
	return ix.bySource[source]
}

// Len returns the number of distinct binary names held in the index.
func (ix *Index) Len() int {
	return len(ix.byName)
}

// parseStanzas splits a package-list stream into RFC822-style paragraphs,
// each a slice of (field, value) lines with continuation lines folded into
// their owning field.
func parseStanzas(r io.Reader) [][][2]string {
	var stanzas [][][2]string
	var current [][2]string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				stanzas = append(stanzas, current)
				current = nil
			}
			continue
		}
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(current) > 0 {
			last := &current[len(current)-1]
			last[1] += "\n" + strings.TrimSpace(line)
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		field := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		current = append(current, [2]string{field, value})
	}
	if len(current) > 0 {
		stanzas = append(stanzas, current)
	}
	return stanzas
}

func stanzaField(stanza [][2]string, name string) (string, bool) {
	for _, kv := range stanza {
		if strings.EqualFold(kv[0], name) {
			return kv[1], true
		}
	}
	return "", false
}

// stanzaToRecord converts a parsed paragraph into a BinaryRecord. Stanzas
// missing Package: are rejected (returns ok=false).
func stanzaToRecord(stanza [][2]string) (BinaryRecord, bool) {
	name, ok := stanzaField(stanza, "Package")
	if !ok || name == "" {
		return BinaryRecord{}, false
	}

	rec := BinaryRecord{Name: name}

	if v, ok := stanzaField(stanza, "Version"); ok {
		rec.Version = v
	}

	source, ok := stanzaField(stanza, "Source")
	if !ok || source == "" {
		source = name
	} else {
		source = stripSourceVersionSuffix(source)
	}
	rec.SourceName = source

	if v, ok := stanzaField(stanza, "Architecture"); ok {
		rec.Architecture = v
	}

	if deps, ok := stanzaField(stanza, "Depends"); ok {
		rec.Depends = version.ParseField(deps)
	}
	if pre, ok := stanzaField(stanza, "Pre-Depends"); ok {
		rec.PreDepends = version.ParseField(pre)
	}
	if prov, ok := stanzaField(stanza, "Provides"); ok {
		for _, c := range version.ParseField(prov) {
			rec.Provides = append(rec.Provides, c.Name)
		}
	}

	switch comp, _ := stanzaField(stanza, "Component"); comp {
	case "universe":
		rec.Component = ComponentUniverse
	case "main", "":
		rec.Component = ComponentMain
	default:
		rec.Component = ComponentOther
	}

	if pocket, ok := stanzaField(stanza, "Pocket"); ok {
		rec.Pocket = pocket
	}

	return rec, true
}

// stripSourceVersionSuffix removes a trailing "(version)" suffix from a
// Source: field.
func stripSourceVersionSuffix(source string) string {
	source = strings.TrimSpace(source)
	if idx := strings.IndexByte(source, '('); idx >= 0 {
		return strings.TrimSpace(source[:idx])
	}
	return source
}
