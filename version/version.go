// Package version implements the total order over versioned package
// strings used throughout packastack: parsing, comparison, and the
// relation grammar used by dependency constraints.
package version

import (
	"strconv"
	"strings"
)

// Parsed is a decomposed version string: optional epoch, upstream portion,
// and optional packaging revision. The original string is preserved
// verbatim in Raw so formatting never has to be reconstructed lossily.
type Parsed struct {
	Raw string
	Epoch int
	Upstream string
	Revision string
}

// Parse decomposes a version string of the form "[epoch:]upstream[-revision]".
// A malformed epoch (non-numeric prefix before ':') coerces to 0 and the
// whole prefix is folded back into Upstream, matching the forgiving
// behavior of the packaging toolchain this grammar mirrors.
func Parse(raw string) Parsed {
	p := Parsed{Raw: raw}

	rest := raw
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		epochStr := raw[:idx]
		if n, err := strconv.Atoi(epochStr); err == nil && n >= 0 {
			p.Epoch = n
			rest = raw[idx+1:]
		}
		// else: not a valid epoch prefix, epoch stays 0 and the colon is
		// part of the upstream string.
	}

	if idx := strings.LastIndexByte(rest, '-'); idx >= 0 {
		p.Upstream = rest[:idx]
		p.Revision = rest[idx+1:]
	} else {
		p.Upstream = rest
		p.Revision = ""
	}

	return p
}

// Comparator is the externally-defined version ordering algorithm. The
// core never implements its own comparison rules; it delegates to
// whatever Comparator is installed. Production callers install the real
// ecosystem algorithm; tests may install Lexicographic.
type Comparator func(a, b string) int

// Lexicographic is the offline fallback comparator: a plain byte-wise
// comparison of the normalized (Parse'd then re-rendered) serialization.
// It is suitable only for offline unit testing — production code must
// supply a real Comparator.
func Lexicographic(a, b string) int {
	na, nb := normalize(a), normalize(b)
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	default:
		return 0
	}
}

func normalize(raw string) string {
	p := Parse(raw)
	return strconv.Itoa(p.Epoch) + ":" + p.Upstream + "-" + p.Revision
}

// Compare delegates to cmp if non-nil, otherwise falls back to
// Lexicographic. Passing a nil Comparator is only appropriate in tests;
// production call sites should always supply the ecosystem algorithm.
func Compare(cmp Comparator, a, b string) int {
	if cmp == nil {
		return Lexicographic(a, b)
	}
	return cmp(a, b)
}

// Max returns the version string that compares highest among vs under cmp.
// Used by archive index keep-highest-version semantics and by
// manifest/depsync version resolution. Returns "" for an empty slice.
func Max(cmp Comparator, vs...string) string {
	if len(vs) == 0 {
		return ""
	}
	best := vs[0]
	for _, v := range vs[1:] {
		if Compare(cmp, v, best) > 0 {
			best = v
		}
	}
	return best
}
