package version

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		raw      string
		epoch    int
		upstream string
		revision string
	}{
		{"1.2.3-0ubuntu1", 0, "1.2.3", "0ubuntu1"},
		{"2:1.2.3-0ubuntu1", 2, "1.2.3", "0ubuntu1"},
		{"1.2.3", 0, "1.2.3", ""},
		{"garbage:1.2.3", 0, "garbage:1.2.3", ""},
		{"1:2:3-1", 1, "2:3", "1"},
	}
	for _, c := range cases {
		p := Parse(c.raw)
		if p.Epoch != c.epoch || p.Upstream != c.upstream || p.Revision != c.revision {
			t.Errorf("Parse(%q) = %+v, want epoch=%d upstream=%q revision=%q",
				c.raw, p, c.epoch, c.upstream, c.revision)
		}
	}
}

// TestTotalOrder verifies that for every pair, exactly one of a<b, a=b, a>b
// holds, and the relation is transitive for the Lexicographic fallback.
func TestTotalOrder(t *testing.T) {
	vs := []string{"1.0-1", "1.0-2", "1.1-1", "2:1.0-1", "0.9-5"}
	for _, a := range vs {
		for _, b := range vs {
			ab := Compare(nil, a, b)
			ba := Compare(nil, b, a)
			if (ab > 0) != (ba < 0) || (ab == 0) != (ba == 0) {
				t.Errorf("Compare(%q,%q)=%d not antisymmetric with Compare(%q,%q)=%d", a, b, ab, b, a, ba)
			}
		}
	}
	// Transitivity over the epoch-ordered subset.
	if !(Compare(nil, "0.9-5", "1.0-1") < 0 && Compare(nil, "1.0-1", "2:1.0-1") < 0 && Compare(nil, "0.9-5", "2:1.0-1") < 0) {
		t.Fatalf("expected transitive ordering 0.9-5 < 1.0-1 < 2:1.0-1")
	}
}

func TestMax(t *testing.T) {
	got := Max(nil, "1.0-1", "2:0.1-1", "1.5-1")
	if got != "2:0.1-1" {
		t.Errorf("Max = %q, want 2:0.1-1", got)
	}
	if Max(nil) != "" {
		t.Errorf("Max() of empty set should be empty string")
	}
}
