package control

import (
	"strings"
	"testing"
)

const sample = `Source: nova
Build-Depends: debhelper (>= 10),
 python3-all,
 dh-python
Build-Depends-Indep: python3-setuptools

Package: nova-api
Depends: ${misc:Depends}, nova-common (= ${binary:Version})
Provides: nova-api-virtual

Package: nova-compute
Depends: ${misc:Depends}, nova-common, libvirt-daemon (>= 6.0)
Pre-Depends: dpkg (>= 1.17.5)
`

func TestParseSourceAndBuildDepends(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Source != "nova" {
		t.Errorf("Source = %q, want nova", f.Source)
	}
	if len(f.BuildDepends) != 3 {
		t.Errorf("BuildDepends = %+v, want 3 entries", f.BuildDepends)
	}
	if len(f.BuildDependsIndep) != 1 || f.BuildDependsIndep[0].Name != "python3-setuptools" {
		t.Errorf("BuildDependsIndep = %+v", f.BuildDependsIndep)
	}
}

func TestParseBinaryStanzas(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Binaries) != 2 {
		t.Fatalf("Binaries = %+v, want 2", f.Binaries)
	}
	api := f.Binaries[0]
	if api.Package != "nova-api" {
		t.Errorf("first binary = %q, want nova-api", api.Package)
	}
	if len(api.Provides) != 1 || api.Provides[0] != "nova-api-virtual" {
		t.Errorf("Provides = %+v", api.Provides)
	}

	compute := f.Binaries[1]
	if len(compute.PreDepends) != 1 || compute.PreDepends[0].Name != "dpkg" {
		t.Errorf("PreDepends = %+v", compute.PreDepends)
	}
}

func TestParseRejectsMissingSource(t *testing.T) {
	if _, err := Parse(strings.NewReader("Package: foo\nDepends: bar\n")); err == nil {
		t.Error("expected error for a control file missing Source in the first paragraph")
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := Parse(strings.NewReader("")); err == nil {
		t.Error("expected error for an empty control file")
	}
}
