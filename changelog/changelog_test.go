package changelog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"packastack/buildtype"
)

func TestParseHeader(t *testing.T) {
	e, err := ParseHeader("nova (2:29.0.0-0ubuntu1) noble; urgency=medium")
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if e.Source != "nova" || e.Version != "2:29.0.0-0ubuntu1" || e.Series != "noble" {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestParseHeaderMalformed(t *testing.T) {
	if _, err := ParseHeader("not a changelog line"); err == nil {
		t.Error("expected error for malformed header")
	}
}

func TestWriteEntryThenRevision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changelog")
	f := Open(path)

	if err := f.WriteEntry("nova", "29.0.0-0ubuntu2", buildtype.TypeRelease, true, "resolved release build"); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}

	revision, epoch, ok := f.Revision("nova")
	if !ok {
		t.Fatal("expected Revision to find the entry just written")
	}
	if revision != "0ubuntu2" || epoch != 0 {
		t.Errorf("Revision = (%q, %d), want (0ubuntu2, 0)", revision, epoch)
	}
}

func TestWriteEntryPrependsPriorContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changelog")
	f := Open(path)

	if err := f.WriteEntry("nova", "29.0.0-0ubuntu1", buildtype.TypeRelease, true, "first"); err != nil {
		t.Fatalf("WriteEntry 1: %v", err)
	}
	if err := f.WriteEntry("nova", "29.0.1-0ubuntu1", buildtype.TypeRelease, true, "second"); err != nil {
		t.Fatalf("WriteEntry 2: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "nova (29.0.1-0ubuntu1)") {
		t.Errorf("expected newest entry first, got:\n%s", content)
	}
	if !strings.Contains(content, "29.0.0-0ubuntu1") {
		t.Error("expected prior entry to be preserved")
	}
}

func TestRevisionMissingFile(t *testing.T) {
	f := Open(filepath.Join(t.TempDir(), "does-not-exist"))
	if _, _, ok := f.Revision("nova"); ok {
		t.Error("expected Revision to report not-found for a missing file")
	}
}
