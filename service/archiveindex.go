package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"packastack/archive"
	"packastack/manifest"
	"packastack/version"
)

// FetchArchiveIndex retrieves a Packages(.gz) file from url and parses it
// into an archive.Index under cmp's version ordering. A ".gz" suffix
// selects gzip decoding; anything else is read as plain text.
func FetchArchiveIndex(ctx context.Context, url string, cmp version.Comparator) (*archive.Index, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("service: building index request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("service: fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service: fetching %s: status %d", url, resp.StatusCode)
	}

	idx := archive.New(cmp)
	if strings.HasSuffix(url, ".gz") {
		err = idx.LoadGzip(resp.Body)
	} else {
		err = idx.Load(resp.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("service: parsing index from %s: %w", url, err)
	}
	return idx, nil
}

// indexLTSFloor adapts an archive.Index to manifest.LTSFloor, reading the
// prior-LTS series' shipped version of a source package as the floor. It
// assumes the source package's binary of the same name carries the
// source version, true for the common case of a single same-named binary.
type indexLTSFloor struct {
	idx *archive.Index
}

// NewIndexLTSFloor wraps idx as a manifest.LTSFloor.
func NewIndexLTSFloor(idx *archive.Index) manifest.LTSFloor {
	return indexLTSFloor{idx: idx}
}

func (f indexLTSFloor) Floor(name string) (string, bool) {
	if f.idx == nil {
		return "", false
	}
	rec, ok := f.idx.FindPackage(name)
	if !ok {
		return "", false
	}
	return rec.Version, true
}
