package service

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"packastack/target"
)

// LoadSeriesInfo parses a distro-info-style CSV (the same column layout as
// /usr/share/distro-info/ubuntu.csv: version,codename,series,created,
// release,eol,eol-server) and records each series' cycle stage on md: a
// series whose release date has passed is post-final, otherwise pre-final.
func LoadSeriesInfo(csvPath string, md *target.ReleaseMetadata) error {
	f, err := os.Open(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("service: opening series info %s: %w", csvPath, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("service: parsing series info %s: %w", csvPath, err)
	}
	if len(rows) == 0 {
		return nil
	}

	header := rows[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	seriesIdx, hasSeries := col["series"]
	releaseIdx, hasRelease := col["release"]
	if !hasSeries {
		return fmt.Errorf("service: series info %s missing a series column", csvPath)
	}

	now := time.Now()
	for _, row := range rows[1:] {
		if seriesIdx >= len(row) {
			continue
		}
		series := strings.TrimSpace(row[seriesIdx])
		if series == "" {
			continue
		}
		stage := target.CycleStagePreFinal
		if hasRelease && releaseIdx < len(row) {
			if releaseDate, err := time.Parse("2006-01-02", strings.TrimSpace(row[releaseIdx])); err == nil && !now.Before(releaseDate) {
				stage = target.CycleStagePostFinal
			}
		}
		md.RecordSeriesStage(series, stage)
	}
	return nil
}

// releaseManifestEntry is one deliverable's recorded release state for one
// series in the JSON release-manifest side channel.
type releaseManifestEntry struct {
	Released string `json:"released,omitempty"`
	Epoch int `json:"epoch,omitempty"`
	Milestones []string `json:"milestones,omitempty"`
}

// LoadReleaseManifest parses a JSON document of the form
// {"series": {"deliverable": {"released": "...", "milestones": [...]}}}
// and records every entry on md.
func LoadReleaseManifest(path string, md *target.ReleaseMetadata) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("service: opening release manifest %s: %w", path, err)
	}

	var doc map[string]map[string]releaseManifestEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("service: parsing release manifest %s: %w", path, err)
	}

	for series, byDeliverable := range doc {
		for deliverable, entry := range byDeliverable {
			if entry.Released != "" {
				md.RecordRelease(series, deliverable, entry.Released, entry.Epoch)
			}
			if len(entry.Milestones) > 0 {
				md.RecordMilestones(series, deliverable, entry.Milestones)
			}
		}
	}
	return nil
}

// LoadReleaseMetadata combines LoadSeriesInfo and LoadReleaseManifest into
// the ReleaseMetadata plan/build/explain use as a buildtype.ReleaseSource.
func LoadReleaseMetadata(seriesInfoCSV, releaseManifestJSON string) (*target.ReleaseMetadata, error) {
	md := target.NewReleaseMetadata()
	if err := LoadSeriesInfo(seriesInfoCSV, md); err != nil {
		return nil, err
	}
	if err := LoadReleaseManifest(releaseManifestJSON, md); err != nil {
		return nil, err
	}
	return md, nil
}
