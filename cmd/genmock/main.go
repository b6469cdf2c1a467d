// Command genmock renders synthetic imagery for the built-in sample locations
// into a disk image catalog and writes the change records the local embedder
// produces for them. Frontend development and cmd/validate use the output.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -data-dir data \
//	  -fixture data/mock/sample_changes.json \
//	  -start 2018 -end 2024
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/adapter/catalog"
	"github.com/couchcryptid/satellite-change-service/internal/adapter/remoteclip"
	"github.com/couchcryptid/satellite-change-service/internal/adapter/sample"
	"github.com/couchcryptid/satellite-change-service/internal/config"
	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/locations"
	"github.com/jonboulle/clockwork"
)

// genTime is the fixed catalog timestamp, so repeated runs produce identical
// sidecars.
var genTime = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// LocationChanges is one fixture entry.
type LocationChanges struct {
	Name     string                `json:"name"`
	Location domain.Location       `json:"location"`
	Images   []string              `json:"images"`
	Changes  []domain.ChangeRecord `json:"changes"`
	Overall  *domain.ChangeRecord  `json:"overall_change,omitempty"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "data", "catalog directory to write images into")
	fixture := flag.String("fixture", "", "optional output path for the change-record JSON fixture")
	start := flag.Int("start", 2018, "first year")
	end := flag.Int("end", 2024, "last year")
	size := flag.Int("size", 256, "image edge length in pixels")
	satellite := flag.String("satellite", string(domain.Sentinel2), "satellite to label the scenes with")
	flag.Parse()

	if *start > *end {
		flag.Usage()
		return fmt.Errorf("-start %d is after -end %d", *start, *end)
	}
	sat, err := domain.ParseSatellite(*satellite)
	if err != nil {
		return err
	}

	domain.SetClock(clockwork.NewFakeClockAt(genTime))
	defer domain.SetClock(nil)

	samples, err := locations.Builtin()
	if err != nil {
		return fmt.Errorf("load sample locations: %w", err)
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := catalog.NewDiskStore(*dataDir, logger)
	provider := sample.NewProvider(*size)
	embedder := remoteclip.NewHistogram(config.DefaultZeroShotLabels)

	var out []LocationChanges //nolint:prealloc // entries are appended per location
	for _, s := range samples {
		entry, err := generate(ctx, s, *start, *end, sat, provider, embedder, store)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		out = append(out, entry)
		log.Printf("%s: %d images, %d changes", s.Name, len(entry.Images), len(entry.Changes))
	}

	if *fixture != "" {
		if err := writeJSON(*fixture, out); err != nil {
			return fmt.Errorf("writing fixture: %w", err)
		}
		log.Printf("wrote fixture: %s", *fixture)
	}

	printStats(out)
	return nil
}

func generate(ctx context.Context, s locations.Sample, start, end int, sat domain.Satellite,
	provider *sample.Provider, embedder *remoteclip.Histogram, store *catalog.DiskStore,
) (LocationChanges, error) {
	loc := s.Location()
	entry := LocationChanges{Name: s.Name, Location: loc}

	var obs []domain.Observation
	for year := start; year <= end; year++ {
		img, err := domain.FetchYear(ctx, provider, loc, year, sat, 100)
		if err != nil {
			return LocationChanges{}, err
		}
		rec, err := store.Save(ctx, loc, img)
		if err != nil {
			return LocationChanges{}, err
		}
		vec, err := embedder.Embed(ctx, img.PNG)
		if err != nil {
			return LocationChanges{}, err
		}
		entry.Images = append(entry.Images, rec.Filename)
		obs = append(obs, domain.Observation{Year: year, Vector: vec})
	}

	for i := 1; i < len(obs); i++ {
		rec, err := domain.Compare(obs[i-1], obs[i])
		if err != nil {
			return LocationChanges{}, err
		}
		entry.Changes = append(entry.Changes, rec)
	}
	if len(obs) > 1 {
		overall, err := domain.Compare(obs[0], obs[len(obs)-1])
		if err != nil {
			return LocationChanges{}, err
		}
		entry.Overall = &overall
	}
	return entry, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644) //nolint:gosec // fixture output
}

func printStats(entries []LocationChanges) {
	levels := map[domain.ChangeLevel]int{}
	for _, e := range entries {
		for _, c := range e.Changes {
			levels[c.Level]++
		}
	}
	log.Printf("change levels: none=%d minor=%d moderate=%d major=%d",
		levels[domain.LevelNone], levels[domain.LevelMinor], levels[domain.LevelModerate], levels[domain.LevelMajor])
	for _, e := range entries {
		if e.Overall != nil {
			log.Printf("  %-24s overall %-8s severity %.2f (%s)", e.Name, e.Overall.Level, e.Overall.Severity, e.Overall.Category)
		}
	}
}
