// Command validate checks a disk image catalog and, optionally, a genmock
// change fixture: stored images decode and match their sidecars, the
// comparator invariants hold on real embeddings, and the fixture agrees with
// a fresh comparison of the catalogued images.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -data-dir data \
//	  -fixture data/mock/sample_changes.json
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"maps"
	"math"
	"os"
	"slices"

	"github.com/couchcryptid/satellite-change-service/internal/adapter/catalog"
	"github.com/couchcryptid/satellite-change-service/internal/adapter/remoteclip"
	"github.com/couchcryptid/satellite-change-service/internal/config"
	"github.com/couchcryptid/satellite-change-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// entry is a catalogued image with its embedding.
type entry struct {
	rec domain.ImageRecord
	vec domain.FeatureVector
}

// fixtureEntry mirrors the genmock output.
type fixtureEntry struct {
	Name     string                `json:"name"`
	Location domain.Location       `json:"location"`
	Images   []string              `json:"images"`
	Changes  []domain.ChangeRecord `json:"changes"`
}

func main() {
	dataDir := flag.String("data-dir", "data", "catalog directory to validate")
	fixture := flag.String("fixture", "", "optional genmock change fixture")
	flag.Parse()

	if code := run(*dataDir, *fixture); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir, fixturePath string) int {
	fmt.Println("=== Image Catalog Validation ===")
	fmt.Println()

	ctx := context.Background()
	store := catalog.NewDiskStore(dataDir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	records, err := store.List(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: list catalog: %v\n", err)
		return 1
	}
	if len(records) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no images under %s\n", dataDir)
		return 1
	}

	embedder := remoteclip.NewHistogram(config.DefaultZeroShotLabels)
	integrity, entries := validateRecords(ctx, store, embedder, records)
	phases := []*phase{integrity, validateComparator(entries)}

	if fixturePath != "" {
		fixture, err := loadFixture(fixturePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
			return 1
		}
		phases = append(phases, validateFixture(fixture, entries))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Images: %d catalogued, %d embedded\n", len(records), len(entries))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll phases passed.")
	return 0
}

func validateRecords(ctx context.Context, store *catalog.DiskStore, embedder domain.Embedder, records []domain.ImageRecord) (*phase, map[string]entry) {
	p := &phase{name: "Catalog integrity"}
	entries := make(map[string]entry, len(records))

	for _, rec := range records {
		data, stored, err := store.Open(ctx, rec.Filename)
		if err != nil {
			p.errorf("%s: open: %v", rec.Filename, err)
			continue
		}
		if stored.SizeBytes != len(data) {
			p.errorf("%s: sidecar size %d, file size %d", rec.Filename, stored.SizeBytes, len(data))
		}
		if _, err := png.Decode(bytes.NewReader(data)); err != nil {
			p.errorf("%s: not a PNG: %v", rec.Filename, err)
			continue
		}
		loc := domain.Location{Latitude: rec.Latitude, Longitude: rec.Longitude}
		if err := loc.Validate(); err != nil {
			p.errorf("%s: %v", rec.Filename, err)
		}
		img := domain.TemporalImage{Year: rec.Year, Date: rec.Date, Satellite: rec.Satellite}
		if want := domain.ImageFilename(loc, img); want != rec.Filename {
			p.errorf("%s: expected filename %s from sidecar", rec.Filename, want)
		}

		vec, err := embedder.Embed(ctx, data)
		if err != nil {
			p.errorf("%s: embed: %v", rec.Filename, err)
			continue
		}
		entries[rec.Filename] = entry{rec: rec, vec: vec}
	}
	return p, entries
}

func validateComparator(entries map[string]entry) *phase {
	p := &phase{name: "Comparator invariants"}

	names := slices.Sorted(maps.Keys(entries))
	for i, name := range names {
		e := entries[name]
		self, err := domain.Compare(obs(e), obs(e))
		if err != nil {
			p.errorf("%s: self compare: %v", name, err)
			continue
		}
		if self.Severity != 0 || self.Level != domain.LevelNone {
			p.errorf("%s: self compare severity %.4f level %s", name, self.Severity, self.Level)
		}

		if i == 0 {
			continue
		}
		prev := entries[names[i-1]]
		if prev.rec.Year == e.rec.Year {
			continue
		}
		ab, err1 := domain.Compare(obs(prev), obs(e))
		ba, err2 := domain.Compare(obs(e), obs(prev))
		if err1 != nil || err2 != nil {
			p.errorf("%s vs %s: compare: %v %v", names[i-1], name, err1, err2)
			continue
		}
		if ab != ba {
			p.errorf("%s vs %s: comparison not symmetric", names[i-1], name)
		}
		if ab.Severity < 0 || ab.Severity > 1 {
			p.errorf("%s vs %s: severity %.4f outside [0, 1]", names[i-1], name, ab.Severity)
		}
	}
	return p
}

func validateFixture(fixture []fixtureEntry, entries map[string]entry) *phase {
	p := &phase{name: "Fixture alignment"}

	for _, f := range fixture {
		if len(f.Changes) != max(0, len(f.Images)-1) {
			p.errorf("%s: %d changes for %d images", f.Name, len(f.Changes), len(f.Images))
			continue
		}
		for i := 1; i < len(f.Images); i++ {
			a, okA := entries[f.Images[i-1]]
			b, okB := entries[f.Images[i]]
			if !okA || !okB {
				p.errorf("%s: images %s/%s missing from catalog", f.Name, f.Images[i-1], f.Images[i])
				continue
			}
			got, err := domain.Compare(obs(a), obs(b))
			if err != nil {
				p.errorf("%s: compare: %v", f.Name, err)
				continue
			}
			want := f.Changes[i-1]
			if got.FromYear != want.FromYear || got.ToYear != want.ToYear || got.Level != want.Level ||
				!floatEq(got.Severity, want.Severity) {
				p.errorf("%s %d-%d: fixture %s/%.4f, recomputed %s/%.4f",
					f.Name, want.FromYear, want.ToYear, want.Level, want.Severity, got.Level, got.Severity)
			}
		}
	}
	return p
}

func loadFixture(path string) ([]fixtureEntry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, err
	}
	var out []fixtureEntry
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func obs(e entry) domain.Observation {
	return domain.Observation{Year: e.rec.Year, Vector: e.vec}
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}
