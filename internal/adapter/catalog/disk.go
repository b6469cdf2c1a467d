// Package catalog persists fetched imagery so it can be listed and served.
package catalog

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
)

// DiskStore keeps each image as a PNG plus a JSON sidecar under
// <root>/raw/<source>/.
type DiskStore struct {
	root   string
	logger *slog.Logger
}

// NewDiskStore creates a store rooted at dataDir.
func NewDiskStore(dataDir string, logger *slog.Logger) *DiskStore {
	return &DiskStore{root: filepath.Join(dataDir, "raw"), logger: logger}
}

func (s *DiskStore) Save(_ context.Context, loc domain.Location, img domain.TemporalImage) (domain.ImageRecord, error) {
	rec := domain.NewImageRecord(loc, img)
	dir := filepath.Join(s.root, string(img.Source))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.ImageRecord{}, fmt.Errorf("create catalog dir: %w", err)
	}

	meta, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return domain.ImageRecord{}, fmt.Errorf("encode metadata: %w", err)
	}
	pngPath := filepath.Join(dir, rec.Filename)
	if err := writeFileAtomic(pngPath, img.PNG); err != nil {
		return domain.ImageRecord{}, err
	}
	if err := writeFileAtomic(sidecar(pngPath), meta); err != nil {
		return domain.ImageRecord{}, err
	}
	return rec, nil
}

func (s *DiskStore) List(_ context.Context, source domain.DataSource) ([]domain.ImageRecord, error) {
	pattern := filepath.Join(s.root, "*", "*.json")
	if source != "" {
		pattern = filepath.Join(s.root, string(source), "*.json")
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}

	records := make([]domain.ImageRecord, 0, len(paths))
	for _, p := range paths {
		rec, err := readSidecar(p)
		if err != nil {
			s.logger.Warn("skipping unreadable catalog entry", "path", p, "error", err)
			continue
		}
		records = append(records, rec)
	}
	sortNewestFirst(records)
	return records, nil
}

func (s *DiskStore) Open(_ context.Context, filename string) ([]byte, domain.ImageRecord, error) {
	if !domain.ValidImageFilename(filename) {
		return nil, domain.ImageRecord{}, fmt.Errorf("%w: invalid filename %q", domain.ErrInvalidRequest, filename)
	}
	pngPath, err := s.locate(filename)
	if err != nil {
		return nil, domain.ImageRecord{}, err
	}

	data, err := os.ReadFile(pngPath)
	if err != nil {
		return nil, domain.ImageRecord{}, fmt.Errorf("read image: %w", err)
	}
	rec, err := readSidecar(sidecar(pngPath))
	if errors.Is(err, fs.ErrNotExist) {
		rec = domain.ImageRecord{Filename: filename, SizeBytes: len(data)}
	} else if err != nil {
		return nil, domain.ImageRecord{}, err
	}
	return data, rec, nil
}

// locate finds filename in the source directories, in name order.
func (s *DiskStore) locate(filename string) (string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", domain.ErrImageNotFound, filename)
	}
	if err != nil {
		return "", fmt.Errorf("read catalog dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(s.root, e.Name(), filename)
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat image: %w", err)
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrImageNotFound, filename)
}

func sidecar(pngPath string) string {
	return strings.TrimSuffix(pngPath, ".png") + ".json"
}

func readSidecar(path string) (domain.ImageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ImageRecord{}, fmt.Errorf("read metadata: %w", err)
	}
	var rec domain.ImageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.ImageRecord{}, fmt.Errorf("decode metadata: %w", err)
	}
	return rec, nil
}

// writeFileAtomic writes via a temp file and rename so readers never see a
// partial image.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func sortNewestFirst(records []domain.ImageRecord) {
	slices.SortFunc(records, func(a, b domain.ImageRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Filename, b.Filename)
	})
}
