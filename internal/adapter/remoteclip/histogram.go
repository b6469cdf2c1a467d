package remoteclip

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/imaging"
)

// HistogramModel names vectors produced by the local embedder.
const HistogramModel = "histogram-rgb-v1"

const (
	histSize = 64 // working resolution
	histBins = 16
	gridSide = 8

	// HistogramDim is the length of every histogram feature vector.
	HistogramDim int = 3*histBins + gridSide*gridSide*3 + int(numClasses)
)

type pixelClass int

const (
	classWater pixelClass = iota
	classForest
	classGrass
	classBuilt
	classBare
	classSnow
	numClasses
)

var classLabels = [numClasses]string{
	classWater:  "water body",
	classForest: "forest",
	classGrass:  "grassland",
	classBuilt:  "urban area",
	classBare:   "barren land",
	classSnow:   "snow and ice",
}

// Histogram is an offline Embedder built from colour statistics. It stands in
// for RemoteCLIP when no inference service is configured.
type Histogram struct {
	labels map[string]bool
}

// NewHistogram creates a histogram embedder that only reports labels from
// the given zero-shot set.
func NewHistogram(labels []string) *Histogram {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}
	return &Histogram{labels: set}
}

func (h *Histogram) Embed(_ context.Context, data []byte) (domain.FeatureVector, error) {
	img, _, err := imaging.Decode(data)
	if err != nil {
		return domain.FeatureVector{}, fmt.Errorf("%w: %v", domain.ErrModelInference, err)
	}
	small := imaging.Resize(img, histSize)

	features := make([]float32, HistogramDim)
	hist := features[:3*histBins]
	grid := features[3*histBins : 3*histBins+gridSide*gridSide*3]
	classes := features[3*histBins+gridSide*gridSide*3:]

	cell := histSize / gridSide
	n := float32(histSize * histSize)
	for y := range histSize {
		for x := range histSize {
			off := small.PixOffset(x, y)
			r, g, b := small.Pix[off], small.Pix[off+1], small.Pix[off+2]

			hist[int(r)*histBins/256]++
			hist[histBins+int(g)*histBins/256]++
			hist[2*histBins+int(b)*histBins/256]++

			gi := ((y/cell)*gridSide + x/cell) * 3
			grid[gi] += float32(r) / 255
			grid[gi+1] += float32(g) / 255
			grid[gi+2] += float32(b) / 255

			if c, ok := classify(r, g, b); ok {
				classes[c]++
			}
		}
	}
	for i := range hist {
		hist[i] /= n
	}
	perCell := float32(cell * cell)
	for i := range grid {
		grid[i] /= perCell
	}
	for i := range classes {
		classes[i] /= n
	}

	label, confidence := h.dominant(classes)
	return domain.NewFeatureVector(normalize(features), HistogramModel, label, confidence), nil
}

// dominant returns the most frequent pixel class whose label is enabled.
func (h *Histogram) dominant(fractions []float32) (string, float64) {
	order := make([]pixelClass, numClasses)
	for i := range order {
		order[i] = pixelClass(i)
	}
	slices.SortStableFunc(order, func(a, b pixelClass) int {
		return cmp.Compare(fractions[b], fractions[a])
	})
	for _, c := range order {
		if fractions[c] == 0 {
			break
		}
		if h.labels[classLabels[c]] {
			return classLabels[c], math.Round(float64(fractions[c])*1e4) / 1e4
		}
	}
	return "", 0
}

// classify assigns a pixel to a coarse land-cover class from its colour.
func classify(r8, g8, b8 uint8) (pixelClass, bool) {
	r, g, b := float64(r8)/255, float64(g8)/255, float64(b8)/255
	hi, lo := max(r, g, b), min(r, g, b)
	sat := 0.0
	if hi > 0 {
		sat = (hi - lo) / hi
	}

	switch {
	case lo > 0.85:
		return classSnow, true
	case b > r*1.2 && b > g*1.1 && hi < 0.6:
		return classWater, true
	case g > r*1.1 && g > b*1.1:
		if hi < 0.4 {
			return classForest, true
		}
		return classGrass, true
	case sat < 0.15 && hi >= 0.35:
		return classBuilt, true
	case r >= g && r > b:
		return classBare, true
	default:
		return 0, false
	}
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
