package domain

import (
	"fmt"
	"math"
	"slices"
)

// FeatureVector is an immutable embedding of one image.
type FeatureVector struct {
	values     []float32
	Model      string
	Label      string
	Confidence float64
}

// NewFeatureVector copies values so later mutation of the caller's slice does
// not leak into the vector.
func NewFeatureVector(values []float32, model, label string, confidence float64) FeatureVector {
	return FeatureVector{
		values:     slices.Clone(values),
		Model:      model,
		Label:      label,
		Confidence: confidence,
	}
}

// Dim is the vector length.
func (v FeatureVector) Dim() int { return len(v.values) }

// Values returns a copy of the components.
func (v FeatureVector) Values() []float32 { return slices.Clone(v.values) }

// Norm is the Euclidean length.
func (v FeatureVector) Norm() float64 {
	var sum float64
	for _, x := range v.values {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Two zero vectors are identical (1); a zero and a non-zero vector are
// treated as orthogonal (0).
func CosineSimilarity(a, b FeatureVector) (float64, error) {
	if a.Dim() != b.Dim() {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, a.Dim(), b.Dim())
	}
	na, nb := a.Norm(), b.Norm()
	switch {
	case na == 0 && nb == 0:
		return 1, nil
	case na == 0 || nb == 0:
		return 0, nil
	}
	var dot float64
	for i := range a.values {
		dot += float64(a.values[i]) * float64(b.values[i])
	}
	sim := dot / (na * nb)
	return math.Max(-1, math.Min(1, sim)), nil
}
