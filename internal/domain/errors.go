package domain

import "errors"

var (
	// ErrDataUnavailable means the provider has no cloud-free scene for the
	// requested location and year.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrModelInference means the embedding model could not process the image,
	// usually because the input is not a decodable image.
	ErrModelInference = errors.New("model inference error")

	// ErrDimensionMismatch means two feature vectors have different lengths.
	ErrDimensionMismatch = errors.New("feature vector dimension mismatch")

	// ErrInvalidLocation means latitude or longitude is out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidRequest covers every other request validation failure.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrImageNotFound means no catalogued image has the requested filename.
	ErrImageNotFound = errors.New("image not found")

	// ErrSourceUnavailable means the requested data source is not configured
	// or could not be initialised.
	ErrSourceUnavailable = errors.New("data source unavailable")
)
