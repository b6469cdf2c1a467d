// Package domain models multi-year satellite change analysis.
//
// # Imagery
//
// A [Location] is analysed over an inclusive year range. For every year the
// active [ImageProvider] is searched for scenes acquired inside the growing
// season window (March 1 through October 31), which keeps snow cover and
// low sun angles out of the comparison. The least cloudy scene below the
// cloud-cover ceiling wins and is downloaded as an RGB PNG chip centred on
// the location. A year without any qualifying scene fails with
// [ErrDataUnavailable]; the remaining years are still analysed.
//
// Satellite collections:
//
//	sentinel2  Sentinel-2 MSI surface reflectance, 10 m, 2017 onwards
//	landsat8   Landsat 8 OLI Collection 2 Level 2, 30 m, 2013 onwards
//	landsat9   Landsat 9 OLI-2 Collection 2 Level 2, 30 m, 2021 onwards
//
// # Embeddings
//
// Each [TemporalImage] is turned into exactly one [FeatureVector] by an
// [Embedder]. RemoteCLIP (a CLIP model fine-tuned on remote sensing
// captions) is the production model; vectors also carry the best zero-shot
// land-cover label when the model returns one.
//
// # Change records
//
// [Compare] derives a [ChangeRecord] from two observations:
//
//	distance = 1 - cosine(a, b)
//	severity = clamp(distance / 0.5, 0, 1)
//
//	Level:   <0.02 none | <0.08 minor | <0.20 moderate | >=0.20 major
//
// Records are normalised so FromYear precedes ToYear, which makes the
// comparison symmetric under swapping its arguments. When both observations
// carry zero-shot labels that differ, the category names the land-cover
// transition (forest -> urban area is "urbanization"); otherwise it falls back
// to the change level.
package domain
