package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/analysis"
	"github.com/couchcryptid/satellite-change-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const (
	apiName    = "Geospatial Temporal Analysis API"
	apiVersion = "1.0.0"

	// multipartMemory is held in memory before parts spill to temp files.
	multipartMemory = 8 << 20
)

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"name":        apiName,
		"version":     apiVersion,
		"status":      "running",
		"data_source": s.svc.Sources().ActiveSource(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"timestamp":         domain.Now().Format(time.RFC3339),
		"data_loader_ready": s.svc.CheckReadiness(r.Context()) == nil,
	})
}

func (s *Server) handleDataSources(w http.ResponseWriter, _ *http.Request) {
	sources := s.svc.Sources()
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"sources": sources.List(),
		"active":  sources.ActiveSource(),
	})
}

type switchRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleSwitchSource(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	src, err := domain.ParseDataSource(req.Source)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Sources().Switch(src); err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       fmt.Sprintf("Switched to %s", src),
		"active_source": src,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req analysis.SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Search(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   res.Count,
		"source":  res.Source,
		"results": res.Results,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Analyze(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

// handleAnalyzeImage accepts one or more "image" parts. The i-th "year" value,
// when present, dates the i-th image; "latitude" and "longitude" optionally
// locate the upload.
func (s *Server) handleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	if s.opts.UploadMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.UploadMaxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if !errors.As(err, &maxBytes) {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
		}
		s.writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp file cleanup

	req, err := imagesRequest(r.MultipartForm)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.AnalyzeImages(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	place := q.Get("place")
	year1, err1 := requiredInt(q.Get("year1"), "year1")
	year2, err2 := requiredInt(q.Get("year2"), "year2")
	var lat, lon float64
	var err3, err4 error
	if place == "" {
		lat, err3 = requiredFloat(q.Get("lat"), "lat")
		lon, err4 = requiredFloat(q.Get("lon"), "lon")
	}
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		s.writeError(w, r, err)
		return
	}

	req := analysis.CompareRequest{
		Place:     place,
		Year1:     year1,
		Year2:     year2,
		Latitude:  lat,
		Longitude: lon,
		Satellite: q.Get("satellite"),
	}
	if v := q.Get("max_cloud_cover"); v != "" {
		cloud, err := requiredFloat(v, "max_cloud_cover")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.MaxCloudCover = &cloud
	}

	rec, err := s.svc.Compare(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	source := s.svc.Sources().ActiveSource()
	images := []domain.ImageRecord{}
	if cat := s.svc.Catalog(); cat != nil {
		list, err := cat.List(r.Context(), source)
		if err != nil {
			s.logger.Error("list images failed", "error", err)
			sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Error: err.Error()})
			return
		}
		if list != nil {
			images = list
		}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"source":  source,
		"count":   len(images),
		"images":  images,
	})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	cat := s.svc.Catalog()
	if cat == nil {
		s.writeError(w, r, domain.ErrImageNotFound)
		return
	}
	data, rec, err := cat.Open(r.Context(), r.PathValue("filename"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Last-Modified", rec.CreatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client may have gone away
}

func (s *Server) handleSampleLocations(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"locations": s.opts.Locations})
}

// decodeJSON reads a JSON body into v. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed JSON body: %v", domain.ErrInvalidRequest, err)
	}
	return nil
}

func imagesRequest(form *multipart.Form) (analysis.ImagesRequest, error) {
	files := form.File["image"]
	if len(files) == 0 {
		return analysis.ImagesRequest{}, fmt.Errorf("%w: multipart field \"image\" is required", domain.ErrInvalidRequest)
	}
	years := form.Value["year"]
	if len(years) > len(files) {
		return analysis.ImagesRequest{}, fmt.Errorf("%w: %d years given for %d images", domain.ErrInvalidRequest, len(years), len(files))
	}

	var req analysis.ImagesRequest
	for i, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			return analysis.ImagesRequest{}, err
		}
		up := analysis.UploadedImage{Filename: fh.Filename, Data: data}
		if i < len(years) && years[i] != "" {
			if up.Year, err = requiredInt(years[i], "year"); err != nil {
				return analysis.ImagesRequest{}, err
			}
		}
		req.Images = append(req.Images, up)
	}

	lat, lon := formValue(form, "latitude"), formValue(form, "longitude")
	if lat == "" && lon == "" {
		return req, nil
	}
	latV, err1 := requiredFloat(lat, "latitude")
	lonV, err2 := requiredFloat(lon, "longitude")
	if err := errors.Join(err1, err2); err != nil {
		return analysis.ImagesRequest{}, err
	}
	req.Location = &domain.Location{Latitude: latV, Longitude: lonV}
	return req, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", fh.Filename, err)
	}
	return data, nil
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func requiredInt(v, field string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidRequest, field)
	}
	return n, nil
}

func requiredFloat(v, field string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidRequest, field)
	}
	return f, nil
}
