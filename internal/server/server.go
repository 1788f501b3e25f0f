package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/kbedkowski/tbviewer/internal/api"
	"github.com/kbedkowski/tbviewer/internal/atlas"
	"github.com/kbedkowski/tbviewer/internal/imaging"
	"github.com/kbedkowski/tbviewer/internal/tileset"
	"github.com/kbedkowski/tbviewer/pkg/georef"
	"github.com/kbedkowski/tbviewer/pkg/mapfile"
)

// MaxScale bounds the tile scale accepted by the tile endpoint.
const MaxScale = 8

var errMapNotFound = errors.New("map not found")

// Server implements api.ServerInterface over one opened atlas.
type Server struct {
	startTime time.Time
	version   string
	atlas     *atlas.Atlas
	logger    *slog.Logger

	mu    sync.Mutex
	maps  map[atlas.MapRef]*atlas.Map
	tiles singleflight.Group
}

// NewServer creates a new server instance. a may be nil, in which case only
// health and calibration are served.
func NewServer(version string, a *atlas.Atlas, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		startTime: time.Now(),
		version:   version,
		atlas:     a,
		logger:    logger,
		maps:      make(map[atlas.MapRef]*atlas.Map),
	}
}

// Close releases every map opened by the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for ref, m := range s.maps {
		errs = append(errs, m.Close())
		delete(s.maps, ref)
	}
	return errors.Join(errs...)
}

// NewRouter mounts the API at /api/v1 with the standard middleware stack.
func NewRouter(s *Server, timeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))

	// CORS middleware for API access
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		api.HandlerWithOptions(s, api.ChiServerOptions{
			BaseRouter:       r,
			ErrorHandlerFunc: s.paramError,
		})
	})

	// Legacy health endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/v1/health", http.StatusMovedPermanently)
	})

	return r
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}
	if s.atlas != nil {
		response.Atlas = &s.atlas.Path
	}

	s.writeJSON(w, http.StatusOK, response)
}

// GetAtlas lists layers and maps
func (s *Server) GetAtlas(w http.ResponseWriter, r *http.Request) {
	requestID := generateRequestID()
	if s.atlas == nil {
		s.writeErrorResponse(w, http.StatusNotFound, "NO_ATLAS", "No atlas loaded", &requestID, nil)
		return
	}

	response := api.Atlas{
		Path:   s.atlas.Path,
		Type:   s.atlas.Type.String(),
		Layers: make([]api.Layer, 0, len(s.atlas.Layers)),
	}
	for _, l := range s.atlas.Layers {
		layer := api.Layer{Name: l.Name, Maps: make([]api.MapSummary, 0, len(l.Maps))}
		for _, m := range l.Maps {
			layer.Maps = append(layer.Maps, api.MapSummary{Name: m.Name, Path: m.Path})
		}
		response.Layers = append(response.Layers, layer)
	}
	s.writeJSON(w, http.StatusOK, response)
}

// GetMap describes a map
func (s *Server) GetMap(w http.ResponseWriter, r *http.Request, layer string, mapName string) {
	requestID := generateRequestID()
	m, err := s.openMap(layer, mapName)
	if err != nil {
		s.handleMapError(w, err, &requestID)
		return
	}

	meta, ix := m.Meta(), m.Index()
	if meta == nil || ix == nil {
		s.handleMapError(w, atlas.ErrNotReady, &requestID)
		return
	}
	response := api.MapInfo{
		Layer:         layer,
		Name:          mapName,
		ImageFilename: meta.ImageFilename,
		Width:         meta.ImageWidth,
		Height:        meta.ImageHeight,
		TileWidth:     ix.TileWidth,
		TileHeight:    ix.TileHeight,
		Tiles:         ix.Len(),
		Calibrated:    meta.Calibrated(),
	}
	if meta.Projection != "" {
		response.Projection = &meta.Projection
	}
	if corners, err := meta.Corners(); err == nil {
		list := make([]api.Corner, 0, len(corners))
		for _, c := range corners {
			list = append(list, api.Corner{X: c.X, Y: c.Y, Lon: c.Lon, Lat: c.Lat})
		}
		b := meta.Bound()
		response.Corners = &list
		response.Bounds = &api.Bounds{MinLon: b.Min.Lon(), MinLat: b.Min.Lat(), MaxLon: b.Max.Lon(), MaxLat: b.Max.Lat()}
		response.Mm1b = &meta.MM1B
	}

	s.writeJSON(w, http.StatusOK, response)
}

type tileResult struct {
	data        []byte
	contentType string
}

// GetTile serves one tile. Scale 1 returns the stored image bytes, other
// scales are resized and encoded as PNG.
func (s *Server) GetTile(w http.ResponseWriter, r *http.Request, layer string, mapName string, col int, row int, params api.GetTileParams) {
	requestID := generateRequestID()

	scale := 1.0
	if params.Scale != nil {
		scale = *params.Scale
	}
	if scale <= 0 || scale > MaxScale {
		s.writeValidationErrorResponse(w, "scale", fmt.Sprintf("scale must be in (0, %d]", MaxScale), &requestID)
		return
	}

	m, err := s.openMap(layer, mapName)
	if err != nil {
		s.handleMapError(w, err, &requestID)
		return
	}

	key := fmt.Sprintf("%s/%s/%d/%d@%g", layer, mapName, col, row, scale)
	v, err, _ := s.tiles.Do(key, func() (interface{}, error) {
		return loadTile(m, col, row, scale)
	})
	if err != nil {
		s.logger.Error("tile load failed", "request_id", requestID, "tile", key, "error", err)
		s.handleMapError(w, err, &requestID)
		return
	}
	res := v.(*tileResult)
	if res == nil {
		s.writeErrorResponse(w, http.StatusNotFound, "TILE_NOT_FOUND",
			fmt.Sprintf("No tile at %d,%d", col, row), &requestID, nil)
		return
	}

	w.Header().Set("Content-Type", res.contentType)
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.data); err != nil {
		s.logger.Error("Error writing response", "request_id", requestID, "error", err)
	}
}

func loadTile(m *atlas.Map, col, row int, scale float64) (*tileResult, error) {
	if scale == 1 {
		data, err := m.TileBytes(col, row)
		if err != nil || data == nil {
			return nil, err
		}
		return &tileResult{data: data, contentType: http.DetectContentType(data)}, nil
	}

	img, err := m.Tile(col, row, scale)
	if err != nil || img == nil {
		return nil, err
	}
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode tile: %w", err)
	}
	return &tileResult{data: data, contentType: "image/png"}, nil
}

// GetLonLat maps a pixel to coordinates
func (s *Server) GetLonLat(w http.ResponseWriter, r *http.Request, layer string, mapName string, params api.GetLonLatParams) {
	requestID := generateRequestID()
	m, err := s.openMap(layer, mapName)
	if err != nil {
		s.handleMapError(w, err, &requestID)
		return
	}

	lon, lat, err := m.LonLat(params.X, params.Y)
	if err != nil {
		s.handleMapError(w, err, &requestID)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LonLatResponse{
		X:       params.X,
		Y:       params.Y,
		Lon:     lon,
		Lat:     lat,
		LonText: georef.FormatLon(lon),
		LatText: georef.FormatLat(lat),
	})
}

// Calibrate fits the posted points and returns the .map file text
func (s *Server) Calibrate(w http.ResponseWriter, r *http.Request) {
	requestID := generateRequestID()

	var req api.CalibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid JSON in request body", &requestID, nil)
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		s.writeValidationErrorResponse(w, "width", "width and height must be positive", &requestID)
		return
	}

	points := make([]georef.Point, len(req.Points))
	for i, p := range req.Points {
		points[i] = georef.Point{Index: i, X: p.X, Y: p.Y, Lon: p.Lon, Lat: p.Lat}
	}
	cal, err := georef.Calibrate(points, req.Width, req.Height)
	switch {
	case errors.Is(err, georef.ErrInsufficientPoints):
		s.writeValidationErrorResponse(w, "points", err.Error(), &requestID)
		return
	case errors.Is(err, georef.ErrDegenerateCalibration):
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, "DEGENERATE_CALIBRATION",
			err.Error(), &requestID, nil)
		return
	case err != nil:
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), &requestID, nil)
		return
	}

	meta := mapfile.FromCalibration(points, cal, req.Width, req.Height)
	if req.ImageFilename != nil {
		meta.ImageFilename = *req.ImageFilename
	}
	text := meta.Text()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		s.logger.Error("Error writing response", "request_id", requestID, "error", err)
	}
}

// openMap returns the cached handle for layer/name, loading it on first use.
func (s *Server) openMap(layer, name string) (*atlas.Map, error) {
	if s.atlas == nil {
		return nil, errMapNotFound
	}
	ref, ok := s.atlas.Lookup(layer, name)
	if !ok {
		return nil, errMapNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.maps[ref]; ok {
		return m, nil
	}
	m, err := s.atlas.OpenMap(ref)
	if err != nil {
		s.logger.Error("map load failed", "layer", layer, "map", name, "error", err)
		return nil, err
	}
	s.maps[ref] = m
	return m, nil
}

// handleMapError maps load and query errors to responses
func (s *Server) handleMapError(w http.ResponseWriter, err error, requestID *string) {
	var parseErr *mapfile.ParseError
	switch {
	case errors.Is(err, errMapNotFound):
		s.writeErrorResponse(w, http.StatusNotFound, "MAP_NOT_FOUND", "Map not found", requestID, nil)
	case errors.As(err, &parseErr):
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, "INVALID_MAP_FILE", err.Error(), requestID,
			map[string]interface{}{"line": parseErr.LineNo})
	case errors.Is(err, mapfile.ErrNotCalibrated):
		s.writeErrorResponse(w, http.StatusConflict, "NOT_CALIBRATED", "Map is not calibrated", requestID, nil)
	case errors.Is(err, tileset.ErrMissingSetFiles),
		errors.Is(err, atlas.ErrMissingMapFile),
		errors.Is(err, atlas.ErrNoImageSize):
		s.writeErrorResponse(w, http.StatusUnprocessableEntity, "INVALID_MAP", err.Error(), requestID, nil)
	default:
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", requestID, nil)
	}
}

// paramError reports path and query binding failures
func (s *Server) paramError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := generateRequestID()
	field := "request"
	var invalid *api.InvalidParamFormatError
	var required *api.RequiredParamError
	switch {
	case errors.As(err, &invalid):
		field = invalid.ParamName
	case errors.As(err, &required):
		field = required.ParamName
	}
	s.writeValidationErrorResponse(w, field, err.Error(), &requestID)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding response", "error", err)
	}
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, requestID *string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestId: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	s.writeJSON(w, statusCode, response)
}

// writeValidationErrorResponse writes a validation error response
func (s *Server) writeValidationErrorResponse(w http.ResponseWriter, field, message string, requestID *string) {
	response := api.ValidationErrorResponse{
		Error:     api.VALIDATIONERROR,
		Message:   message,
		RequestId: requestID,
		ValidationErrors: []api.ValidationError{
			{
				Field:   field,
				Message: message,
			},
		},
	}

	s.writeJSON(w, http.StatusBadRequest, response)
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return "req_" + uuid.NewString()
}
