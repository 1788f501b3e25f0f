// Package api holds the HTTP API models and the chi routing glue for the
// tbviewer server. Handlers implement ServerInterface; path and query
// parameters are bound before the handler is called.
package api

import "time"

// Defines values for HealthResponseStatus.
const (
	Healthy   HealthResponseStatus = "healthy"
	Unhealthy HealthResponseStatus = "unhealthy"
)

// Defines values for ValidationErrorResponseError.
const (
	VALIDATIONERROR ValidationErrorResponseError = "VALIDATION_ERROR"
)

// HealthResponseStatus defines model for HealthResponse.Status.
type HealthResponseStatus string

// HealthResponse defines model for HealthResponse.
type HealthResponse struct {
	Status    HealthResponseStatus `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	Uptime    *int                 `json:"uptime,omitempty"`
	Version   *string              `json:"version,omitempty"`
	Atlas     *string              `json:"atlas,omitempty"`
}

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Error     string                  `json:"error"`
	Message   string                  `json:"message"`
	RequestId *string                 `json:"request_id,omitempty"`
	Details   *map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorResponseError defines model for ValidationErrorResponse.Error.
type ValidationErrorResponseError string

// ValidationError is a single rejected request field.
type ValidationError struct {
	Code    *string `json:"code,omitempty"`
	Field   string  `json:"field"`
	Message string  `json:"message"`
}

// ValidationErrorResponse defines model for ValidationErrorResponse.
type ValidationErrorResponse struct {
	Error            ValidationErrorResponseError `json:"error"`
	Message          string                       `json:"message"`
	RequestId        *string                      `json:"request_id,omitempty"`
	ValidationErrors []ValidationError            `json:"validation_errors"`
}

// MapSummary defines model for MapSummary.
type MapSummary struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Layer defines model for Layer.
type Layer struct {
	Name string       `json:"name"`
	Maps []MapSummary `json:"maps"`
}

// Atlas defines model for Atlas.
type Atlas struct {
	Path   string  `json:"path"`
	Type   string  `json:"type"`
	Layers []Layer `json:"layers"`
}

// Corner defines model for Corner.
type Corner struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Bounds defines model for Bounds.
type Bounds struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// MapInfo defines model for MapInfo.
type MapInfo struct {
	Layer         string    `json:"layer"`
	Name          string    `json:"name"`
	ImageFilename string    `json:"image_filename"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	TileWidth     int       `json:"tile_width"`
	TileHeight    int       `json:"tile_height"`
	Tiles         int       `json:"tiles"`
	Calibrated    bool      `json:"calibrated"`
	Projection    *string   `json:"projection,omitempty"`
	Mm1b          *float64  `json:"mm1b,omitempty"`
	Corners       *[]Corner `json:"corners,omitempty"`
	Bounds        *Bounds   `json:"bounds,omitempty"`
}

// LonLatResponse defines model for LonLatResponse.
type LonLatResponse struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Lon     float64 `json:"lon"`
	Lat     float64 `json:"lat"`
	LonText string  `json:"lon_text"`
	LatText string  `json:"lat_text"`
}

// CalibrationPoint defines model for CalibrationPoint.
type CalibrationPoint struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// CalibrateRequest defines model for CalibrateRequest.
type CalibrateRequest struct {
	Width         int                `json:"width"`
	Height        int                `json:"height"`
	Points        []CalibrationPoint `json:"points"`
	ImageFilename *string            `json:"image_filename,omitempty"`
}

// GetTileParams defines parameters for GetTile.
type GetTileParams struct {
	// Scale resizes the tile; 1 returns the stored bytes.
	Scale *float64 `form:"scale,omitempty" json:"scale,omitempty"`
}

// GetLonLatParams defines parameters for GetLonLat.
type GetLonLatParams struct {
	X float64 `form:"x" json:"x"`
	Y float64 `form:"y" json:"y"`
}

// CalibrateJSONRequestBody defines body for Calibrate for application/json ContentType.
type CalibrateJSONRequestBody = CalibrateRequest
