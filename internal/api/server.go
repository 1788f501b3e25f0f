package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Service health
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// Layers and maps of the opened atlas
	// (GET /atlas)
	GetAtlas(w http.ResponseWriter, r *http.Request)
	// Map size, tile grid and calibration
	// (GET /maps/{layer}/{map})
	GetMap(w http.ResponseWriter, r *http.Request, layer string, mapName string)
	// Tile image at a pixel offset
	// (GET /maps/{layer}/{map}/tiles/{col}/{row})
	GetTile(w http.ResponseWriter, r *http.Request, layer string, mapName string, col int, row int, params GetTileParams)
	// Geographic position of an image pixel
	// (GET /maps/{layer}/{map}/lonlat)
	GetLonLat(w http.ResponseWriter, r *http.Request, layer string, mapName string, params GetLonLatParams)
	// Calibrate points and render a .map file
	// (POST /calibrate)
	Calibrate(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	handler := http.Handler(h)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetHealth)
}

// GetAtlas operation middleware
func (siw *ServerInterfaceWrapper) GetAtlas(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetAtlas)
}

// bindMapPath binds the {layer} and {map} path parameters.
func (siw *ServerInterfaceWrapper) bindMapPath(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	var layer, mapName string

	err := runtime.BindStyledParameterWithOptions("simple", "layer", chi.URLParam(r, "layer"), &layer,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "layer", Err: err})
		return "", "", false
	}

	err = runtime.BindStyledParameterWithOptions("simple", "map", chi.URLParam(r, "map"), &mapName,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "map", Err: err})
		return "", "", false
	}
	return layer, mapName, true
}

// GetMap operation middleware
func (siw *ServerInterfaceWrapper) GetMap(w http.ResponseWriter, r *http.Request) {
	layer, mapName, ok := siw.bindMapPath(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetMap(w, r, layer, mapName)
	})
}

// GetTile operation middleware
func (siw *ServerInterfaceWrapper) GetTile(w http.ResponseWriter, r *http.Request) {
	layer, mapName, ok := siw.bindMapPath(w, r)
	if !ok {
		return
	}

	var col, row int
	err := runtime.BindStyledParameterWithOptions("simple", "col", chi.URLParam(r, "col"), &col,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "col", Err: err})
		return
	}
	err = runtime.BindStyledParameterWithOptions("simple", "row", chi.URLParam(r, "row"), &row,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "row", Err: err})
		return
	}

	var params GetTileParams

	// ------------- Optional query parameter "scale" -------------
	err = runtime.BindQueryParameter("form", true, false, "scale", r.URL.Query(), &params.Scale)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "scale", Err: err})
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetTile(w, r, layer, mapName, col, row, params)
	})
}

// GetLonLat operation middleware
func (siw *ServerInterfaceWrapper) GetLonLat(w http.ResponseWriter, r *http.Request) {
	layer, mapName, ok := siw.bindMapPath(w, r)
	if !ok {
		return
	}

	var params GetLonLatParams
	query := r.URL.Query()

	// ------------- Required query parameters "x" and "y" -------------
	for _, p := range []struct {
		name string
		dest *float64
	}{{"x", &params.X}, {"y", &params.Y}} {
		if query.Get(p.name) == "" {
			siw.ErrorHandlerFunc(w, r, &RequiredParamError{ParamName: p.name})
			return
		}
		if err := runtime.BindQueryParameter("form", true, true, p.name, query, p.dest); err != nil {
			siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: p.name, Err: err})
			return
		}
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetLonLat(w, r, layer, mapName, params)
	})
}

// Calibrate operation middleware
func (siw *ServerInterfaceWrapper) Calibrate(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Calibrate)
}

type RequiredParamError struct {
	ParamName string
}

func (e *RequiredParamError) Error() string {
	return fmt.Sprintf("Query argument %s is required, but not found", e.ParamName)
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// Handler creates http.Handler with the API routes.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions creates http.Handler with additional options
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health", wrapper.GetHealth)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/atlas", wrapper.GetAtlas)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/maps/{layer}/{map}", wrapper.GetMap)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/maps/{layer}/{map}/tiles/{col}/{row}", wrapper.GetTile)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/maps/{layer}/{map}/lonlat", wrapper.GetLonLat)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/calibrate", wrapper.Calibrate)
	})

	return r
}
