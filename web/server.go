// Copyright 2018 Fabian Wenzelmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mmavko/mos"

	log "github.com/sirupsen/logrus"
)

var (
	ErrAlreadyHandled = errors.New("Error was already handled")
)

const (
	VarKey        = "var"
	ValueKey      = "value"
	ConnectionKey = "connection"
)

// Context is shared by all handlers.
type Context struct {
	Storage ConnectionStorage
	// Config is the configuration new sessions start with.
	Config mos.Config
	// MaxUploadSize limits the body of mosaic requests in bytes.
	MaxUploadSize int64
	// Timeout is the maximal duration of a request, 0 means no limit.
	Timeout time.Duration
	started time.Time
}

func NewContext(storage ConnectionStorage, cfg mos.Config) *Context {
	return &Context{
		Storage:       storage,
		Config:        cfg,
		MaxUploadSize: 64 << 20,
		Timeout:       5 * time.Minute,
		started:       time.Now(),
	}
}

type HandlerFunc func(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error)

func ToHTTPFunc(context *Context, handler HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jsonData, err := handler(context, w, r); err != nil {
			if err != ErrAlreadyHandled {
				log.WithError(err).Error("Error in request")
				http.Error(w, "Internal Server Error", 500)
			}
		} else {
			jData, jErr := json.Marshal(jsonData)
			if jErr != nil {
				log.WithError(jErr).Error("Internal error: Can't marshal json")
				http.Error(w, "Internal Server Error", 500)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(jData)
		}
	}
}

type JSONMap map[string]interface{}

func (m JSONMap) GetString(key string) (string, error) {
	val, has := m[key]
	if !has {
		return "", fmt.Errorf("Key not found: %s", key)
	}
	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("Entry for %s not of type string", key)
	}
	return str, nil
}

// GetInt returns an integer entry. Numbers decoded from JSON are float64, they
// are accepted if they don't have a fractional part.
func (m JSONMap) GetInt(key string) (int, error) {
	val, has := m[key]
	if !has {
		return -1, fmt.Errorf("Key not found: %s", key)
	}
	switch v := val.(type) {
	case int:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return -1, fmt.Errorf("Entry for %s not an integer: %v", key, v)
		}
		return int(v), nil
	default:
		return -1, fmt.Errorf("Entry for %s not of type int", key)
	}
}

func (m JSONMap) GetFloat(key string) (float64, error) {
	val, has := m[key]
	if !has {
		return -1.0, fmt.Errorf("Key not found: %s", key)
	}
	asFloat, ok := val.(float64)
	if !ok {
		return -1.0, fmt.Errorf("Entry for %s not of type float", key)
	}
	return asFloat, nil
}

func (m JSONMap) GetBool(key string) (bool, error) {
	val, has := m[key]
	if !has {
		return false, fmt.Errorf("Key not found: %s", key)
	}
	asBool, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("Entry for %s not of type bool", key)
	}
	return asBool, nil
}

func (m JSONMap) GetConnection() (ConnectionID, error) {
	str, lookupErr := m.GetString(ConnectionKey)
	var id ConnectionID
	if lookupErr != nil {
		return id, lookupErr
	}
	return ParseConnectionID(str)
}

func ProcessRequest(w http.ResponseWriter, r *http.Request) (JSONMap, error) {
	if r.Body == nil {
		http.Error(w, "No request body given", 400)
		return nil, ErrAlreadyHandled
	}
	dec := json.NewDecoder(r.Body)
	m := make(map[string]interface{})
	err := dec.Decode(&m)
	if err != nil {
		http.Error(w,
			fmt.Sprintf("Invalid request, expected valid JSON, got: %s", err.Error()),
			400)
		return nil, ErrAlreadyHandled
	}
	return m, nil
}

type StateHandlerFunc func(state *State, context *Context, w http.ResponseWriter, jsonMap JSONMap) (interface{}, error)

// StateHandlerToHTTPFunc reads the connection id from the JSON body and
// calls handler with the state of that connection.
func StateHandlerToHTTPFunc(context *Context, handler StateHandlerFunc) http.HandlerFunc {
	mosaicHandler := func(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error) {
		json, jsonErr := ProcessRequest(w, r)
		if jsonErr != nil {
			return nil, jsonErr
		}
		connectionID, connectionKeyErr := json.GetConnection()
		if connectionKeyErr != nil {
			http.Error(w, connectionKeyErr.Error(), 400)
			return nil, ErrAlreadyHandled
		}
		state, connErr := context.Storage.Get(connectionID)
		if connErr != nil {
			http.Error(w, connErr.Error(), 400)
			return nil, ErrAlreadyHandled
		}
		state.Touch(time.Now().UTC())
		return handler(state, context, w, json)
	}
	return ToHTTPFunc(context, mosaicHandler)
}

// lookupState reads the connection id from the query string.
func lookupState(context *Context, w http.ResponseWriter, r *http.Request) (*State, error) {
	connectionID, parseErr := ParseConnectionID(r.URL.Query().Get(ConnectionKey))
	if parseErr != nil {
		http.Error(w, fmt.Sprintf("Invalid connection: %s", parseErr.Error()), 400)
		return nil, ErrAlreadyHandled
	}
	state, connErr := context.Storage.Get(connectionID)
	if connErr != nil {
		http.Error(w, connErr.Error(), 400)
		return nil, ErrAlreadyHandled
	}
	state.Touch(time.Now().UTC())
	return state, nil
}

func HealthHandler(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	res := map[string]interface{}{
		"status": "healthy",
		"uptime": int(time.Since(context.started).Seconds()),
	}
	return res, nil
}

func InitHandler(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	uuid, uuidErr := GenConnectionID()
	if uuidErr != nil {
		return nil, uuidErr
	}
	if setErr := context.Storage.Set(uuid, NewState(context.Config)); setErr != nil {
		return nil, setErr
	}
	res := map[string]string{
		ConnectionKey: uuid.String(),
	}
	return res, nil
}

func GetVarHandler(state *State, context *Context, w http.ResponseWriter, jsonMap JSONMap) (interface{}, error) {
	settings := state.Settings()
	res := map[string]interface{}{
		"tile-size":    settings.Config.TileSize,
		"tile-steps":   settings.Config.TileSteps,
		"grid":         settings.Config.GridTargetSize,
		"routines":     settings.Config.NumRoutines,
		"jpeg-quality": settings.JPGQuality,
		"interp":       mos.InterPString(settings.InterP),
		"color-space":  settings.ColorSpace.String(),
		"format":       settings.MimeType,
	}
	return res, nil
}

func positiveInt(jsonMap JSONMap, name string) (int, error) {
	val, err := jsonMap.GetInt(ValueKey)
	if err != nil {
		return -1, err
	}
	if val <= 0 {
		return -1, fmt.Errorf("%s must be positive, got %d", name, val)
	}
	return val, nil
}

func SetVarHandler(state *State, context *Context, w http.ResponseWriter, jsonMap JSONMap) (interface{}, error) {
	varName, varErr := jsonMap.GetString(VarKey)
	if varErr != nil {
		http.Error(w, varErr.Error(), 400)
		return nil, ErrAlreadyHandled
	}
	updateErr := state.Update(func(settings *Settings) error {
		var argErr error
		switch varName {
		case "tile-size":
			settings.Config.TileSize, argErr = positiveInt(jsonMap, varName)
		case "tile-steps":
			settings.Config.TileSteps, argErr = positiveInt(jsonMap, varName)
		case "grid":
			settings.Config.GridTargetSize, argErr = positiveInt(jsonMap, varName)
		case "routines":
			settings.Config.NumRoutines, argErr = positiveInt(jsonMap, varName)
		case "jpeg-quality":
			var newQuality int
			newQuality, argErr = jsonMap.GetInt(ValueKey)
			if argErr != nil {
				break
			}
			if newQuality < 1 || newQuality > 100 {
				argErr = fmt.Errorf("jpeg-quality must be a value between 1 and 100, got %d", newQuality)
				break
			}
			settings.JPGQuality = newQuality
		case "interp":
			var interpName string
			interpName, argErr = jsonMap.GetString(ValueKey)
			if argErr != nil {
				break
			}
			settings.InterP, argErr = mos.InterPFromString(interpName)
		case "color-space":
			var csName string
			csName, argErr = jsonMap.GetString(ValueKey)
			if argErr != nil {
				break
			}
			settings.ColorSpace, argErr = mos.ParseColorSpace(csName)
		case "format":
			var format string
			format, argErr = jsonMap.GetString(ValueKey)
			if argErr != nil {
				break
			}
			settings.MimeType, argErr = mos.MimeTypeFromExt("." + format)
		default:
			return fmt.Errorf("Invalid variable name %s", varName)
		}
		if argErr != nil {
			return argErr
		}
		return settings.Config.Validate()
	})
	if updateErr != nil {
		http.Error(w, updateErr.Error(), 400)
		return nil, ErrAlreadyHandled
	}
	res := map[string]bool{"success": true}
	return res, nil
}

func decodeUpload(header *multipart.FileHeader, cs mos.ColorSpace) (*mos.Image, error) {
	f, openErr := header.Open()
	if openErr != nil {
		return nil, openErr
	}
	defer f.Close()
	return mos.Decode(f, cs)
}

// MosaicHandler composes a mosaic from a multipart request with exactly one
// "target" file and any number of "source" files. The result is stored in the
// session and returned base64 encoded.
func MosaicHandler(context *Context, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	state, stateErr := lookupState(context, w, r)
	if stateErr != nil {
		return nil, stateErr
	}
	r.Body = http.MaxBytesReader(w, r.Body, context.MaxUploadSize)
	if formErr := r.ParseMultipartForm(32 << 20); formErr != nil {
		http.Error(w, fmt.Sprintf("Invalid multipart request: %s", formErr.Error()), 400)
		return nil, ErrAlreadyHandled
	}
	defer r.MultipartForm.RemoveAll()
	settings := state.Settings()

	targetFiles := r.MultipartForm.File["target"]
	if len(targetFiles) != 1 {
		http.Error(w, fmt.Sprintf("Expected exactly one target image, got %d", len(targetFiles)), 400)
		return nil, ErrAlreadyHandled
	}
	target, targetErr := decodeUpload(targetFiles[0], settings.ColorSpace)
	if targetErr != nil {
		http.Error(w, fmt.Sprintf("Can't read target image: %s", targetErr.Error()), 400)
		return nil, ErrAlreadyHandled
	}
	sources := mos.NewMemoryStorage()
	for _, header := range r.MultipartForm.File["source"] {
		img, imgErr := decodeUpload(header, settings.ColorSpace)
		if imgErr != nil {
			http.Error(w, fmt.Sprintf("Can't read source image %s: %s", header.Filename, imgErr.Error()), 400)
			return nil, ErrAlreadyHandled
		}
		sources.Add(header.Filename, img)
	}

	start := time.Now()
	resizer := mos.NewNfntResizer(settings.InterP)
	result, mosaicErr := mos.ComposeMosaic(r.Context(), target, sources, settings.Config, resizer, nil)
	if mosaicErr != nil {
		var noMatch *mos.NoMatchFoundError
		if errors.Is(mosaicErr, mos.ErrEmptyGrid) || errors.As(mosaicErr, &noMatch) {
			http.Error(w, mosaicErr.Error(), 400)
			return nil, ErrAlreadyHandled
		}
		return nil, mosaicErr
	}
	log.WithFields(log.Fields{
		"width":    result.Width,
		"height":   result.Height,
		"sources":  sources.NumImages(),
		"duration": time.Since(start),
	}).Info("Created mosaic")
	state.SetResult(result)

	encoded, encodeErr := EncodeBase64(result, settings.MimeType, settings.JPGQuality)
	if encodeErr != nil {
		return nil, encodeErr
	}
	res := map[string]interface{}{
		"width":    result.Width,
		"height":   result.Height,
		"mime":     settings.MimeType,
		"image":    encoded,
		"duration": time.Since(start).String(),
	}
	return res, nil
}

// ResultHandler writes the last mosaic of a session in the session's format.
func ResultHandler(context *Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, stateErr := lookupState(context, w, r)
		if stateErr != nil {
			return
		}
		result := state.Result()
		if result == nil {
			http.Error(w, "No mosaic created yet", 404)
			return
		}
		settings := state.Settings()
		var buf bytes.Buffer
		if err := mos.Encode(&buf, result, settings.MimeType, settings.JPGQuality); err != nil {
			log.WithError(err).Error("Can't encode mosaic")
			http.Error(w, "Internal Server Error", 500)
			return
		}
		w.Header().Set("Content-Type", settings.MimeType)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Write(buf.Bytes())
	}
}

// NewRouter returns a chi router serving all handlers.
func NewRouter(context *Context) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if context.Timeout > 0 {
		r.Use(middleware.Timeout(context.Timeout))
	}

	r.Get("/health", ToHTTPFunc(context, HealthHandler))
	r.Route("/api", func(r chi.Router) {
		r.Post("/init", ToHTTPFunc(context, InitHandler))
		r.Post("/getvar", StateHandlerToHTTPFunc(context, GetVarHandler))
		r.Post("/setvar", StateHandlerToHTTPFunc(context, SetVarHandler))
		r.Post("/mosaic", ToHTTPFunc(context, MosaicHandler))
		r.Get("/mosaic", ResultHandler(context))
	})
	return r
}
