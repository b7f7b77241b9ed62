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
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmavko/mos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() mos.Config {
	return mos.Config{
		TileSize:       20,
		TileSteps:      2,
		GridTargetSize: 2,
		NumRoutines:    2,
	}
}

func setupTestServer(t *testing.T) (*httptest.Server, *MemStorage) {
	t.Helper()
	storage := NewMemStorage()
	server := httptest.NewServer(NewRouter(NewContext(storage, testConfig())))
	t.Cleanup(server.Close)
	return server, storage
}

func patternImage(width, height int) *mos.Image {
	img := mos.NewImage(width, height, mos.RGB)
	for i := range img.Pixels {
		img.Pixels[i] = byte((i*7 + (i/(width*3))*13) % 256)
	}
	return img
}

func encodePNG(t *testing.T, img *mos.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, mos.Encode(&buf, img, mos.MimePNG, 0))
	return buf.Bytes()
}

func postJSON(t *testing.T, url string, body map[string]interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	var res map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return resp, res
}

func initConnection(t *testing.T, server *httptest.Server) string {
	t.Helper()
	resp, res := postJSON(t, server.URL+"/api/init", map[string]interface{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id, ok := res[ConnectionKey].(string)
	require.True(t, ok)
	return id
}

func postMosaic(t *testing.T, url string, files map[string][][]byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for field, contents := range files {
		for _, content := range contents {
			part, err := writer.CreateFormFile(field, field+".png")
			require.NoError(t, err)
			_, err = part.Write(content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, writer.Close())
	resp, err := http.Post(url, writer.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var res map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "healthy", res["status"])
}

func TestInitAndGetVar(t *testing.T) {
	server, storage := setupTestServer(t)
	id := initConnection(t, server)
	assert.Equal(t, 1, storage.Len())

	resp, res := postJSON(t, server.URL+"/api/getvar", map[string]interface{}{ConnectionKey: id})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(20), res["tile-size"])
	assert.Equal(t, float64(2), res["grid"])
	assert.Equal(t, "lanczos3", res["interp"])
	assert.Equal(t, "rgb", res["color-space"])
	assert.Equal(t, mos.MimeJPEG, res["format"])
}

func TestUnknownConnection(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing", map[string]interface{}{}},
		{"invalid", map[string]interface{}{ConnectionKey: "not-a-uuid"}},
		{"unknown", map[string]interface{}{ConnectionKey: "0b6f2a4e-9d8c-4a51-8a4e-2d3c5f1e7a90"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postJSON(t, server.URL+"/api/getvar", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	resp, err := http.Get(server.URL + "/api/mosaic?connection=0b6f2a4e-9d8c-4a51-8a4e-2d3c5f1e7a90")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetVar(t *testing.T) {
	server, _ := setupTestServer(t)
	id := initConnection(t, server)

	tests := []struct {
		name     string
		variable string
		value    interface{}
		status   int
	}{
		{"tile size", "tile-size", 10, http.StatusOK},
		{"tile size fraction", "tile-size", 2.5, http.StatusBadRequest},
		{"tile size negative", "tile-size", -1, http.StatusBadRequest},
		{"routines", "routines", 3, http.StatusOK},
		{"jpeg quality", "jpeg-quality", 75, http.StatusOK},
		{"jpeg quality range", "jpeg-quality", 0, http.StatusBadRequest},
		{"interp", "interp", "bicubic", http.StatusOK},
		{"interp unknown", "interp", "sharp", http.StatusBadRequest},
		{"color space", "color-space", "gray", http.StatusOK},
		{"format", "format", "png", http.StatusOK},
		{"format unknown", "format", "psd", http.StatusBadRequest},
		{"wrong type", "grid", "many", http.StatusBadRequest},
		{"unknown variable", "colour", 1, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postJSON(t, server.URL+"/api/setvar", map[string]interface{}{
				ConnectionKey: id,
				VarKey:        tt.variable,
				ValueKey:      tt.value,
			})
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	resp, res := postJSON(t, server.URL+"/api/getvar", map[string]interface{}{ConnectionKey: id})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(10), res["tile-size"])
	assert.Equal(t, float64(3), res["routines"])
	assert.Equal(t, float64(75), res["jpeg-quality"])
	assert.Equal(t, "bicubic", res["interp"])
	assert.Equal(t, "gray", res["color-space"])
	assert.Equal(t, mos.MimePNG, res["format"])
}

func TestMosaic(t *testing.T) {
	server, _ := setupTestServer(t)
	id := initConnection(t, server)
	url := server.URL + "/api/mosaic?connection=" + id

	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	setResp, _ := postJSON(t, server.URL+"/api/setvar", map[string]interface{}{
		ConnectionKey: id,
		VarKey:        "format",
		ValueKey:      "png",
	})
	require.Equal(t, http.StatusOK, setResp.StatusCode)

	target := patternImage(40, 40)
	encoded := encodePNG(t, target)
	resp = postMosaic(t, url, map[string][][]byte{
		"target": {encoded},
		"source": {encoded},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, float64(40), res["width"])
	assert.Equal(t, float64(40), res["height"])
	assert.Equal(t, mos.MimePNG, res["mime"])

	data, err := base64.StdEncoding.DecodeString(res["image"].(string))
	require.NoError(t, err)
	img, err := mos.Decode(bytes.NewReader(data), mos.RGB)
	require.NoError(t, err)
	assert.Equal(t, target, img)

	// the last result can be fetched again
	getResp, err := http.Get(url)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.Equal(t, mos.MimePNG, getResp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(getResp.Body)
	require.NoError(t, err)
	img, err = mos.Decode(bytes.NewReader(raw), mos.RGB)
	require.NoError(t, err)
	assert.Equal(t, target, img)
}

func TestMosaicBadRequests(t *testing.T) {
	server, _ := setupTestServer(t)
	id := initConnection(t, server)
	url := server.URL + "/api/mosaic?connection=" + id
	target := encodePNG(t, patternImage(40, 40))

	tests := []struct {
		name  string
		files map[string][][]byte
	}{
		{"no target", map[string][][]byte{"source": {target}}},
		{"two targets", map[string][][]byte{"target": {target, target}, "source": {target}}},
		{"no sources", map[string][][]byte{"target": {target}}},
		{"broken target", map[string][][]byte{"target": {[]byte("nope")}, "source": {target}}},
		{"broken source", map[string][][]byte{"target": {target}, "source": {[]byte("nope")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postMosaic(t, url, tt.files)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestMemStorageFilter(t *testing.T) {
	storage := NewMemStorage()
	oldID, err := GenConnectionID()
	require.NoError(t, err)
	newID, err := GenConnectionID()
	require.NoError(t, err)

	old := NewState(testConfig())
	old.Touch(time.Now().UTC().Add(-2 * time.Hour))
	require.NoError(t, storage.Set(oldID, old))
	require.NoError(t, storage.Set(newID, NewState(testConfig())))

	require.NoError(t, storage.Filter(time.Hour))
	assert.Equal(t, 1, storage.Len())
	_, err = storage.Get(oldID)
	assert.ErrorIs(t, err, ErrConnNotFound)
	_, err = storage.Get(newID)
	assert.NoError(t, err)

	require.NoError(t, storage.Delete(newID))
	assert.Equal(t, 0, storage.Len())
}

func TestRunFilter(t *testing.T) {
	storage := NewMemStorage()
	id, err := GenConnectionID()
	require.NoError(t, err)
	state := NewState(testConfig())
	state.Touch(time.Now().UTC().Add(-time.Hour))
	require.NoError(t, storage.Set(id, state))

	done := RunFilter(storage, time.Minute, 10*time.Millisecond)
	defer close(done)
	assert.Eventually(t, func() bool {
		return storage.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestJSONMapGetInt(t *testing.T) {
	m := JSONMap{"a": float64(3), "b": 2.5, "c": "x", "d": 4}
	v, err := m.GetInt("a")
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	v, err = m.GetInt("d")
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	_, err = m.GetInt("b")
	assert.Error(t, err)
	_, err = m.GetInt("c")
	assert.Error(t, err)
	_, err = m.GetInt("missing")
	assert.Error(t, err)
}

func TestConnectionID(t *testing.T) {
	id, err := GenConnectionID()
	require.NoError(t, err)
	parsed, err := ParseConnectionID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}
