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

package mos

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMimeTypeFromExt(t *testing.T) {
	tests := map[string]string{
		".jpg":  MimeJPEG,
		".JPEG": MimeJPEG,
		".png":  MimePNG,
		".gif":  MimeGIF,
		".bmp":  MimeBMP,
		".tif":  MimeTIFF,
		".tiff": MimeTIFF,
		".webp": MimeWebP,
	}
	for ext, expected := range tests {
		mime, err := MimeTypeFromExt(ext)
		require.NoError(t, err, ext)
		assert.Equal(t, expected, mime, ext)
	}

	_, err := MimeTypeFromExt(".txt")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.False(t, AllDecodable(".txt"))
	assert.True(t, AllDecodable(".WebP"))
}

func TestEncodeDecodeLossless(t *testing.T) {
	for _, mime := range []string{MimePNG, MimeBMP, MimeTIFF} {
		for _, cs := range []ColorSpace{RGB, Gray} {
			t.Run(mime+"/"+cs.String(), func(t *testing.T) {
				img := patternImage(17, 9, cs)
				var buf bytes.Buffer
				require.NoError(t, Encode(&buf, img, mime, 90))
				decoded, err := Decode(&buf, cs)
				require.NoError(t, err)
				assert.Equal(t, img, decoded)
			})
		}
	}
}

func TestEncodeDecodePNGAlpha(t *testing.T) {
	img := solidImage(8, 8, RGBA, 10, 20, 30, 128)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, MimePNG, 0))
	decoded, err := Decode(&buf, RGBA)
	require.NoError(t, err)
	assert.Equal(t, img, decoded)
}

func TestEncodeDecodeLossy(t *testing.T) {
	for _, mime := range []string{MimeJPEG, MimeGIF, MimeWebP} {
		t.Run(mime, func(t *testing.T) {
			img := patternImage(32, 24, RGB)
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, img, mime, 80))
			decoded, err := Decode(&buf, RGB)
			require.NoError(t, err)
			assert.Equal(t, 32, decoded.Width)
			assert.Equal(t, 24, decoded.Height)
			assert.NoError(t, decoded.Validate())
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, NewImage(2, 2, RGB), "image/x-unknown", 90)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	err = Encode(&buf, &Image{Width: 2, Height: 2}, MimePNG, 90)
	assert.True(t, errors.Is(err, ErrInvalidImage))

	_, err = Decode(bytes.NewReader([]byte("not an image")), RGB)
	assert.Error(t, err)
}

func TestColorSpaceConversion(t *testing.T) {
	rgb := solidImage(2, 2, RGB, 200, 100, 50)
	gray := FromStd(rgb.ToStd(), Gray)
	require.Equal(t, Gray, gray.ColorSpace)
	require.Len(t, gray.Pixels, 4)

	rgba := FromStd(rgb.ToStd(), RGBA)
	assert.Equal(t, solidImage(2, 2, RGBA, 200, 100, 50, 255), rgba)
	assert.Equal(t, rgb, FromStd(rgba.ToStd(), RGB))
}
