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
	"fmt"
	"math"
	"strings"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// SupportedImageFunc is a function that takes a file extension and decides if
// this file extension is supported.
//
// The extension passed to this function could be for example ".txt" or ".jpg".
type SupportedImageFunc func(ext string) bool

// JPGAndPNG is an implementation of SupportedImageFunc accepting jpg and png
// file extensions.
func JPGAndPNG(ext string) bool {
	ext = strings.ToLower(ext)
	switch ext {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

// AllDecodable accepts every extension the codec in this package can decode.
func AllDecodable(ext string) bool {
	_, err := MimeTypeFromExt(ext)
	return err == nil
}

// ColorSpace is the pixel layout of an Image.
type ColorSpace int

const (
	// RGB stores three bytes per pixel: red, green, blue.
	RGB ColorSpace = iota
	// RGBA stores four bytes per pixel, alpha is not premultiplied.
	RGBA
	// Gray stores one byte per pixel.
	Gray
)

// Channels returns the number of bytes per pixel.
func (cs ColorSpace) Channels() int {
	switch cs {
	case RGBA:
		return 4
	case Gray:
		return 1
	default:
		return 3
	}
}

func (cs ColorSpace) String() string {
	switch cs {
	case RGB:
		return "rgb"
	case RGBA:
		return "rgba"
	case Gray:
		return "gray"
	default:
		return fmt.Sprintf("ColorSpace(%d)", cs)
	}
}

// ParseColorSpace parses the names returned by ColorSpace.String.
func ParseColorSpace(s string) (ColorSpace, error) {
	switch strings.ToLower(s) {
	case "rgb":
		return RGB, nil
	case "rgba":
		return RGBA, nil
	case "gray", "grey":
		return Gray, nil
	default:
		return RGB, fmt.Errorf("unknown color space: %s", s)
	}
}

// Image is a decoded image: Width * Height pixels stored row by row, each
// pixel ColorSpace.Channels() bytes wide.
//
// Images are never modified once created, all transformations return a new
// image.
type Image struct {
	Width, Height int
	ColorSpace    ColorSpace
	Pixels        []byte
}

// NewImage returns a black image of the given size.
func NewImage(width, height int, cs ColorSpace) *Image {
	return &Image{
		Width:      width,
		Height:     height,
		ColorSpace: cs,
		Pixels:     make([]byte, width*height*cs.Channels()),
	}
}

// Channels returns the number of bytes per pixel.
func (img *Image) Channels() int {
	return img.ColorSpace.Channels()
}

// Stride returns the number of bytes in one row.
func (img *Image) Stride() int {
	return img.Width * img.Channels()
}

// Validate checks that the pixel buffer matches width, height and the color
// space.
func (img *Image) Validate() error {
	if img == nil {
		return errors.Wrap(ErrInvalidImage, "image is nil")
	}
	if img.Width < 0 || img.Height < 0 {
		return errors.Wrapf(ErrInvalidImage, "negative dimensions %dx%d", img.Width, img.Height)
	}
	if expected := img.Width * img.Height * img.Channels(); len(img.Pixels) != expected {
		return errors.Wrapf(ErrInvalidImage, "expected %d bytes for %dx%d %s, got %d",
			expected, img.Width, img.Height, img.ColorSpace, len(img.Pixels))
	}
	return nil
}

// Clone returns a deep copy of the image.
func (img *Image) Clone() *Image {
	pixels := make([]byte, len(img.Pixels))
	copy(pixels, img.Pixels)
	return &Image{Width: img.Width, Height: img.Height, ColorSpace: img.ColorSpace, Pixels: pixels}
}

// ResizeOptions describe the result of a resize operation. Either Scale is
// > 0 or Width and Height are both > 0.
type ResizeOptions struct {
	Width, Height int
	Scale         float64
	// AllowUpscale permits results larger than the input.
	AllowUpscale bool
	// Fit keeps the aspect ratio and fits the result inside Width x Height.
	// If false the image is stretched to exactly Width x Height.
	Fit bool
}

// Dimensions computes the size of the resized image for an input of size
// width x height. Both values of the result are at least 1.
func (opts ResizeOptions) Dimensions(width, height int) (int, int, error) {
	var w, h float64
	switch {
	case opts.Scale > 0:
		w, h = float64(width)*opts.Scale, float64(height)*opts.Scale
	case opts.Width > 0 && opts.Height > 0:
		w, h = float64(opts.Width), float64(opts.Height)
		if opts.Fit {
			s := math.Min(w/float64(width), h/float64(height))
			w, h = float64(width)*s, float64(height)*s
		}
	default:
		return -1, -1, fmt.Errorf("resize requires a scale or width and height, got %+v", opts)
	}
	if !opts.AllowUpscale {
		w = math.Min(w, float64(width))
		h = math.Min(h, float64(height))
	}
	return atLeastOne(math.Round(w)), atLeastOne(math.Round(h)), nil
}

func atLeastOne(v float64) int {
	if v < 1 {
		return 1
	}
	return int(v)
}

// Resizer scales images, it is the resampling part of the image I/O
// collaborator. Implementations must be safe for concurrent use.
type Resizer interface {
	Resize(img *Image, opts ResizeOptions) (*Image, error)
}

// NfntResizer uses the nfnt/resize package to resize an image.
type NfntResizer struct {
	// InterP is the interpolation function to use.
	InterP resize.InterpolationFunction
}

// NewNfntResizer returns a new resizer given the interpolation function.
func NewNfntResizer(interP resize.InterpolationFunction) NfntResizer {
	return NfntResizer{interP}
}

var (
	// DefaultResizer is the resizer that is used by default, if you're
	// looking for a resizer default argument this seems useful.
	DefaultResizer = NewNfntResizer(resize.Bilinear)
)

// Resize calls nfnt/resize methods. If the requested size equals the size of
// img an unmodified copy is returned.
func (resizer NfntResizer) Resize(img *Image, opts ResizeOptions) (*Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	width, height, dimErr := opts.Dimensions(img.Width, img.Height)
	if dimErr != nil {
		return nil, dimErr
	}
	if width == img.Width && height == img.Height {
		return img.Clone(), nil
	}
	scaled := resize.Resize(uint(width), uint(height), img.ToStd(), resizer.InterP)
	return FromStd(scaled, img.ColorSpace), nil
}

// GetInterP returns an interpolation function given a desired quality.
// The higher the quality the better the interpolation should be, but execution
// time is higher. Currently supported are values between 0 and 4, each
// selecting a different interpolation function. Values greater than 4 are
// treated as 4.
func GetInterP(quality uint) resize.InterpolationFunction {
	switch quality {
	case 0:
		return resize.NearestNeighbor
	case 1:
		return resize.Bilinear
	case 2:
		return resize.Bicubic
	case 3:
		return resize.MitchellNetravali
	case 4:
		return resize.Lanczos2
	default:
		return resize.Lanczos3
	}
}

// InterPFromString parses the names returned by InterPString.
func InterPFromString(s string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(s) {
	case "nearest", "nearest-neighbor":
		return resize.NearestNeighbor, nil
	case "bilinear":
		return resize.Bilinear, nil
	case "bicubic":
		return resize.Bicubic, nil
	case "mitchell", "mitchell-netravali":
		return resize.MitchellNetravali, nil
	case "lanczos2":
		return resize.Lanczos2, nil
	case "lanczos3":
		return resize.Lanczos3, nil
	default:
		return resize.Bilinear, fmt.Errorf("unknown interpolation function: %s", s)
	}
}

// InterPString returns a name for the interpolation function.
func InterPString(interP resize.InterpolationFunction) string {
	switch interP {
	case resize.NearestNeighbor:
		return "nearest"
	case resize.Bilinear:
		return "bilinear"
	case resize.Bicubic:
		return "bicubic"
	case resize.MitchellNetravali:
		return "mitchell"
	case resize.Lanczos2:
		return "lanczos2"
	case resize.Lanczos3:
		return "lanczos3"
	default:
		return fmt.Sprintf("InterpolationFunction(%d)", interP)
	}
}

// ImageID is used to unambiguously identify an image.
type ImageID int

// ImageStorage is a collection of source images. Images are identified by
// an id and loaded into memory when required; all ids < NumImages are valid.
//
// Implementations must be safe for concurrent use.
type ImageStorage interface {
	// NumImages returns the number of images in the storage as an ImageID.
	NumImages() ImageID

	// LoadImage loads an image into memory.
	LoadImage(id ImageID) (*Image, error)

	// Name returns a human readable name for the image, used in logs and
	// errors.
	Name(id ImageID) string
}

// IDList returns the list [0, 1, ..., storage.NumImages - 1].
func IDList(storage ImageStorage) []ImageID {
	numImages := storage.NumImages()
	res := make([]ImageID, numImages)
	var i ImageID
	for ; i < numImages; i++ {
		res[i] = i
	}
	return res
}

// MemoryStorage is an ImageStorage holding already decoded images.
// Add must not be called concurrently with other methods.
type MemoryStorage struct {
	images []*Image
	names  []string
}

// NewMemoryStorage returns an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Add appends an image and returns its id.
func (s *MemoryStorage) Add(name string, img *Image) ImageID {
	s.images = append(s.images, img)
	s.names = append(s.names, name)
	return ImageID(len(s.images) - 1)
}

func (s *MemoryStorage) NumImages() ImageID {
	return ImageID(len(s.images))
}

func (s *MemoryStorage) LoadImage(id ImageID) (*Image, error) {
	if id < 0 || id >= s.NumImages() {
		return nil, fmt.Errorf("invalid image id: not associated with an image %d", id)
	}
	return s.images[id], nil
}

func (s *MemoryStorage) Name(id ImageID) string {
	if id < 0 || id >= s.NumImages() {
		return fmt.Sprintf("image-%d", id)
	}
	return s.names[id]
}
