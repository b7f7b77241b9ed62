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
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Mime types supported by Encode.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeGIF  = "image/gif"
	MimeBMP  = "image/bmp"
	MimeTIFF = "image/tiff"
	MimeWebP = "image/webp"
)

// MimeTypeFromExt returns the mime type for a file extension like ".jpg".
func MimeTypeFromExt(ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return MimeJPEG, nil
	case ".png":
		return MimePNG, nil
	case ".gif":
		return MimeGIF, nil
	case ".bmp":
		return MimeBMP, nil
	case ".tif", ".tiff":
		return MimeTIFF, nil
	case ".webp":
		return MimeWebP, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "no mime type for extension %q", ext)
	}
}

// Decode reads an encoded image (jpeg, png, gif, bmp, tiff or webp) and
// converts it to the given color space.
func Decode(r io.Reader, cs ColorSpace) (*Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "image decoding failed")
	}
	return FromStd(img, cs), nil
}

// Encode writes img in the format described by mimeType. quality is used for
// jpeg and webp and must be between 1 and 100.
func Encode(w io.Writer, img *Image, mimeType string, quality int) error {
	if err := img.Validate(); err != nil {
		return err
	}
	std := img.ToStd()
	var err error
	switch mimeType {
	case MimeJPEG:
		err = jpeg.Encode(w, std, &jpeg.Options{Quality: quality})
	case MimePNG:
		err = png.Encode(w, std)
	case MimeGIF:
		err = gif.Encode(w, std, &gif.Options{NumColors: 256})
	case MimeBMP:
		err = bmp.Encode(w, std)
	case MimeTIFF:
		err = tiff.Encode(w, std, &tiff.Options{Compression: tiff.Deflate})
	case MimeWebP:
		err = webp.Encode(w, std, &webp.Options{Quality: float32(quality)})
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "can't encode %q", mimeType)
	}
	return errors.Wrapf(err, "encoding %s failed", mimeType)
}

// ToStd converts the image to an image.Image without copying more than
// once: RGB becomes *image.RGBA (opaque), RGBA *image.NRGBA and Gray
// *image.Gray.
func (img *Image) ToStd() image.Image {
	rect := image.Rect(0, 0, img.Width, img.Height)
	switch img.ColorSpace {
	case Gray:
		res := image.NewGray(rect)
		copy(res.Pix, img.Pixels)
		return res
	case RGBA:
		res := image.NewNRGBA(rect)
		copy(res.Pix, img.Pixels)
		return res
	default:
		res := image.NewRGBA(rect)
		n := img.Width * img.Height
		for i := 0; i < n; i++ {
			res.Pix[i*4] = img.Pixels[i*3]
			res.Pix[i*4+1] = img.Pixels[i*3+1]
			res.Pix[i*4+2] = img.Pixels[i*3+2]
			res.Pix[i*4+3] = 0xff
		}
		return res
	}
}

// FromStd converts any image.Image to an Image in the given color space.
func FromStd(src image.Image, cs ColorSpace) *Image {
	bounds := src.Bounds()
	res := NewImage(bounds.Dx(), bounds.Dy(), cs)
	ch := cs.Channels()

	// fast path for the types produced by ToStd and nfnt/resize
	switch typed := src.(type) {
	case *image.Gray:
		if cs == Gray {
			for y := 0; y < res.Height; y++ {
				start := typed.PixOffset(bounds.Min.X, bounds.Min.Y+y)
				copy(res.Pixels[y*res.Stride():(y+1)*res.Stride()], typed.Pix[start:start+res.Width])
			}
			return res
		}
	case *image.NRGBA:
		if cs == RGBA {
			for y := 0; y < res.Height; y++ {
				start := typed.PixOffset(bounds.Min.X, bounds.Min.Y+y)
				copy(res.Pixels[y*res.Stride():(y+1)*res.Stride()], typed.Pix[start:start+res.Width*4])
			}
			return res
		}
	}

	for y := 0; y < res.Height; y++ {
		for x := 0; x < res.Width; x++ {
			c := src.At(bounds.Min.X+x, bounds.Min.Y+y)
			i := (y*res.Width + x) * ch
			switch cs {
			case Gray:
				res.Pixels[i] = color.GrayModel.Convert(c).(color.Gray).Y
			case RGBA:
				n := color.NRGBAModel.Convert(c).(color.NRGBA)
				res.Pixels[i], res.Pixels[i+1], res.Pixels[i+2], res.Pixels[i+3] = n.R, n.G, n.B, n.A
			default:
				n := color.NRGBAModel.Convert(c).(color.NRGBA)
				res.Pixels[i], res.Pixels[i+1], res.Pixels[i+2] = n.R, n.G, n.B
			}
		}
	}
	return res
}
