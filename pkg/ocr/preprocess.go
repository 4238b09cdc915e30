package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sort"
)

// preprocessImage applies a grayscale conversion and a 3x3 median denoise to
// a PNG page image. Scanned legal filings often carry speckle noise from
// toner and fax transmission that degrades recognition of small print.
func preprocessImage(input []byte) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}

	gray := toGray(src)
	denoised := medianFilter(gray)

	var buf bytes.Buffer
	if err := png.Encode(&buf, denoised); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toGray(src image.Image) *image.Gray {
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			lum := (299*r + 587*g + 114*b) / 1000
			gray.SetGray(x, y, color.Gray{Y: uint8(lum >> 8)})
		}
	}
	return gray
}

func medianFilter(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(bounds)
	window := make([]uint8, 0, 9)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < bounds.Min.X || nx >= bounds.Max.X || ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					window = append(window, src.GrayAt(nx, ny).Y)
				}
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			dst.SetGray(x, y, color.Gray{Y: window[len(window)/2]})
		}
	}
	return dst
}
