package screenshot

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"math/bits"

	"golang.org/x/image/draw"
)

// AverageHash computes a 64-bit perceptual hash: the image is scaled to
// 8x8 grayscale and each bit records whether a pixel is above the mean.
func AverageHash(data []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}

	small := image.NewGray(image.Rect(0, 0, 8, 8))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sum int
	for _, p := range small.Pix {
		sum += int(p)
	}
	mean := sum / len(small.Pix)

	var hash uint64
	for i, p := range small.Pix {
		if int(p) > mean {
			hash |= 1 << uint(i)
		}
	}
	return hash, nil
}

// Hamming returns the number of differing bits.
func Hamming(a, b uint64) int { return bits.OnesCount64(a ^ b) }

// Similar reports whether two hashes are within threshold bits. A negative
// threshold disables the check.
func Similar(a, b uint64, threshold int) bool {
	return threshold >= 0 && Hamming(a, b) <= threshold
}
