package imaging

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/tiff"
)

// loadGray decodes the image at path and converts it to 8-bit grayscale.
func loadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return toGray(src), nil
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	return dst
}

// equalizeHistogram spreads the gray levels across the full range.
func equalizeHistogram(img *image.Gray) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	total := w * h
	if total == 0 {
		return img
	}

	var hist [256]int
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for _, v := range row {
			hist[v]++
		}
	}

	var cdf [256]int
	sum := 0
	for i, n := range hist {
		sum += n
		cdf[i] = sum
	}
	cdfMin := 0
	for _, n := range cdf {
		if n > 0 {
			cdfMin = n
			break
		}
	}
	denom := total - cdfMin
	if denom <= 0 {
		// single gray level, nothing to spread
		return img
	}

	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(math.Round(float64(cdf[i]-cdfMin) / float64(denom) * 255))
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x, v := range src {
			dst[x] = lut[v]
		}
	}
	return out
}

// medianFilter replaces each pixel with the median of its square window.
func medianFilter(img *image.Gray, radius int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var hist [256]int
			count := 0
			for dy := -radius; dy <= radius; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -radius; dx <= radius; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					hist[img.Pix[yy*img.Stride+xx]]++
					count++
				}
			}
			mid := count / 2
			acc := 0
			for v := 0; v < 256; v++ {
				acc += hist[v]
				if acc > mid {
					out.Pix[y*out.Stride+x] = uint8(v)
					break
				}
			}
		}
	}
	return out
}

// unsharpMask sharpens by adding back the difference between the image and a
// gaussian blur of itself.
func unsharpMask(img *image.Gray) *image.Gray {
	const amount = 1.0

	blurred := gaussianBlur5(img)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			orig := float64(img.Pix[y*img.Stride+x])
			blur := float64(blurred.Pix[y*blurred.Stride+x])
			out.Pix[y*out.Stride+x] = clampByte(orig + amount*(orig-blur))
		}
	}
	return out
}

// gaussianBlur5 applies a separable 5-tap binomial blur.
func gaussianBlur5(img *image.Gray) *image.Gray {
	kernel := [5]int{1, 4, 6, 4, 1}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	tmp := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum, norm := 0, 0
			for k := -2; k <= 2; k++ {
				xx := x + k
				if xx < 0 || xx >= w {
					continue
				}
				wt := kernel[k+2]
				sum += wt * int(img.Pix[y*img.Stride+xx])
				norm += wt
			}
			tmp.Pix[y*tmp.Stride+x] = uint8(sum / norm)
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum, norm := 0, 0
			for k := -2; k <= 2; k++ {
				yy := y + k
				if yy < 0 || yy >= h {
					continue
				}
				wt := kernel[k+2]
				sum += wt * int(tmp.Pix[yy*tmp.Stride+x])
				norm += wt
			}
			out.Pix[y*out.Stride+x] = uint8(sum / norm)
		}
	}
	return out
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// upscale enlarges img by factor, clamping so the longest edge stays at most
// maxDim. Returns the original image unchanged when no enlargement is
// possible; the bool reports whether the factor was capped.
func upscale(img *image.Gray, factor float64, maxDim int) (*image.Gray, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest == 0 {
		return img, false
	}

	capped := false
	if float64(longest)*factor > float64(maxDim) {
		factor = float64(maxDim) / float64(longest)
		capped = true
	}
	if factor <= 1.0 {
		return img, capped
	}

	dw := int(float64(w) * factor)
	dh := int(float64(h) * factor)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewGray(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst, capped
}

// estimateSkew searches a few degrees either side of level for the angle that
// best aligns dark pixels into rows, using a projection profile. The bool is
// false when no angle clearly beats the unrotated baseline.
func estimateSkew(img *image.Gray) (float64, bool) {
	const (
		maxAngle  = 5.0
		angleStep = 0.25
		minMargin = 1.1
	)

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 16 || h < 16 {
		return 0, false
	}

	var sum uint64
	for y := 0; y < h; y++ {
		for _, v := range img.Pix[y*img.Stride : y*img.Stride+w] {
			sum += uint64(v)
		}
	}
	mean := float64(sum) / float64(w*h)
	thresh := uint8(mean * 0.75)

	// subsample so large photos stay cheap
	stepX, stepY := 1, 1
	if w > 400 {
		stepX = w / 400
	}
	if h > 400 {
		stepY = h / 400
	}

	type point struct{ x, y int }
	var dark []point
	for y := 0; y < h; y += stepY {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x := 0; x < w; x += stepX {
			if row[x] < thresh {
				dark = append(dark, point{x, y})
			}
		}
	}
	if len(dark) < 64 {
		return 0, false
	}

	tanMax := math.Tan(maxAngle * math.Pi / 180)
	offset := int(float64(w)*tanMax) + 1
	bins := make([]int, h+2*offset)

	scoreAt := func(angle float64) float64 {
		t := math.Tan(angle * math.Pi / 180)
		for i := range bins {
			bins[i] = 0
		}
		for _, p := range dark {
			yy := p.y - int(float64(p.x)*t) + offset
			if yy >= 0 && yy < len(bins) {
				bins[yy]++
			}
		}
		var s float64
		for _, n := range bins {
			s += float64(n) * float64(n)
		}
		return s
	}

	baseline := scoreAt(0)
	best, bestScore := 0.0, baseline
	for a := -maxAngle; a <= maxAngle+1e-9; a += angleStep {
		if math.Abs(a) < angleStep/2 {
			continue
		}
		if s := scoreAt(a); s > bestScore {
			best, bestScore = a, s
		}
	}

	if best == 0 || bestScore < baseline*minMargin {
		return 0, false
	}
	return best, true
}

// rotate returns img rotated by deg degrees around its center. Regions
// outside the source stay paper-white.
func rotate(img *image.Gray, deg float64) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for i := range dst.Pix {
		dst.Pix[i] = 0xff
	}

	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	cx, cy := float64(w)/2, float64(h)/2
	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	xdraw.BiLinear.Transform(dst, m, img, img.Bounds(), xdraw.Over, nil)
	return dst
}
