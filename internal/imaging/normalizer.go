package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
)

const (
	// MaxImageBytes is the provider upload ceiling.
	MaxImageBytes = 16 << 20

	// ratioTolerance is the relative aspect-ratio distance below which the
	// source is resized without cropping.
	ratioTolerance = 0.01

	jpegQuality = 90
)

var (
	// ErrUnreadableImage is returned when dimensions cannot be decoded.
	ErrUnreadableImage = errors.New("imaging: unreadable image")
	// ErrImageTooLarge is returned when the source or the processed buffer
	// exceeds MaxImageBytes.
	ErrImageTooLarge = errors.New("imaging: image exceeds size limit")
)

// Ratio is one of the provider-supported output shapes.
type Ratio struct {
	Name   string
	Width  int
	Height int
}

// Value returns width/height as a float.
func (r Ratio) Value() float64 {
	return float64(r.Width) / float64(r.Height)
}

// String renders the ratio in provider wire format, e.g. "1280:720".
func (r Ratio) String() string {
	return fmt.Sprintf("%d:%d", r.Width, r.Height)
}

// SupportedRatios lists the output shapes in priority order. Ties in ratio
// distance resolve to the earlier entry.
var SupportedRatios = []Ratio{
	{Name: "landscape_hd", Width: 1280, Height: 720},
	{Name: "wide_cinematic", Width: 1584, Height: 672},
	{Name: "landscape_classic", Width: 1104, Height: 832},
	{Name: "portrait_hd", Width: 720, Height: 1280},
	{Name: "portrait_tall", Width: 832, Height: 1104},
	{Name: "square", Width: 960, Height: 960},
}

// Result is the outcome of normalising a source image.
type Result struct {
	Data    []byte
	Ratio   Ratio
	Cropped bool
	Width   int
	Height  int
}

// ClosestRatio picks the supported ratio minimising |actual - target|.
func ClosestRatio(aspect float64) Ratio {
	best := SupportedRatios[0]
	bestDist := math.Abs(aspect - best.Value())
	for _, candidate := range SupportedRatios[1:] {
		dist := math.Abs(aspect - candidate.Value())
		if dist < bestDist {
			best = candidate
			bestDist = dist
		}
	}
	return best
}

// Normalize decodes the source image, selects the closest supported ratio and
// produces a JPEG at that ratio's exact dimensions. Sources within 1% of the
// target ratio are resized without cropping; everything else is center-cropped
// to the target ratio first. The transform is pure: no I/O, no shared state.
func Normalize(data []byte) (*Result, error) {
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: source is %d bytes", ErrImageTooLarge, len(data))
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty dimensions %dx%d", ErrUnreadableImage, width, height)
	}

	aspect := float64(width) / float64(height)
	target := ClosestRatio(aspect)

	cropped := false
	region := bounds
	if relativeDistance(aspect, target.Value()) > ratioTolerance {
		region = centerCrop(bounds, target.Value())
		cropped = true
	}

	out := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	draw.CatmullRom.Scale(out, out.Bounds(), src, region, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	if buf.Len() > MaxImageBytes {
		return nil, fmt.Errorf("%w: output is %d bytes", ErrImageTooLarge, buf.Len())
	}

	return &Result{
		Data:    buf.Bytes(),
		Ratio:   target,
		Cropped: cropped,
		Width:   target.Width,
		Height:  target.Height,
	}, nil
}

func relativeDistance(actual, target float64) float64 {
	if target == 0 {
		return math.Inf(1)
	}
	return math.Abs(actual-target) / target
}

// centerCrop returns the largest centered sub-rectangle of bounds matching the
// target aspect ratio.
func centerCrop(bounds image.Rectangle, targetAspect float64) image.Rectangle {
	width := float64(bounds.Dx())
	height := float64(bounds.Dy())
	aspect := width / height

	cropW, cropH := width, height
	if aspect > targetAspect {
		cropW = height * targetAspect
	} else {
		cropH = width / targetAspect
	}

	x0 := bounds.Min.X + int((width-cropW)/2)
	y0 := bounds.Min.Y + int((height-cropH)/2)
	return image.Rect(x0, y0, x0+int(cropW), y0+int(cropH))
}
