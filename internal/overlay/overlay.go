// Package overlay composites pre-approved copy onto generated imagery. This
// is the compliance boundary: the text drawn here comes exclusively from the
// caller, never from an image model, and rendering is a pure function of
// (image, copy) so the same inputs produce the same artifact everywhere.
// Fonts are embedded (Go fonts) to keep output independent of host fonts.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // provider payloads may be JPEG
	"image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Renderer draws headline and call-to-action overlays.
type Renderer struct {
	headlineFont *truetype.Font
	bodyFont     *truetype.Font
}

// NewRenderer parses the embedded fonts once.
func NewRenderer() (*Renderer, error) {
	hf, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("overlay: parse headline font: %w", err)
	}
	bf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("overlay: parse body font: %w", err)
	}
	return &Renderer{headlineFont: hf, bodyFont: bf}, nil
}

// Compose draws a legibility gradient over the lower third of img, then the
// headline and a call-to-action pill. Font sizes scale with image width so
// the same copy stays proportionate across aspect ratios.
func (r *Renderer) Compose(img image.Image, headline, cta string) (image.Image, error) {
	if headline == "" {
		return nil, fmt.Errorf("overlay: empty headline")
	}
	b := img.Bounds()
	w := float64(b.Dx())
	h := float64(b.Dy())

	dc := gg.NewContextForImage(img)
	drawGradient(dc, w, h)

	// Headline, wrapped within 88% of the width.
	headlineSize := clamp(w*0.055, 28, 96)
	dc.SetFontFace(truetype.NewFace(r.headlineFont, &truetype.Options{Size: headlineSize}))
	dc.SetRGB(1, 1, 1)
	textWidth := w * 0.88
	headlineY := h * 0.80
	dc.DrawStringWrapped(headline, w/2, headlineY, 0.5, 1, textWidth, 1.25, gg.AlignCenter)

	if cta != "" {
		if err := r.drawCTA(dc, cta, w, h); err != nil {
			return nil, err
		}
	}

	return dc.Image(), nil
}

// GradientOnly is the degraded overlay used when text layout fails: the
// legibility gradient without any text. An image without overlay is an
// acceptable result; unreviewed text is not.
func (r *Renderer) GradientOnly(img image.Image) image.Image {
	b := img.Bounds()
	dc := gg.NewContextForImage(img)
	drawGradient(dc, float64(b.Dx()), float64(b.Dy()))
	return dc.Image()
}

func (r *Renderer) drawCTA(dc *gg.Context, cta string, w, h float64) error {
	ctaSize := clamp(w*0.032, 18, 52)
	dc.SetFontFace(truetype.NewFace(r.bodyFont, &truetype.Options{Size: ctaSize}))

	tw, th := dc.MeasureString(cta)
	padX := ctaSize * 1.2
	padY := ctaSize * 0.6
	pillW := tw + 2*padX
	pillH := th + 2*padY
	pillX := (w - pillW) / 2
	pillY := h*0.86 - pillH/2

	dc.SetRGB(0.93, 0.42, 0.10) // standing brand accent
	dc.DrawRoundedRectangle(pillX, pillY, pillW, pillH, pillH/2)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(cta, w/2, pillY+pillH/2, 0.5, 0.35)
	return nil
}

func drawGradient(dc *gg.Context, w, h float64) {
	grad := gg.NewLinearGradient(0, h*0.55, 0, h)
	grad.AddColorStop(0, colorRGBA(0, 0, 0, 0))
	grad.AddColorStop(1, colorRGBA(0, 0, 0, 0.85))
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, h*0.55, w, h*0.45)
	dc.Fill()
}

func colorRGBA(r, g, b, a float64) color.Color {
	return color.NRGBA{
		R: uint8(r * 255),
		G: uint8(g * 255),
		B: uint8(b * 255),
		A: uint8(a * 255),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EncodePNG serializes an image for persistence.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("overlay: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage parses PNG or JPEG bytes from an image provider.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("overlay: decode image: %w", err)
	}
	return img, nil
}
