package watermark

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const (
	// EdgeMargin is the gap between a named anchor's edges and the text.
	EdgeMargin = 10
	// PlatePadding is how far the background plate extends past the text box.
	PlatePadding = 5
)

// TextBox is the tight ink box of a rendered string.
type TextBox struct {
	Width, Height int
	// Bearing is the ink box's top-left corner relative to the drawing dot.
	Bearing image.Point
}

// Measure returns the pixel box text occupies when drawn with face.
func Measure(face font.Face, text string) TextBox {
	bounds, _ := font.BoundString(face, text)
	minX, minY := bounds.Min.X.Floor(), bounds.Min.Y.Floor()
	maxX, maxY := bounds.Max.X.Ceil(), bounds.Max.Y.Ceil()
	if maxX <= minX || maxY <= minY {
		return TextBox{}
	}
	return TextBox{
		Width:   maxX - minX,
		Height:  maxY - minY,
		Bearing: image.Pt(minX, minY),
	}
}

// Place resolves the top-left corner of the text box inside a frame of the
// given size. Explicit coordinates are returned unchanged.
func Place(pos Position, width, height int, box TextBox) image.Point {
	switch pos.Anchor {
	case TopLeft:
		return image.Pt(EdgeMargin, EdgeMargin)
	case TopRight:
		return image.Pt(width-box.Width-EdgeMargin, EdgeMargin)
	case BottomLeft:
		return image.Pt(EdgeMargin, height-box.Height-EdgeMargin)
	case BottomRight:
		return image.Pt(width-box.Width-EdgeMargin, height-box.Height-EdgeMargin)
	}
	return image.Pt(pos.X, pos.Y)
}

// PlateRect is the background plate for a text box drawn at p.
func PlateRect(p image.Point, box TextBox) image.Rectangle {
	return image.Rect(
		p.X-PlatePadding,
		p.Y-PlatePadding,
		p.X+box.Width+PlatePadding,
		p.Y+box.Height+PlatePadding,
	)
}

// Apply composites the watermark described by opts onto a copy of frame and
// returns it. frame is never modified and the result always has frame's
// dimensions, anchored at the origin. Text or plate falling outside the frame
// is clipped.
func Apply(frame image.Image, opts Options, face font.Face) *image.NRGBA {
	base := imaging.Clone(frame)
	w, h := base.Bounds().Dx(), base.Bounds().Dy()

	box := Measure(face, opts.Text)
	at := Place(opts.Position, w, h, box)

	overlay := image.NewNRGBA(base.Bounds())
	draw.Draw(overlay, PlateRect(at, box), image.NewUniform(opts.plateColor()), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  overlay,
		Src:  image.NewUniform(opts.textColor()),
		Face: face,
		Dot:  fixed.P(at.X-box.Bearing.X, at.Y-box.Bearing.Y),
	}
	d.DrawString(opts.Text)

	draw.Draw(base, base.Bounds(), overlay, image.Point{}, draw.Over)
	return base
}

// Flatten drops alpha by compositing img over an opaque background.
func Flatten(img image.Image, bg color.Color) *image.RGBA {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, &image.Uniform{C: bg}, image.Point{}, draw.Src)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Over)
	return rgba
}
