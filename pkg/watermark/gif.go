package watermark

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"sort"
)

// ProcessAnimatedImage watermarks every frame of an animated GIF, keeping
// frame order, per-frame delays and the loop count.
func (p *Processor) ProcessAnimatedImage(ctx context.Context, inputPath, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := decodeGIF(inputPath)
	if err != nil {
		return err
	}
	if len(src.Image) == 0 {
		return fmt.Errorf("decode animated image %s: %w", inputPath, ErrNoFrames)
	}

	frames := composeFrames(src)
	bounds := frames[0].Bounds()

	// Frames share the canvas size, so one face serves the whole animation.
	face, err := p.faceFor(bounds.Dx(), bounds.Dy())
	if err != nil {
		return err
	}
	defer face.Close()

	loop := src.LoopCount
	if loop < 0 {
		loop = 0
	}
	out := &gif.GIF{
		LoopCount: loop,
		Config: image.Config{
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
		},
	}
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		marked := Apply(frame, p.Options, face)
		out.Image = append(out.Image, toPaletted(marked, p.Options.textColor(), p.Options.plateColor()))
		out.Delay = append(out.Delay, delayAt(src, i))
		out.Disposal = append(out.Disposal, gif.DisposalBackground)
	}
	p.logger().Debug("watermarked animated image", "input", inputPath, "frames", len(out.Image))

	err = writeAtomic(outputPath, func(tmp string) error {
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		if err := gif.EncodeAll(f, out); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
	if err != nil {
		return fmt.Errorf("save animated image %s: %w", outputPath, err)
	}
	return nil
}

func decodeGIF(path string) (*gif.GIF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open animated image %s: %w", path, err)
	}
	defer f.Close()
	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, fmt.Errorf("decode animated image %s: %w", path, err)
	}
	return g, nil
}

func delayAt(g *gif.GIF, i int) int {
	if i < len(g.Delay) {
		return g.Delay[i]
	}
	return 0
}

// composeFrames renders each GIF frame onto the logical screen, honouring
// disposal, so every returned frame is a full canvas.
func composeFrames(g *gif.GIF) []*image.NRGBA {
	w, h := g.Config.Width, g.Config.Height
	if w <= 0 || h <= 0 {
		var union image.Rectangle
		for _, fr := range g.Image {
			union = union.Union(fr.Bounds())
		}
		w, h = union.Max.X, union.Max.Y
	}
	bounds := image.Rect(0, 0, w, h)
	canvas := image.NewNRGBA(bounds)

	frames := make([]*image.NRGBA, 0, len(g.Image))
	for i, fr := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var previous *image.NRGBA
		if disposal == gif.DisposalPrevious {
			previous = cloneNRGBA(canvas)
		}

		draw.Draw(canvas, fr.Bounds(), fr, fr.Bounds().Min, draw.Over)
		frames = append(frames, cloneNRGBA(canvas))

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, fr.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}
	return frames
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

// gifColor folds an NRGBA pixel onto what a GIF can hold: alpha below half
// becomes the transparent colour, anything else is made opaque.
func gifColor(c color.NRGBA) color.NRGBA {
	if c.A < 0x80 {
		return color.NRGBA{}
	}
	c.A = 0xff
	return c
}

// framePalette picks at most 256 colours for img. When the frame has no more
// distinct colours than that they are all kept, so source colours and the
// text colour survive exactly. Otherwise the most frequent colours win, with
// the keep colours and transparency always included when the frame uses them.
func framePalette(img *image.NRGBA, keep ...color.NRGBA) color.Palette {
	counts := make(map[color.NRGBA]int)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			counts[gifColor(img.NRGBAAt(x, y))]++
		}
	}

	colors := make([]color.NRGBA, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	pinned := map[color.NRGBA]bool{{}: true}
	for _, c := range keep {
		pinned[gifColor(c)] = true
	}
	sort.Slice(colors, func(i, j int) bool {
		pi, pj := pinned[colors[i]], pinned[colors[j]]
		if pi != pj {
			return pi
		}
		if counts[colors[i]] != counts[colors[j]] {
			return counts[colors[i]] > counts[colors[j]]
		}
		return packNRGBA(colors[i]) < packNRGBA(colors[j])
	})
	if len(colors) > 256 {
		colors = colors[:256]
	}

	pal := make(color.Palette, len(colors))
	for i, c := range colors {
		pal[i] = c
	}
	return pal
}

func packNRGBA(c color.NRGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}

// toPaletted maps img onto its own frame palette. Colours that did not make
// the palette take their nearest entry.
func toPaletted(img *image.NRGBA, keep ...color.NRGBA) *image.Paletted {
	b := img.Bounds()
	pal := framePalette(img, keep...)
	pm := image.NewPaletted(b, pal)

	index := make(map[color.NRGBA]uint8, len(pal))
	for i, c := range pal {
		index[c.(color.NRGBA)] = uint8(i)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := gifColor(img.NRGBAAt(x, y))
			idx, ok := index[c]
			if !ok {
				idx = uint8(pal.Index(c))
				index[c] = idx
			}
			pm.SetColorIndex(x, y, idx)
		}
	}
	return pm
}
