package watermark

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"
)

// ProcessImage watermarks a single still image and writes it to outputPath.
// The output format follows outputPath's extension. EXIF orientation is
// applied on decode, so the watermark lands in the corner as displayed.
func (p *Processor) ProcessImage(ctx context.Context, inputPath, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	img, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode image %s: %w", inputPath, err)
	}

	b := img.Bounds()
	face, err := p.faceFor(b.Dx(), b.Dy())
	if err != nil {
		return err
	}
	defer face.Close()

	marked := Apply(img, p.Options, face)

	err = writeAtomic(outputPath, func(tmp string) error {
		return SaveImage(marked, tmp, p.Options.JPEGQuality)
	})
	if err != nil {
		return fmt.Errorf("save image %s: %w", outputPath, err)
	}
	return nil
}

// SaveImage encodes img to path in the format implied by its extension.
// Formats without transparency get a flattened, opaque copy.
func SaveImage(img image.Image, path string, jpegQuality int) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return err
	}
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 95
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	switch format {
	case imaging.JPEG, imaging.BMP:
		err = imaging.Encode(out, Flatten(img, color.White), format, imaging.JPEGQuality(jpegQuality))
	default:
		err = imaging.Encode(out, img, format)
	}
	if err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
