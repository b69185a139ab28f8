package watermark

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// MinFontSize is the floor applied to ratio-derived font sizes.
const MinFontSize = 10

// Font is a parsed typeface. It is read-only and may be shared between jobs;
// the faces it hands out are not safe for concurrent use.
type Font struct {
	name string
	otf  *opentype.Font
}

// Name is the font path, or "goregular" for the built-in face.
func (f *Font) Name() string { return f.name }

// Face returns a new face at the given pixel size. Callers close it.
func (f *Font) Face(size int) (font.Face, error) {
	return opentype.NewFace(f.otf, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// LoadFont parses the font at path. An empty path, or one that cannot be
// read or parsed, yields the built-in Go Regular font; the failure is logged.
func LoadFont(path string, logger *slog.Logger) (*Font, error) {
	logger = orDiscard(logger)
	if strings.TrimSpace(path) != "" {
		f, err := parseFontFile(path)
		if err == nil {
			return f, nil
		}
		logger.Error("failed to load font, falling back to Go Regular", "font", path, "error", err)
	}
	otf, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return &Font{name: "goregular", otf: otf}, nil
}

func parseFontFile(path string) (*Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("font file is empty")
	}
	otf, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	return &Font{name: path, otf: otf}, nil
}

// FontSize derives the absolute font size for a frame:
// max(10, floor(min(width, height) * ratio)).
func FontSize(width, height int, ratio float64) int {
	size := int(math.Floor(float64(min(width, height)) * ratio))
	return max(MinFontSize, size)
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}
