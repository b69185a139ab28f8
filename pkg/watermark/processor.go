package watermark

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/image/font"
)

// ErrNoFrames is returned when a source decodes to zero frames.
var ErrNoFrames = errors.New("no frames in source")

// VideoSettings configures the ffmpeg/ffprobe tools used for video jobs.
type VideoSettings struct {
	FFmpeg     string
	FFprobe    string
	VideoCodec string
	AudioCodec string
	CRF        int
}

// DefaultVideoSettings uses ffmpeg/ffprobe from PATH with H.264 + AAC.
func DefaultVideoSettings() VideoSettings {
	return VideoSettings{
		FFmpeg:     "ffmpeg",
		FFprobe:    "ffprobe",
		VideoCodec: "libx264",
		AudioCodec: "aac",
		CRF:        23,
	}
}

// Processor watermarks whole media files. It holds no per-job state, so one
// Processor may serve concurrent jobs.
type Processor struct {
	Options Options
	Font    *Font
	Video   VideoSettings
	Logger  *slog.Logger
}

// NewProcessor returns a Processor with default video settings.
func NewProcessor(opts Options, f *Font, logger *slog.Logger) *Processor {
	return &Processor{
		Options: opts,
		Font:    f,
		Video:   DefaultVideoSettings(),
		Logger:  orDiscard(logger),
	}
}

func (p *Processor) logger() *slog.Logger {
	return orDiscard(p.Logger)
}

// faceFor resolves the font size for a width x height frame and opens a face.
func (p *Processor) faceFor(width, height int) (font.Face, error) {
	size := FontSize(width, height, p.Options.FontSizeRatio)
	face, err := p.Font.Face(size)
	if err != nil {
		return nil, fmt.Errorf("open font face %s at %dpx: %w", p.Font.Name(), size, err)
	}
	p.logger().Debug("resolved font size", "font", p.Font.Name(), "size", size, "width", width, "height", height)
	return face, nil
}

// writeAtomic runs write against a temporary path next to path and renames
// it into place on success. The temporary file is removed on failure.
func writeAtomic(path string, write func(tmp string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	// The extension is kept so encoders can infer the format from the name.
	tmp := filepath.Join(dir, ".tmp-"+uuid.NewString()+"-"+filepath.Base(path))
	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
