package watermark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"

	"golang.org/x/image/font"
)

// ProcessVideo watermarks every frame of a video. Frames are decoded by one
// ffmpeg process as raw RGBA, watermarked in presentation order and piped into
// a second ffmpeg that re-encodes them together with the source audio.
func (p *Processor) ProcessVideo(ctx context.Context, inputPath, outputPath string) error {
	probe, err := Probe(ctx, p.Video.FFprobe, inputPath)
	if err != nil {
		return fmt.Errorf("open video %s: %w", inputPath, err)
	}
	if probe.Width <= 0 || probe.Height <= 0 {
		return fmt.Errorf("open video %s: no video stream", inputPath)
	}

	// Dimensions are fixed for the whole stream.
	face, err := p.faceFor(probe.Width, probe.Height)
	if err != nil {
		return err
	}
	defer face.Close()

	var frames int
	err = writeAtomic(outputPath, func(tmp string) error {
		var err error
		frames, err = p.transcode(ctx, inputPath, tmp, probe, face)
		return err
	})
	if err != nil {
		return fmt.Errorf("encode video %s: %w", outputPath, err)
	}
	p.logger().Debug("watermarked video",
		"input", inputPath,
		"frames", frames,
		"size", fmt.Sprintf("%dx%d", probe.Width, probe.Height),
		"rate", probe.FrameRate,
		"audio", probe.HasAudio,
	)
	return nil
}

func (p *Processor) transcode(ctx context.Context, input, output string, probe *ProbeResult, face font.Face) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ffmpeg := p.Video.FFmpeg
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}

	enc := exec.CommandContext(ctx, ffmpeg, encoderArgs(input, output, probe, p.Video)...)
	var encErr bytes.Buffer
	enc.Stderr = &encErr
	sink, err := enc.StdinPipe()
	if err != nil {
		return 0, err
	}
	if err := enc.Start(); err != nil {
		return 0, fmt.Errorf("start ffmpeg encoder: %w", err)
	}

	// The decoder pipe is only opened once the encoder runs, so a failed
	// encoder start leaves nothing behind.
	dec := exec.CommandContext(ctx, ffmpeg, decoderArgs(input)...)
	var decErr bytes.Buffer
	dec.Stderr = &decErr
	source, err := dec.StdoutPipe()
	if err == nil {
		err = dec.Start()
	}
	if err != nil {
		sink.Close()
		cancel()
		enc.Wait()
		return 0, fmt.Errorf("start ffmpeg decoder: %w", err)
	}

	n, pumpErr := p.pump(ctx, source, sink, probe.Width, probe.Height, face)
	if pumpErr != nil {
		cancel()
	}
	sink.Close()
	decWait := dec.Wait()
	encWait := enc.Wait()

	switch {
	case pumpErr != nil:
		return n, fmt.Errorf("%w\nencoder output: %s", pumpErr, encErr.String())
	case decWait != nil:
		return n, fmt.Errorf("ffmpeg decode: %w\noutput: %s", decWait, decErr.String())
	case encWait != nil:
		return n, fmt.Errorf("ffmpeg encode: %w\noutput: %s", encWait, encErr.String())
	case n == 0:
		return 0, ErrNoFrames
	}
	return n, nil
}

// pump reads raw RGBA frames from r, watermarks them and writes them to w.
func (p *Processor) pump(ctx context.Context, r io.Reader, w io.Writer, width, height int, face font.Face) (int, error) {
	buf := make([]byte, width*height*4)
	frame := &image.NRGBA{Pix: buf, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("read frame %d: %w", n, err)
		}
		marked := Apply(frame, p.Options, face)
		if _, err := w.Write(marked.Pix); err != nil {
			return n, fmt.Errorf("write frame %d: %w", n, err)
		}
		n++
	}
}

func decoderArgs(input string) []string {
	return []string{
		"-v", "error",
		"-noautorotate",
		"-i", input,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
}

func encoderArgs(input, output string, probe *ProbeResult, vs VideoSettings) []string {
	args := []string{
		"-v", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", probe.Width, probe.Height),
		"-framerate", probe.FrameRate,
		"-i", "-",
		"-i", input,
		"-map", "0:v:0",
	}
	if probe.HasAudio {
		audio := vs.AudioCodec
		if audio == "" {
			audio = "aac"
		}
		args = append(args, "-map", "1:a:0", "-c:a", audio)
	}
	codec := vs.VideoCodec
	if codec == "" {
		codec = "libx264"
	}
	args = append(args, "-map_metadata", "1", "-c:v", codec)
	if vs.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(vs.CRF))
	}
	// 4:2:0 chroma needs even dimensions; odd sizes keep ffmpeg's default.
	if probe.Width%2 == 0 && probe.Height%2 == 0 {
		args = append(args, "-pix_fmt", "yuv420p")
	}
	return append(args, output)
}
