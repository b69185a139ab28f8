package watermark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeResult describes the first video stream of a media file.
type ProbeResult struct {
	DurationSecs float64
	Width        int
	Height       int
	FrameRate    string
	VideoCodec   string
	AudioCodec   string
	HasAudio     bool
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe on filePath.
func Probe(ctx context.Context, ffprobe, filePath string) (*ProbeResult, error) {
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w\noutput: %s", err, stderr.String())
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (*ProbeResult, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	result := &ProbeResult{}
	if parsed.Format.Duration != "" {
		result.DurationSecs, _ = strconv.ParseFloat(parsed.Format.Duration, 64)
	}
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if result.VideoCodec != "" {
				continue
			}
			result.VideoCodec = s.CodecName
			result.Width = s.Width
			result.Height = s.Height
			result.FrameRate = pickFrameRate(s.AvgFrameRate, s.RFrameRate)
		case "audio":
			if !result.HasAudio {
				result.AudioCodec = s.CodecName
				result.HasAudio = true
			}
		}
	}
	return result, nil
}

// pickFrameRate returns the first usable "num/den" rate, defaulting to 25.
func pickFrameRate(candidates ...string) string {
	for _, c := range candidates {
		num, den, ok := strings.Cut(c, "/")
		if !ok {
			if v, err := strconv.ParseFloat(c, 64); err == nil && v > 0 {
				return c
			}
			continue
		}
		n, err1 := strconv.Atoi(num)
		d, err2 := strconv.Atoi(den)
		if err1 == nil && err2 == nil && n > 0 && d > 0 {
			return c
		}
	}
	return "25"
}
