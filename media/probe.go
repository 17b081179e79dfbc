package media

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const defaultFPS = 30.0

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
}

// ProbeInfo is what the pipeline needs to know about a video.
type ProbeInfo struct {
	Duration float64 // sec
	FPS      float64
	Frames   int // nb_frames, else estimated from duration
}

// Probe reads duration and frame rate with ffprobe.
func (t *Tool) Probe(ctx context.Context, path string) (ProbeInfo, error) {
	out, err := t.run(ctx, t.FFprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return ProbeInfo{}, fmt.Errorf("ffprobe: %w", err)
	}
	return ParseProbe(out)
}

// ParseProbe decodes ffprobe JSON. WebM files from browsers often carry no
// container duration; the frame count over the frame rate is used then.
// An unknown frame rate falls back to 30 fps.
func ParseProbe(data []byte) (ProbeInfo, error) {
	var p ffprobeOutput
	if err := json.Unmarshal(data, &p); err != nil {
		return ProbeInfo{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	info := ProbeInfo{FPS: defaultFPS}
	nbFrames := 0.0
	for _, s := range p.Streams {
		if s.CodecType != "video" {
			continue
		}
		if fps := parseRate(s.AvgFrameRate); fps > 0 {
			info.FPS = fps
		} else if fps := parseRate(s.RFrameRate); fps > 0 {
			info.FPS = fps
		}
		nbFrames, _ = strconv.ParseFloat(s.NbFrames, 64)
		break
	}

	if d, err := strconv.ParseFloat(p.Format.Duration, 64); err == nil && d > 0 {
		info.Duration = d
	} else if nbFrames > 0 {
		info.Duration = nbFrames / info.FPS
	}
	info.Frames = int(nbFrames)
	if info.Frames == 0 {
		info.Frames = int(math.Round(info.Duration * info.FPS))
	}
	return info, nil
}

// parseRate parses "30000/1001" or "25". Zero denominators give 0.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
