// Package media wraps the ffmpeg and ffprobe binaries: merging participant
// recordings, extracting the analysis waveform and sampling frames.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/session-insights/analysis"
	"github.com/maastricht-university/session-insights/config"
)

// ErrUnsupportedParticipants is returned for sessions with more than two
// raw recordings; only side-by-side merging of two is supported.
var ErrUnsupportedParticipants = errors.New("more than two participant recordings")

const mergeFilter = "[0:v][1:v]hstack=inputs=2[v];[0:a][1:a]amerge=inputs=2[a]"

// Tool runs ffmpeg/ffprobe with the configured encoding settings.
type Tool struct {
	FFmpeg     string
	FFprobe    string
	Codec      string
	CRF        int
	Preset     string
	SampleRate int
	Channels   int
	Timeout    time.Duration // per invocation, 0 for none

	log *logrus.Entry
}

func NewTool(c *config.Root, log *logrus.Entry) *Tool {
	return &Tool{
		FFmpeg:     c.Media.FFmpeg,
		FFprobe:    c.Media.FFprobe,
		Codec:      c.Video.Codec,
		CRF:        c.Video.CRF,
		Preset:     c.Video.Preset,
		SampleRate: c.Audio.SampleRate,
		Channels:   c.Audio.Channels,
		Timeout:    config.DurSeconds(c.Media.Timeout),
		log:        log.WithField("component", "media"),
	}
}

// Conform merges the participant recordings into outVideo and extracts the
// analysis waveform into outAudio. One input is re-encoded as is; two are
// placed side by side with their audio merged.
func (t *Tool) Conform(ctx context.Context, inputs []string, outVideo, outAudio string) error {
	args, err := t.MergeArgs(inputs, outVideo)
	if err != nil {
		return err
	}
	for _, dir := range []string{filepath.Dir(outVideo), filepath.Dir(outAudio)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	t.log.WithField("inputs", len(inputs)).Info("merging recordings")
	if _, err := t.run(ctx, t.FFmpeg, args...); err != nil {
		return fmt.Errorf("ffmpeg merge: %w", err)
	}

	t.log.WithField("audio", outAudio).Info("extracting audio")
	if _, err := t.run(ctx, t.FFmpeg, t.AudioArgs(outVideo, outAudio)...); err != nil {
		return fmt.Errorf("ffmpeg audio extract: %w", err)
	}
	return nil
}

// MergeArgs builds the ffmpeg arguments for merging inputs into out.
func (t *Tool) MergeArgs(inputs []string, out string) ([]string, error) {
	switch {
	case len(inputs) == 0:
		return nil, fmt.Errorf("%w: no raw recordings", analysis.ErrMissingInput)
	case len(inputs) > 2:
		return nil, fmt.Errorf("%w: got %d", ErrUnsupportedParticipants, len(inputs))
	}

	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	if len(inputs) == 2 {
		args = append(args, "-filter_complex", mergeFilter, "-map", "[v]", "-map", "[a]")
	}
	args = append(args, "-c:v", t.Codec, "-crf", strconv.Itoa(t.CRF))
	if t.Preset != "" {
		args = append(args, "-preset", t.Preset)
	}
	return append(args, out), nil
}

// AudioArgs builds the ffmpeg arguments for extracting the mono 16 kHz
// waveform from video.
func (t *Tool) AudioArgs(video, out string) []string {
	return []string{
		"-y", "-i", video,
		"-ac", strconv.Itoa(t.Channels),
		"-ar", strconv.Itoa(t.SampleRate),
		out,
	}
}

func (t *Tool) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.log.WithField("cmd", bin+" "+strings.Join(args, " ")).Debug("exec")
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s: %w", bin, ctx.Err())
		}
		return nil, fmt.Errorf("%s: %w\nstderr: %s", bin, err, tail(stderr.String(), 2048))
	}
	return stdout.Bytes(), nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
