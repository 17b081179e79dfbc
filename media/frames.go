package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/maastricht-university/session-insights/analysis"
)

// FrameSampler extracts every Nth frame as JPEG into a scratch directory
// and replays them in order. It implements analysis.FrameSampler.
type FrameSampler struct {
	tool    *Tool
	scratch string
}

// Frames returns a sampler that writes into scratch (os.TempDir when empty).
func (t *Tool) Frames(scratch string) *FrameSampler {
	return &FrameSampler{tool: t, scratch: scratch}
}

func (s *FrameSampler) Sample(ctx context.Context, videoPath string, stride int, visit func(analysis.Frame) error) (int, error) {
	if stride < 1 {
		stride = 1
	}
	info, err := s.tool.Probe(ctx, videoPath)
	if err != nil {
		return 0, err
	}

	dir := filepath.Join(s.scratch, "frames-"+uuid.NewString())
	if s.scratch == "" {
		dir = filepath.Join(os.TempDir(), "frames-"+uuid.NewString())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	defer os.RemoveAll(dir)

	if _, err := s.tool.run(ctx, s.tool.FFmpeg, SelectArgs(videoPath, stride, dir)...); err != nil {
		return 0, fmt.Errorf("ffmpeg frame select: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return 0, err
	}
	sort.Strings(files)

	for k, f := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		img, err := os.ReadFile(f)
		if err != nil {
			return 0, err
		}
		idx := k * stride
		if err := visit(analysis.Frame{Index: idx, Time: float64(idx) / info.FPS, Image: img}); err != nil {
			return 0, err
		}
	}
	// containers without a frame count still cover every sampled frame
	return max(info.Frames, (len(files)-1)*stride+1), nil
}

// SelectArgs builds the ffmpeg arguments writing frames 0, stride, 2*stride
// and so on to dir as numbered JPEGs.
func SelectArgs(video string, stride int, dir string) []string {
	return []string{
		"-v", "error",
		"-i", video,
		"-vf", fmt.Sprintf("select=not(mod(n\\,%d))", stride),
		"-vsync", "vfr",
		"-q:v", "3",
		filepath.Join(dir, "%06d.jpg"),
	}
}
