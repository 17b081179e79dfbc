package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	eyeContactBaseline = 85.0

	highMovementThreshold     = 50.0
	moderateMovementThreshold = 25.0
)

// FrameSampler yields every stride-th frame of a video in order and returns
// the frame count of the whole video. visit may stop the walk by returning
// an error, which Sample passes through.
type FrameSampler interface {
	Sample(ctx context.Context, videoPath string, stride int, visit func(Frame) error) (int, error)
}

// EmotionClassifier detects faces in an encoded image and scores each one.
type EmotionClassifier interface {
	Classify(ctx context.Context, image []byte) ([]FaceEmotion, error)
}

type FacialAnalyzer struct {
	frames     FrameSampler
	classifier EmotionClassifier
	stride     int
	log        *logrus.Entry
}

func NewFacialAnalyzer(frames FrameSampler, classifier EmotionClassifier, stride int, log *logrus.Entry) *FacialAnalyzer {
	if stride < 1 {
		stride = 30
	}
	return &FacialAnalyzer{frames: frames, classifier: classifier, stride: stride, log: log.WithField("component", "facial")}
}

// Analyze samples videoPath and classifies each sampled frame. Frames that
// fail classification or contain no face are skipped.
func (a *FacialAnalyzer) Analyze(ctx context.Context, videoPath string) (VideoMetrics, error) {
	if _, err := os.Stat(videoPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return VideoMetrics{}, fmt.Errorf("%w: video %s", ErrMissingInput, videoPath)
		}
		return VideoMetrics{}, fmt.Errorf("stat video: %w", err)
	}
	if a.frames == nil || a.classifier == nil {
		return VideoMetrics{}, fmt.Errorf("%w: no facial classifier configured", ErrAnalyzerUnavailable)
	}

	log := a.log.WithField("video", videoPath)
	log.Info("analyzing frames")

	var (
		timeline []EmotionSample
		sampled  int
	)
	total, err := a.frames.Sample(ctx, videoPath, a.stride, func(f Frame) error {
		sampled++
		faces, err := a.classifier.Classify(ctx, f.Image)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).WithField("frame", f.Index).Debug("frame skipped")
			return nil
		}
		if len(faces) == 0 {
			return nil
		}
		face := faces[0]
		timeline = append(timeline, EmotionSample{
			Time:    f.Time,
			Emotion: face.DominantEmotion,
			Scores:  face.Scores,
		})
		return nil
	})
	if err != nil {
		return VideoMetrics{}, fmt.Errorf("sample frames: %w", err)
	}

	m := VideoSummary(timeline)
	m.FramesSampled = sampled
	m.TotalFrames = total
	log.WithFields(logrus.Fields{"total": total, "sampled": sampled, "analyzed": m.FramesAnalyzed}).Info("frames analyzed")
	return m, nil
}

// VideoSummary derives the facial metrics from an emotion timeline. An empty
// timeline yields the neutral metrics used when video is unavailable.
func VideoSummary(timeline []EmotionSample) VideoMetrics {
	n := len(timeline)
	m := VideoMetrics{
		Emotions:         timeline,
		EmotionSummary:   map[string]int{},
		DominantEmotion:  EmotionNeutral,
		Distribution:     map[string]float64{},
		GazeCounts:       baselineGaze(),
		HeadPoseTimeline: []map[string]float64{},
		FramesAnalyzed:   n,
	}
	if m.Emotions == nil {
		m.Emotions = []EmotionSample{}
	}
	if n > 0 {
		// the last face-bearing frame, the same end StressFrequency uses
		m.DurationSeconds = round2(timeline[n-1].Time)
	}

	counts, order := countLabels(timeline)
	m.EmotionSummary = counts
	if n > 0 {
		m.DominantEmotion = dominant(counts, order)
		for label, c := range counts {
			m.Distribution[label] = round2(float64(c) / float64(n) * 100)
		}
		m.EyeContactConsistency = eyeContactBaseline
	}

	m.Variability = round2(Variability(timeline))
	m.TensionIndex = round2(TensionIndex(timeline))
	m.Expressiveness = round2(Expressiveness(len(counts), m.Variability))
	m.StressFrequency = round2(StressFrequency(timeline))
	m.HeadMovement = AssessHeadMovement(m.Variability)
	return m
}

// baselineGaze is the fixed gaze split reported until gaze is tracked.
func baselineGaze() map[string]int {
	return map[string]int{"center": 50, "left": 15, "right": 15, "up": 10, "down": 10}
}

// EmotionDistribution returns the per-label percentage of samples and the
// most frequent label, neutral when there are no samples.
func EmotionDistribution(samples []EmotionSample) (map[string]float64, string) {
	dist := map[string]float64{}
	if len(samples) == 0 {
		return dist, EmotionNeutral
	}
	counts, order := countLabels(samples)
	for label, c := range counts {
		dist[label] = round2(float64(c) / float64(len(samples)) * 100)
	}
	return dist, dominant(counts, order)
}

func countLabels(samples []EmotionSample) (map[string]int, []string) {
	counts := map[string]int{}
	var order []string
	for _, s := range samples {
		if _, seen := counts[s.Emotion]; !seen {
			order = append(order, s.Emotion)
		}
		counts[s.Emotion]++
	}
	return counts, order
}

// dominant picks the highest count; the label seen first wins ties.
func dominant(counts map[string]int, order []string) string {
	best, bestN := EmotionNeutral, 0
	for _, label := range order {
		if counts[label] > bestN {
			best, bestN = label, counts[label]
		}
	}
	return best
}

// Variability is the percentage of consecutive samples whose label changes.
func Variability(samples []EmotionSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	changes := 0
	for i := 1; i < len(samples); i++ {
		if samples[i].Emotion != samples[i-1].Emotion {
			changes++
		}
	}
	return min(100, float64(changes)/float64(len(samples)-1)*100)
}

// TensionIndex is the share of angry, fear and sad samples in percent.
func TensionIndex(samples []EmotionSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	return float64(stressCount(samples)) / float64(len(samples)) * 100
}

func Expressiveness(unique int, variability float64) float64 {
	return min(100, float64(unique)*15+variability*0.5)
}

// StressFrequency is stress samples per minute, measured up to the time of
// the last sample.
func StressFrequency(samples []EmotionSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	minutes := samples[len(samples)-1].Time / 60
	if minutes <= 0 {
		return 0
	}
	return float64(stressCount(samples)) / minutes
}

func stressCount(samples []EmotionSample) int {
	n := 0
	for _, s := range samples {
		if stressEmotions[s.Emotion] {
			n++
		}
	}
	return n
}

// AssessHeadMovement classifies movement from expression variability. It is
// an approximation; no head pose is estimated.
func AssessHeadMovement(variability float64) HeadMovement {
	switch {
	case variability > highMovementThreshold:
		return HeadMovement{
			Pattern:     "high_movement",
			Description: "Frequent head movements detected, indicating high engagement or restlessness",
			Severity:    "moderate",
		}
	case variability > moderateMovementThreshold:
		return HeadMovement{
			Pattern:     "moderate_movement",
			Description: "Normal head movement patterns observed",
			Severity:    "low",
		}
	default:
		return HeadMovement{
			Pattern:     "low_movement",
			Description: "Minimal head movement, indicating stillness or low engagement",
			Severity:    "low",
		}
	}
}
