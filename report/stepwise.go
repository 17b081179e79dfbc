package report

import (
	"encoding/json"
	"fmt"

	"github.com/maastricht-university/session-insights/analysis"
)

// OpenEnd closes the last step window. It stands for "end of recording"
// without probing the real duration.
const OpenEnd = 999999.0

// Step is one scenario step as authored. Only "time" is interpreted; the
// object is echoed back unchanged.
type Step map[string]any

// Time is the step start in seconds, 0 when absent.
func (s Step) Time() float64 {
	switch t := s["time"].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	}
	return 0
}

type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type WindowMetrics struct {
	EmotionDistribution map[string]float64 `json:"emotion_distribution"`
	DominantEmotion     string             `json:"dominant_emotion"`
	SampleCount         int                `json:"sample_count"`
}

type StepMetrics struct {
	Step      Step          `json:"step"`
	TimeRange TimeRange     `json:"time_range"`
	Metrics   WindowMetrics `json:"metrics"`
}

// Stepwise slices every participant's emotion timeline into the step
// windows [t_i, t_{i+1}); the last window ends at OpenEnd.
func Stepwise(participants map[string]analysis.VideoMetrics, steps []Step) []StepMetrics {
	var samples []analysis.EmotionSample
	for _, id := range sortedIDs(participants) {
		samples = append(samples, participants[id].Emotions...)
	}

	out := make([]StepMetrics, 0, len(steps))
	for i, step := range steps {
		t0, t1 := step.Time(), OpenEnd
		if i+1 < len(steps) {
			t1 = steps[i+1].Time()
		}
		var in []analysis.EmotionSample
		for _, s := range samples {
			if s.Time >= t0 && s.Time < t1 {
				in = append(in, s)
			}
		}
		dist, dom := analysis.EmotionDistribution(in)
		out = append(out, StepMetrics{
			Step:      step,
			TimeRange: TimeRange{Start: t0, End: t1},
			Metrics:   WindowMetrics{EmotionDistribution: dist, DominantEmotion: dom, SampleCount: len(in)},
		})
	}
	return out
}

// ParseSteps decodes the "steps" array of a scenario metadata document.
func ParseSteps(data []byte) ([]Step, error) {
	var doc struct {
		Steps []Step `json:"steps"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode scenario steps: %w", err)
	}
	if doc.Steps == nil {
		doc.Steps = []Step{}
	}
	return doc.Steps, nil
}
