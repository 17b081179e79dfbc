package clients

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/maastricht-university/session-insights/analysis"
)

// --- Facial emotion (/analyze) ---
type faceResp struct {
	DominantEmotion string             `json:"dominant_emotion"`
	Emotion         map[string]float64 `json:"emotion"`
}

// FaceEmotion talks to the facial-emotion classifier.
type FaceEmotion struct {
	http *HTTP
	url  string
}

func NewFaceEmotion(url string, timeout time.Duration) *FaceEmotion {
	return &FaceEmotion{http: NewHTTP(timeout), url: strings.TrimRight(url, "/")}
}

// Classify posts one encoded frame with face detection not enforced, so a
// frame without a face yields an empty result instead of an error.
func (f *FaceEmotion) Classify(ctx context.Context, image []byte) ([]analysis.FaceEmotion, error) {
	req, err := multipartRequest(ctx, f.url+"/analyze",
		formFile{field: "image", name: "frame.jpg", r: bytes.NewReader(image)},
		map[string]string{"enforce_detection": "false"})
	if err != nil {
		return nil, err
	}

	var out []faceResp
	if err := f.http.do(req, "emotion", &out); err != nil {
		return nil, err
	}

	faces := make([]analysis.FaceEmotion, 0, len(out))
	for _, r := range out {
		if r.DominantEmotion == "" {
			continue
		}
		faces = append(faces, analysis.FaceEmotion{
			DominantEmotion: strings.ToLower(r.DominantEmotion),
			Scores:          normalizeScores(r.Emotion),
		})
	}
	return faces, nil
}

// normalizeScores maps percentages (any score above 1) onto [0,1].
func normalizeScores(in map[string]float64) map[string]float64 {
	scale := 1.0
	for _, v := range in {
		if v > 1 {
			scale = 100
			break
		}
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = min(1, max(0, v/scale))
	}
	return out
}
