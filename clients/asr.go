package clients

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maastricht-university/session-insights/analysis"
)

// defaultNoSpeechProb is assumed for segments that omit the probability.
const defaultNoSpeechProb = 0.5

type transSeg struct {
	Start        float64  `json:"start"`
	End          float64  `json:"end"`
	Text         string   `json:"text"`
	NoSpeechProb *float64 `json:"no_speech_prob"`
}

type asrResp struct {
	Text     string     `json:"text"`
	Segments []transSeg `json:"segments"`
	Language string     `json:"language"`
}

// ASR talks to the speech-to-text service.
type ASR struct {
	http *HTTP
	url  string
}

func NewASR(url string, timeout time.Duration) *ASR {
	return &ASR{http: NewHTTP(timeout), url: strings.TrimRight(url, "/")}
}

// Transcribe uploads wavPath to /transcribe with word timestamps enabled.
func (a *ASR) Transcribe(ctx context.Context, wavPath string) (*analysis.Transcript, error) {
	fd, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	req, err := multipartRequest(ctx, a.url+"/transcribe",
		formFile{field: "file", name: filepath.Base(wavPath), r: fd},
		map[string]string{"word_timestamps": "true"})
	if err != nil {
		return nil, err
	}

	var out asrResp
	if err := a.http.do(req, "asr", &out); err != nil {
		return nil, err
	}

	tr := &analysis.Transcript{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Segments: make([]analysis.Segment, 0, len(out.Segments)),
	}
	for _, s := range out.Segments {
		p := defaultNoSpeechProb
		if s.NoSpeechProb != nil {
			p = *s.NoSpeechProb
		}
		tr.Segments = append(tr.Segments, analysis.Segment{Start: s.Start, End: s.End, Text: s.Text, NoSpeechProb: p})
	}
	if tr.Text == "" {
		parts := make([]string, 0, len(out.Segments))
		for _, s := range out.Segments {
			parts = append(parts, strings.TrimSpace(s.Text))
		}
		tr.Text = strings.Join(parts, " ")
	}
	return tr, nil
}
