package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

const (
	pauseThreshold     = 0.5 // sec
	longPauseThreshold = 2.0 // sec
)

var (
	fillerWords   = map[string]bool{"um": true, "uh": true, "ah": true, "like": true}
	fillerPhrases = [][2]string{{"you", "know"}, {"sort", "of"}, {"kind", "of"}}
)

// Transcriber is the ASR engine contract.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (*Transcript, error)
}

// AcousticExtractor computes waveform features.
type AcousticExtractor interface {
	Extract(ctx context.Context, wavPath string) (AcousticFeatures, error)
}

type SpeechAnalyzer struct {
	asr      Transcriber
	acoustic AcousticExtractor // nil when disabled
	log      *logrus.Entry
}

func NewSpeechAnalyzer(asr Transcriber, acoustic AcousticExtractor, log *logrus.Entry) *SpeechAnalyzer {
	return &SpeechAnalyzer{asr: asr, acoustic: acoustic, log: log.WithField("component", "speech")}
}

// Analyze transcribes wavPath and derives the speech metrics. A missing file
// fails before the ASR engine is called.
func (a *SpeechAnalyzer) Analyze(ctx context.Context, wavPath string) (AudioMetrics, error) {
	if _, err := os.Stat(wavPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return AudioMetrics{}, fmt.Errorf("%w: audio %s", ErrMissingInput, wavPath)
		}
		return AudioMetrics{}, fmt.Errorf("stat audio: %w", err)
	}
	if a.asr == nil {
		return AudioMetrics{}, fmt.Errorf("%w: no ASR engine configured", ErrAnalyzerUnavailable)
	}

	a.log.WithField("audio", wavPath).Info("transcribing")
	tr, err := a.asr.Transcribe(ctx, wavPath)
	if err != nil {
		return AudioMetrics{}, fmt.Errorf("transcribe: %w", err)
	}
	a.log.WithFields(logrus.Fields{"language": tr.Language, "segments": len(tr.Segments)}).Info("transcribed")

	m := SpeechMetrics(tr.Text, tr.Segments)
	m.Acoustic = a.extractAcoustics(ctx, wavPath)
	return m, nil
}

func (a *SpeechAnalyzer) extractAcoustics(ctx context.Context, wavPath string) Outcome[AcousticFeatures] {
	if a.acoustic == nil {
		a.log.Warn("acoustic feature extraction disabled, using neutral defaults")
		return Unavailable[AcousticFeatures]("acoustic feature extraction disabled")
	}
	f, err := a.acoustic.Extract(ctx, wavPath)
	if err != nil {
		a.log.WithError(err).Warn("acoustic feature extraction failed, using neutral defaults")
		return Unavailable[AcousticFeatures](err.Error())
	}
	return Available(f)
}

// SpeechMetrics computes the transcript and timing metrics. Acoustic
// features are left unavailable.
func SpeechMetrics(text string, segments []Segment) AudioMetrics {
	words := Tokenize(text)
	fillers := CountFillers(words)
	p := Pauses(segments)

	m := AudioMetrics{
		Transcript:           text,
		WordCount:            len(words),
		FillerCount:          fillers,
		FillerRate:           round2(FillerRate(fillers, len(words))),
		PauseFrequency:       p.Frequency,
		AveragePauseDuration: round2(p.AverageDuration),
		LongPauses:           p.Long,
		SpeechRateWPM:        round2(SpeechRate(segments, len(words))),
		Segments:             segments,
		Acoustic:             Unavailable[AcousticFeatures]("not extracted"),
	}
	if m.Segments == nil {
		m.Segments = []Segment{}
	}
	m.FluencyScore = round2(FluencyScore(fillers, len(words), p.Long, p.Frequency))
	return m
}

// Tokenize lower-cases text, splits it on whitespace and trims surrounding
// punctuation from each token. Tokens that are pure punctuation are dropped.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) && r != '\''
		})
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// CountFillers counts single filler words and two-word filler phrases. A
// token is consumed by at most one match.
func CountFillers(words []string) int {
	n := 0
	for i := 0; i < len(words); i++ {
		if i+1 < len(words) && isFillerPhrase(words[i], words[i+1]) {
			n++
			i++
			continue
		}
		if fillerWords[words[i]] {
			n++
		}
	}
	return n
}

func isFillerPhrase(a, b string) bool {
	for _, p := range fillerPhrases {
		if p[0] == a && p[1] == b {
			return true
		}
	}
	return false
}

func FillerRate(fillers, words int) float64 {
	if words == 0 {
		return 0
	}
	return clampPct(float64(fillers) / float64(words) * 100)
}

type PauseStats struct {
	Frequency       int
	AverageDuration float64
	Long            int
}

// Pauses counts inter-segment gaps above the pause thresholds.
func Pauses(segments []Segment) PauseStats {
	var gaps []float64
	long := 0
	for i := 1; i < len(segments); i++ {
		gap := segments[i].Start - segments[i-1].End
		if gap > pauseThreshold {
			gaps = append(gaps, gap)
			if gap > longPauseThreshold {
				long++
			}
		}
	}
	return PauseStats{Frequency: len(gaps), AverageDuration: mean(gaps), Long: long}
}

// SpeakingTime sums segment durations, ignoring malformed negative spans.
func SpeakingTime(segments []Segment) float64 {
	t := 0.0
	for _, s := range segments {
		if d := s.Duration(); d > 0 {
			t += d
		}
	}
	return t
}

// SpeechRate is words per minute of speaking time.
func SpeechRate(segments []Segment, words int) float64 {
	if words == 0 {
		return 0
	}
	t := SpeakingTime(segments)
	if t == 0 {
		return 0
	}
	return float64(words) / t * 60
}

// FluencyScore subtracts filler, long pause and pause rate penalties from 100.
func FluencyScore(fillers, words, longPauses, pauseFrequency int) float64 {
	if words == 0 {
		return 0
	}
	fillerPenalty := float64(fillers) / float64(words) * 100
	longPausePenalty := 5 * float64(longPauses)
	pauseRatePenalty := min(30, 2*float64(pauseFrequency))
	return clampPct(100 - fillerPenalty - longPausePenalty - pauseRatePenalty)
}
