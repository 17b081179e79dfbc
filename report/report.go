// Package report fuses analyzer outcomes and session metadata into the
// persisted session report. Key names are consumed by the report UI and
// must not change.
package report

import (
	"sort"
	"time"

	"github.com/maastricht-university/session-insights/analysis"
)

type SessionMetadata struct {
	SessionID              string  `json:"session_id"`
	SessionType            string  `json:"session_type"`
	SessionDate            string  `json:"session_date"`
	SessionDuration        string  `json:"session_duration"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
	ScenarioID             string  `json:"scenario_id,omitempty"`
}

type VideoAnalysis struct {
	Distribution          map[string]float64               `json:"dominant_emotion_distribution"`
	Variability           float64                          `json:"facial_emotional_variability"`
	TensionIndex          float64                          `json:"facial_tension_index"`
	EyeContactConsistency float64                          `json:"eye_contact_consistency"`
	HeadMovement          analysis.HeadMovement            `json:"head_movement_patterns"`
	Expressiveness        float64                          `json:"facial_expressiveness_score"`
	StressFrequency       float64                          `json:"stress_expression_frequency"`
	Participants          map[string]analysis.VideoMetrics `json:"participants"`
}

type AudioAnalysis struct {
	SpeechRateWPM        float64 `json:"speech_rate_wpm"`
	PitchVariability     float64 `json:"pitch_variability"`
	VolumeStability      float64 `json:"volume_stability"`
	PauseFrequency       int     `json:"pause_frequency"`
	AveragePauseDuration float64 `json:"average_pause_duration"`
	LongPauses           int     `json:"long_pauses"`
	VoiceStress          float64 `json:"voice_stress_indicator"`
	TremorDetected       bool    `json:"vocal_tremor_detected"`
	FluencyScore         float64 `json:"speech_fluency_score"`
	FillerRate           float64 `json:"filler_rate"`

	Transcript  string `json:"transcript"`
	WordCount   int    `json:"word_count"`
	FillerCount int    `json:"filler_count"`
}

type TranscriptAnalysis struct {
	TranscriptConfidence float64                        `json:"transcript_confidence_level"`
	ContentDensity       float64                        `json:"speech_content_density"`
	FillerWordFrequency  int                            `json:"filler_word_frequency"`
	SentimentTrend       analysis.SentimentTrend        `json:"sentiment_polarity_trend"`
	EmotionalLanguage    analysis.EmotionalLanguage     `json:"emotional_language_usage"`
	CognitiveDistortions []analysis.CognitiveDistortion `json:"cognitive_distortion_indicators"`
	CrisisIndicators     analysis.CrisisIndicators      `json:"crisis_keyword_presence"`
}

type Summary struct {
	ObservationalSummary string   `json:"observational_summary"`
	DetectedStrengths    []string `json:"detected_strengths"`
}

// AnalyzerStatus records whether an analyzer contributed real values.
type AnalyzerStatus struct {
	Available bool   `json:"available"`
	Source    string `json:"source,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type Analyzers struct {
	Speech   AnalyzerStatus            `json:"speech"`
	Acoustic AnalyzerStatus            `json:"acoustic"`
	Semantic AnalyzerStatus            `json:"semantic"`
	Video    map[string]AnalyzerStatus `json:"video"`
}

type Report struct {
	SessionMetadata    SessionMetadata    `json:"session_metadata"`
	VideoAnalysis      VideoAnalysis      `json:"video_analysis"`
	AudioAnalysis      AudioAnalysis      `json:"audio_analysis"`
	TranscriptAnalysis TranscriptAnalysis `json:"transcript_analysis"`
	Summary            Summary            `json:"summary"`
	ConfidenceScore    float64            `json:"confidence_score"`
	GeneratedAt        float64            `json:"generated_at"` // unix seconds
	Stepwise           *[]StepMetrics     `json:"stepwise_analysis,omitempty"` // scenario sessions only
	Analyzers          Analyzers          `json:"analyzers"`
}

// Inputs is everything one job hands to Build.
type Inputs struct {
	Metadata SessionMetadata
	Speech   analysis.Outcome[analysis.AudioMetrics]
	Semantic analysis.SemanticMetrics
	Video    map[string]analysis.Outcome[analysis.VideoMetrics]
	Steps    []Step // non-nil for scenario sessions, even without steps
}

// Build assembles the report. Unavailable analyzers contribute neutral
// defaults so the result always carries every key.
func Build(in Inputs, now time.Time) *Report {
	audio, speechOK := in.Speech.Get()
	if !speechOK {
		audio = analysis.SpeechMetrics("", nil)
	}
	acoustic := audio.Acoustics()

	participants, videoStatus := participantMetrics(in.Video)
	lang := in.Semantic.Language

	r := &Report{
		SessionMetadata: in.Metadata,
		VideoAnalysis:   aggregateVideo(participants),
		AudioAnalysis: AudioAnalysis{
			SpeechRateWPM:        audio.SpeechRateWPM,
			PitchVariability:     acoustic.PitchVariability,
			VolumeStability:      acoustic.VolumeStability,
			PauseFrequency:       audio.PauseFrequency,
			AveragePauseDuration: audio.AveragePauseDuration,
			LongPauses:           audio.LongPauses,
			VoiceStress:          acoustic.StressIndicator,
			TremorDetected:       acoustic.TremorDetected,
			FluencyScore:         audio.FluencyScore,
			FillerRate:           audio.FillerRate,
			Transcript:           audio.Transcript,
			WordCount:            audio.WordCount,
			FillerCount:          audio.FillerCount,
		},
		TranscriptAnalysis: TranscriptAnalysis{
			TranscriptConfidence: in.Semantic.TranscriptConfidence,
			ContentDensity:       in.Semantic.ContentDensity,
			FillerWordFrequency:  in.Semantic.FillerCount,
			SentimentTrend:       lang.SentimentTrend,
			EmotionalLanguage:    lang.EmotionalLanguage,
			CognitiveDistortions: nonNil(lang.CognitiveDistortions),
			CrisisIndicators:     lang.CrisisIndicators,
		},
		Summary: Summary{
			ObservationalSummary: lang.ObservationalSummary,
			DetectedStrengths:    nonNil(lang.StrengthIndicators),
		},
		ConfidenceScore: OverallConfidence(in.Semantic.TranscriptConfidence, audio.FluencyScore),
		GeneratedAt:     float64(now.UnixNano()) / 1e9,
		Analyzers: Analyzers{
			Speech:   status(speechOK, "", in.Speech.Reason()),
			Acoustic: status(audio.Acoustic.Available(), "", audio.Acoustic.Reason()),
			Semantic: status(true, in.Semantic.Source, in.Semantic.FallbackReason),
			Video:    videoStatus,
		},
	}
	if in.Steps != nil {
		sw := Stepwise(participants, in.Steps)
		r.Stepwise = &sw
	}
	return r
}

// OverallConfidence weighs transcript confidence and fluency equally.
func OverallConfidence(transcriptConfidence, fluency float64) float64 {
	return round2(clampPct(0.5*transcriptConfidence + 0.5*fluency))
}

func participantMetrics(video map[string]analysis.Outcome[analysis.VideoMetrics]) (map[string]analysis.VideoMetrics, map[string]AnalyzerStatus) {
	metrics := make(map[string]analysis.VideoMetrics, len(video))
	statuses := make(map[string]AnalyzerStatus, len(video))
	for id, o := range video {
		m, ok := o.Get()
		if !ok {
			m = analysis.VideoSummary(nil)
		}
		metrics[id] = m
		statuses[id] = status(ok, "", o.Reason())
	}
	return metrics, statuses
}

// aggregateVideo takes the session-level values from the first participant
// in ID order. Other participants only appear under Participants.
func aggregateVideo(participants map[string]analysis.VideoMetrics) VideoAnalysis {
	first := analysis.VideoSummary(nil)
	if ids := sortedIDs(participants); len(ids) > 0 {
		first = participants[ids[0]]
	}
	return VideoAnalysis{
		Distribution:          first.Distribution,
		Variability:           first.Variability,
		TensionIndex:          first.TensionIndex,
		EyeContactConsistency: first.EyeContactConsistency,
		HeadMovement:          first.HeadMovement,
		Expressiveness:        first.Expressiveness,
		StressFrequency:       first.StressFrequency,
		Participants:          participants,
	}
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func status(ok bool, source, reason string) AnalyzerStatus {
	if ok {
		reason = ""
	}
	return AnalyzerStatus{Available: ok, Source: source, Reason: reason}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
