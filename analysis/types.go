package analysis

// Segment is a time-bounded unit of transcribed speech.
type Segment struct {
	Start        float64 `json:"start"` // sec
	End          float64 `json:"end"`   // sec
	Text         string  `json:"text"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

func (s Segment) Duration() float64 { return s.End - s.Start }

// Transcript is what a Transcriber returns for one waveform.
type Transcript struct {
	Text     string
	Segments []Segment
	Language string
}

// Emotion labels produced by the facial classifier.
const (
	EmotionAngry    = "angry"
	EmotionFear     = "fear"
	EmotionSad      = "sad"
	EmotionHappy    = "happy"
	EmotionSurprise = "surprise"
	EmotionDisgust  = "disgust"
	EmotionNeutral  = "neutral"
)

// stressEmotions are the labels counted by the tension index.
var stressEmotions = map[string]bool{EmotionAngry: true, EmotionFear: true, EmotionSad: true}

// EmotionSample is the dominant emotion of one analyzed frame.
type EmotionSample struct {
	Time    float64            `json:"time"`
	Emotion string             `json:"emotion"`
	Scores  map[string]float64 `json:"scores"`
}

// FaceEmotion is one detected face as reported by the classifier.
type FaceEmotion struct {
	DominantEmotion string
	Scores          map[string]float64
}

// Frame is a sampled video frame.
type Frame struct {
	Index int
	Time  float64 // sec
	Image []byte
}

// AcousticFeatures are derived from the raw waveform.
type AcousticFeatures struct {
	PitchVariability float64 `json:"pitch_variability"`
	VolumeStability  float64 `json:"volume_stability"`
	StressIndicator  float64 `json:"voice_stress_indicator"`
	TremorDetected   bool    `json:"vocal_tremor_detected"`
}

// NeutralAcoustics is substituted when no extractor result is available.
var NeutralAcoustics = AcousticFeatures{
	PitchVariability: 0,
	VolumeStability:  75,
	StressIndicator:  50,
	TremorDetected:   false,
}

type AudioMetrics struct {
	Transcript           string    `json:"transcript"`
	WordCount            int       `json:"word_count"`
	FillerCount          int       `json:"filler_count"`
	FillerRate           float64   `json:"filler_word_frequency"`
	PauseFrequency       int       `json:"pause_frequency"`
	AveragePauseDuration float64   `json:"average_pause_duration"`
	LongPauses           int       `json:"long_pauses"`
	SpeechRateWPM        float64   `json:"speech_rate_wpm"`
	FluencyScore         float64   `json:"speech_fluency_score"`
	Segments             []Segment `json:"segments"`

	// Acoustic holds the extractor outcome; the report flattens it.
	Acoustic Outcome[AcousticFeatures] `json:"-"`
}

// Acoustics returns the extracted features or the neutral defaults.
func (m AudioMetrics) Acoustics() AcousticFeatures {
	return m.Acoustic.OrElse(NeutralAcoustics)
}

type SentimentTrend struct {
	Overall    string  `json:"overall"`
	Trajectory string  `json:"trajectory"`
	Confidence float64 `json:"confidence"`
}

type EmotionalLanguage struct {
	FearWords           []string `json:"fear_words"`
	StressWords         []string `json:"stress_words"`
	ConfidenceWords     []string `json:"confidence_words"`
	CalmWords           []string `json:"calm_words"`
	TotalEmotionalWords int      `json:"total_emotional_words"`
}

type CognitiveDistortion struct {
	Type     string `json:"type"`
	Example  string `json:"example"`
	Severity string `json:"severity"`
}

type CrisisIndicators struct {
	SelfHarmReferences   bool     `json:"self_harm_references"`
	HopelessnessLanguage bool     `json:"hopelessness_language"`
	CrisisKeywordsFound  []string `json:"crisis_keywords_found"`
	RiskLevel            string   `json:"risk_level"`
}

// LanguageAnalysis is the structured-output contract shared by the LLM and
// the keyword fallback.
type LanguageAnalysis struct {
	SentimentTrend       SentimentTrend        `json:"sentiment_trend"`
	EmotionalLanguage    EmotionalLanguage     `json:"emotional_language"`
	CognitiveDistortions []CognitiveDistortion `json:"cognitive_distortions"`
	CrisisIndicators     CrisisIndicators      `json:"crisis_indicators"`
	ObservationalSummary string                `json:"observational_summary"`
	StrengthIndicators   []string              `json:"strength_indicators"`
}

// Semantic sources.
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

type SemanticMetrics struct {
	TranscriptConfidence float64          `json:"transcript_confidence_level"`
	ContentDensity       float64          `json:"speech_content_density"`
	FillerCount          int              `json:"filler_word_frequency"`
	Language             LanguageAnalysis `json:"language"`
	Source               string           `json:"source"`
	FallbackReason       string           `json:"fallback_reason,omitempty"`
}

type HeadMovement struct {
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type VideoMetrics struct {
	Emotions              []EmotionSample    `json:"emotions"`
	EmotionSummary        map[string]int     `json:"emotion_summary"`
	DominantEmotion       string             `json:"dominant_emotion"`
	Distribution          map[string]float64 `json:"dominant_emotion_distribution"`
	Variability           float64            `json:"facial_emotional_variability"`
	TensionIndex          float64            `json:"facial_tension_index"`
	EyeContactConsistency float64            `json:"eye_contact_consistency"`
	HeadMovement          HeadMovement       `json:"head_movement_patterns"`
	Expressiveness        float64            `json:"facial_expressiveness_score"`
	StressFrequency       float64            `json:"stress_expression_frequency"`

	// GazeCounts and HeadPoseTimeline are placeholders; neither gaze nor
	// head pose is estimated.
	GazeCounts       map[string]int       `json:"gaze_counts"`
	HeadPoseTimeline []map[string]float64 `json:"head_pose_timeline"`
	FramesSampled    int                  `json:"frames_sampled"`
	FramesAnalyzed   int                  `json:"frames_analyzed"`
	TotalFrames      int                  `json:"total_frames"`
	DurationSeconds  float64              `json:"video_duration_seconds"` // time of the last analyzed frame
}
