package analysis

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sirupsen/logrus"
)

const defaultLLMTimeout = 30 * time.Second

//go:embed language_analysis.schema.json
var languageSchemaJSON []byte

var languageSchema = mustCompileSchema("language_analysis.schema.json", languageSchemaJSON)

var ErrMalformedResponse = errors.New("malformed language analysis")

// Completer sends one prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type SemanticAnalyzer struct {
	llm     Completer // nil when no credentials are configured
	timeout time.Duration
	log     *logrus.Entry
}

func NewSemanticAnalyzer(llm Completer, timeout time.Duration, log *logrus.Entry) *SemanticAnalyzer {
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	return &SemanticAnalyzer{llm: llm, timeout: timeout, log: log.WithField("component", "semantic")}
}

// Analyze never fails: when the language model is unavailable or its answer
// does not satisfy the contract, the keyword fallback fills the same shape.
func (a *SemanticAnalyzer) Analyze(ctx context.Context, transcript string, segments []Segment, wordCount, fillerCount int) SemanticMetrics {
	a.log.WithFields(logrus.Fields{"words": wordCount, "segments": len(segments)}).Debug("analyzing transcript")

	la, err := a.analyzeWithLLM(ctx, transcript)
	if err != nil {
		a.log.WithError(err).Warn("language model analysis unavailable, using keyword fallback")
		return FallbackMetrics(transcript, segments, fillerCount, err.Error())
	}
	m := segmentMetrics(segments, fillerCount)
	m.Language = la
	m.Source = SourceLLM
	return m
}

// FallbackMetrics fills the semantic metrics from the keyword analysis alone.
func FallbackMetrics(transcript string, segments []Segment, fillerCount int, reason string) SemanticMetrics {
	m := segmentMetrics(segments, fillerCount)
	m.Language = FallbackAnalysis(transcript)
	m.Source = SourceFallback
	m.FallbackReason = reason
	return m
}

func segmentMetrics(segments []Segment, fillerCount int) SemanticMetrics {
	return SemanticMetrics{
		TranscriptConfidence: round2(TranscriptConfidence(segments)),
		ContentDensity:       round2(ContentDensity(segments, TotalDuration(segments))),
		FillerCount:          fillerCount,
	}
}

func (a *SemanticAnalyzer) analyzeWithLLM(ctx context.Context, transcript string) (LanguageAnalysis, error) {
	if a.llm == nil {
		return LanguageAnalysis{}, fmt.Errorf("%w: llm credentials not configured", ErrAnalyzerUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	content, err := a.llm.Complete(ctx, BuildPrompt(transcript))
	if err != nil {
		return LanguageAnalysis{}, fmt.Errorf("llm completion: %w", err)
	}
	return ParseLanguageAnalysis(content)
}

// BuildPrompt wraps the transcript in the fixed structured-output instruction.
func BuildPrompt(transcript string) string {
	return `You are reviewing a recorded conversation transcript. Provide a structured, observational analysis. Do not make diagnoses.

Transcript:
` + transcript + `

Respond with a JSON object with exactly this structure:

{
  "sentiment_trend": {
    "overall": "positive/neutral/negative",
    "trajectory": "improving/stable/declining",
    "confidence": 0-100
  },
  "emotional_language": {
    "fear_words": ["list", "of", "words"],
    "stress_words": ["list", "of", "words"],
    "confidence_words": ["list", "of", "words"],
    "calm_words": ["list", "of", "words"],
    "total_emotional_words": 0
  },
  "cognitive_distortions": [
    {
      "type": "catastrophizing/black-and-white/overgeneralization/etc",
      "example": "quote from transcript",
      "severity": "mild/moderate/significant"
    }
  ],
  "crisis_indicators": {
    "self_harm_references": false,
    "hopelessness_language": false,
    "crisis_keywords_found": [],
    "risk_level": "none/low/moderate/high"
  },
  "observational_summary": "2-3 sentence neutral description of behavioral patterns observed",
  "strength_indicators": ["Observable strength 1", "Observable strength 2"]
}

Respond ONLY with valid JSON. Be objective and observational, not diagnostic.`
}

// ParseLanguageAnalysis validates model output against the language analysis
// schema and decodes it. Markdown code fences around the object are removed
// first; anything else that is not exactly the contract is rejected.
func ParseLanguageAnalysis(content string) (LanguageAnalysis, error) {
	raw := stripCodeFence(content)

	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return LanguageAnalysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := languageSchema.Validate(inst); err != nil {
		return LanguageAnalysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var la LanguageAnalysis
	if err := json.Unmarshal([]byte(raw), &la); err != nil {
		return LanguageAnalysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	la.SentimentTrend.Confidence = clampPct(la.SentimentTrend.Confidence)
	return normalizeLanguage(la), nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// normalizeLanguage replaces nil slices so the report never carries nulls.
func normalizeLanguage(la LanguageAnalysis) LanguageAnalysis {
	nonNil := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	la.EmotionalLanguage.FearWords = nonNil(la.EmotionalLanguage.FearWords)
	la.EmotionalLanguage.StressWords = nonNil(la.EmotionalLanguage.StressWords)
	la.EmotionalLanguage.ConfidenceWords = nonNil(la.EmotionalLanguage.ConfidenceWords)
	la.EmotionalLanguage.CalmWords = nonNil(la.EmotionalLanguage.CalmWords)
	la.CrisisIndicators.CrisisKeywordsFound = nonNil(la.CrisisIndicators.CrisisKeywordsFound)
	la.StrengthIndicators = nonNil(la.StrengthIndicators)
	if la.CognitiveDistortions == nil {
		la.CognitiveDistortions = []CognitiveDistortion{}
	}
	return la
}

// TotalDuration is the end time of the last segment.
func TotalDuration(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	return max(0, segments[len(segments)-1].End)
}

// ContentDensity is speaking time as a percentage of total duration.
func ContentDensity(segments []Segment, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return clampPct(SpeakingTime(segments) / total * 100)
}

// TranscriptConfidence averages (1 - no_speech_prob) over segments.
func TranscriptConfidence(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	s := 0.0
	for _, seg := range segments {
		s += (1 - clamp(seg.NoSpeechProb, 0, 1)) * 100
	}
	return clampPct(s / float64(len(segments)))
}

func mustCompileSchema(name string, data []byte) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("parse %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("add %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile %s: %v", name, err))
	}
	return s
}
