package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	content string
	err     error
	prompt  string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.content, f.err
}

const validAnalysis = `{
  "sentiment_trend": {"overall": "positive", "trajectory": "improving", "confidence": 82},
  "emotional_language": {
    "fear_words": ["worried"],
    "stress_words": [],
    "confidence_words": ["capable"],
    "calm_words": [],
    "total_emotional_words": 2
  },
  "cognitive_distortions": [
    {"type": "catastrophizing", "example": "everything will fail", "severity": "mild"}
  ],
  "crisis_indicators": {
    "self_harm_references": false,
    "hopelessness_language": false,
    "crisis_keywords_found": [],
    "risk_level": "none"
  },
  "observational_summary": "The speaker described recent progress.",
  "strength_indicators": ["Reflective"]
}`

func TestParseLanguageAnalysis(t *testing.T) {
	la, err := ParseLanguageAnalysis(validAnalysis)
	require.NoError(t, err)
	assert.Equal(t, "positive", la.SentimentTrend.Overall)
	assert.Equal(t, 82.0, la.SentimentTrend.Confidence)
	assert.Equal(t, []string{"worried"}, la.EmotionalLanguage.FearWords)
	require.Len(t, la.CognitiveDistortions, 1)
	assert.Equal(t, "mild", la.CognitiveDistortions[0].Severity)
	assert.NotNil(t, la.CrisisIndicators.CrisisKeywordsFound)
}

func TestParseLanguageAnalysis_Fenced(t *testing.T) {
	la, err := ParseLanguageAnalysis("```json\n" + validAnalysis + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "improving", la.SentimentTrend.Trajectory)
}

func TestParseLanguageAnalysis_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json":         "Sure! Here is the analysis.",
		"empty object":     "{}",
		"bad enum":         strings.Replace(validAnalysis, `"risk_level": "none"`, `"risk_level": "extreme"`, 1),
		"confidence > 100": strings.Replace(validAnalysis, `"confidence": 82`, `"confidence": 182`, 1),
		"extra key":        strings.Replace(validAnalysis, `"strength_indicators"`, `"diagnosis": "x", "strength_indicators"`, 1),
		"wrong type":       strings.Replace(validAnalysis, `"total_emotional_words": 2`, `"total_emotional_words": "two"`, 1),
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLanguageAnalysis(content)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestSemanticAnalyzer_LLM(t *testing.T) {
	llm := &fakeCompleter{content: validAnalysis}
	a := NewSemanticAnalyzer(llm, time.Second, nullLog())

	segs := []Segment{
		{Start: 0, End: 4, NoSpeechProb: 0.1},
		{Start: 6, End: 10, NoSpeechProb: 0.3},
	}
	m := a.Analyze(context.Background(), "I felt capable today", segs, 4, 0)

	assert.Equal(t, SourceLLM, m.Source)
	assert.Empty(t, m.FallbackReason)
	assert.Contains(t, llm.prompt, "I felt capable today")
	assert.Equal(t, 80.0, m.TranscriptConfidence)
	assert.Equal(t, 80.0, m.ContentDensity)
	assert.Equal(t, "positive", m.Language.SentimentTrend.Overall)
}

func TestSemanticAnalyzer_Fallback(t *testing.T) {
	transcript := "I feel hopeless and anxious about everything"

	tests := []struct {
		name string
		llm  Completer
	}{
		{"no credentials", nil},
		{"request fails", &fakeCompleter{err: errors.New("503")}},
		{"malformed answer", &fakeCompleter{content: `{"sentiment_trend": "fine"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewSemanticAnalyzer(tt.llm, time.Second, nullLog())
			m := a.Analyze(context.Background(), transcript, nil, 7, 0)

			assert.Equal(t, SourceFallback, m.Source)
			assert.NotEmpty(t, m.FallbackReason)
			assert.True(t, m.Language.CrisisIndicators.HopelessnessLanguage)
			assert.Equal(t, "high", m.Language.CrisisIndicators.RiskLevel)
			assert.Zero(t, m.TranscriptConfidence)
			assert.Zero(t, m.ContentDensity)
		})
	}
}

func TestFallbackAnalysis(t *testing.T) {
	la := FallbackAnalysis("I was nervous, scared and afraid, but I stayed calm. I want to give up sometimes.")

	assert.Equal(t, "negative", la.SentimentTrend.Overall)
	assert.Equal(t, "stable", la.SentimentTrend.Trajectory)
	assert.Equal(t, 60.0, la.SentimentTrend.Confidence)
	assert.Equal(t, []string{"nervous", "scared", "afraid"}, la.EmotionalLanguage.FearWords)
	assert.Equal(t, []string{"calm"}, la.EmotionalLanguage.CalmWords)
	assert.Equal(t, 4, la.EmotionalLanguage.TotalEmotionalWords)
	assert.Equal(t, []string{"give up"}, la.CrisisIndicators.CrisisKeywordsFound)
	assert.True(t, la.CrisisIndicators.SelfHarmReferences)
	assert.False(t, la.CrisisIndicators.HopelessnessLanguage)
	assert.Empty(t, la.StrengthIndicators)
	assert.Contains(t, la.ObservationalSummary, "negative sentiment")
}

func TestFallbackAnalysis_Neutral(t *testing.T) {
	words := strings.Repeat("today we talked about the weather ", 10)
	la := FallbackAnalysis(words)

	assert.Equal(t, "neutral", la.SentimentTrend.Overall)
	assert.Equal(t, "none", la.CrisisIndicators.RiskLevel)
	assert.False(t, la.CrisisIndicators.SelfHarmReferences)
	assert.Equal(t, []string{"Engaged in session", "Completed full session"}, la.StrengthIndicators)
	assert.Equal(t, []string{}, la.EmotionalLanguage.FearWords)
}

func TestFallbackAnalysis_TruncatesLists(t *testing.T) {
	la := FallbackAnalysis(strings.Repeat("afraid ", 8))
	assert.Len(t, la.EmotionalLanguage.FearWords, 5)
	assert.Equal(t, 8, la.EmotionalLanguage.TotalEmotionalWords)
}

func TestFallbackSatisfiesSchema(t *testing.T) {
	// the fallback must be interchangeable with a model answer
	for _, text := range []string{"", "I am hopeless", strings.Repeat("calm and relaxed ", 30)} {
		la := FallbackAnalysis(text)
		b, err := json.Marshal(la)
		require.NoError(t, err)
		_, err = ParseLanguageAnalysis(string(b))
		assert.NoError(t, err, text)
	}
}

func TestContentDensityAndConfidence(t *testing.T) {
	assert.Zero(t, ContentDensity(nil, 0))
	assert.Zero(t, TranscriptConfidence(nil))
	assert.Equal(t, 100.0, ContentDensity([]Segment{{Start: 0, End: 5}}, 5))
	assert.Equal(t, 50.0, TranscriptConfidence([]Segment{{NoSpeechProb: 0.5}}))
	// out of range probabilities are clamped
	assert.Equal(t, 100.0, TranscriptConfidence([]Segment{{NoSpeechProb: -1}}))
}
