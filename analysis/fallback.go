package analysis

import (
	"fmt"
	"strings"
)

const fallbackListLimit = 5

var (
	fearKeywords       = []string{"afraid", "scared", "anxious", "worry", "fear", "nervous", "terrified"}
	stressKeywords     = []string{"stress", "overwhelmed", "pressure", "tense", "exhausted", "burnout"}
	confidenceKeywords = []string{"confident", "capable", "strong", "able", "succeed", "achieve"}
	calmKeywords       = []string{"calm", "peaceful", "relaxed", "comfortable", "ease", "serene"}
	crisisKeywords     = []string{"suicide", "kill myself", "end it", "hopeless", "worthless", "give up"}
	hopelessKeywords   = []string{"hopeless", "worthless"}
)

// FallbackAnalysis is the deterministic keyword-matching substitute for the
// language model. Its result satisfies the same contract.
func FallbackAnalysis(transcript string) LanguageAnalysis {
	words := Tokenize(transcript)

	fear := matchWords(words, fearKeywords)
	stress := matchWords(words, stressKeywords)
	confident := matchWords(words, confidenceKeywords)
	calm := matchWords(words, calmKeywords)
	crisis := matchWords(words, crisisKeywords)

	positive := len(confident) + len(calm)
	negative := len(fear) + len(stress)
	sentiment := "neutral"
	switch {
	case positive > negative:
		sentiment = "positive"
	case negative > positive:
		sentiment = "negative"
	}

	risk := "none"
	if len(crisis) > 0 {
		risk = "high"
	}

	strengths := []string{}
	if len(words) > 50 {
		strengths = []string{"Engaged in session", "Completed full session"}
	}

	return LanguageAnalysis{
		SentimentTrend: SentimentTrend{Overall: sentiment, Trajectory: "stable", Confidence: 60},
		EmotionalLanguage: EmotionalLanguage{
			FearWords:           limit(fear),
			StressWords:         limit(stress),
			ConfidenceWords:     limit(confident),
			CalmWords:           limit(calm),
			TotalEmotionalWords: positive + negative,
		},
		CognitiveDistortions: []CognitiveDistortion{},
		CrisisIndicators: CrisisIndicators{
			SelfHarmReferences:   len(crisis) > 0,
			HopelessnessLanguage: len(matchWords(words, hopelessKeywords)) > 0,
			CrisisKeywordsFound:  crisis,
			RiskLevel:            risk,
		},
		ObservationalSummary: fmt.Sprintf("Session transcript contains %d words with %s sentiment overall.", len(words), sentiment),
		StrengthIndicators:   strengths,
	}
}

// matchWords returns every occurrence of a keyword in transcript order.
// Multi-word keywords match consecutive tokens.
func matchWords(words, keywords []string) []string {
	found := []string{}
	for i := range words {
		for _, k := range keywords {
			parts := strings.Fields(k)
			if i+len(parts) > len(words) {
				continue
			}
			if equalTokens(words[i:i+len(parts)], parts) {
				found = append(found, k)
				break
			}
		}
	}
	return found
}

func equalTokens(a, b []string) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func limit(s []string) []string {
	if len(s) > fallbackListLimit {
		return s[:fallbackListLimit]
	}
	return s
}
