package report

import (
	"fmt"
	"math"
	"time"
)

// Session types.
const (
	TypeTherapistLed = "therapist-led"
	TypeSimulation   = "simulation"
	TypeScenario     = "scenario"
	TypeUnknown      = "unknown"
)

const dateLayout = "2006-01-02 15:04:05"

// SessionType classifies a regular session by its number of raw clips.
func SessionType(rawClips int) string {
	switch {
	case rawClips >= 2:
		return TypeTherapistLed
	case rawClips == 1:
		return TypeSimulation
	}
	return TypeUnknown
}

// NewMetadata builds the metadata block. scenarioID is empty for regular
// sessions.
func NewMetadata(sessionID string, rawClips int, scenarioID string, createdAt time.Time, durationSec float64) SessionMetadata {
	durationSec = math.Max(0, durationSec)
	m := SessionMetadata{
		SessionID:              sessionID,
		SessionType:            SessionType(rawClips),
		SessionDate:            createdAt.Local().Format(dateLayout),
		SessionDuration:        FormatDuration(durationSec),
		SessionDurationSeconds: round2(durationSec),
	}
	if scenarioID != "" {
		m.SessionType = TypeScenario
		m.ScenarioID = scenarioID
	}
	return m
}

// FormatDuration renders whole seconds as "1h 2m 3s", "2m 3s" or "3s".
func FormatDuration(sec float64) string {
	total := int(math.Max(0, sec))
	h, m, s := total/3600, total%3600/60, total%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func clampPct(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
