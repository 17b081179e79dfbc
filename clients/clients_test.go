package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maastricht-university/session-insights/config"
)

func TestASR_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transcribe", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "true", r.FormValue("word_timestamps"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "full_audio.wav", hdr.Filename)
		assert.Equal(t, "RIFF", string(body))

		_, _ = io.WriteString(w, `{
			"text": " hello there ",
			"language": "en",
			"segments": [
				{"start": 0, "end": 1.5, "text": "hello", "no_speech_prob": 0.1},
				{"start": 2, "end": 3, "text": "there"}
			]
		}`)
	}))
	defer srv.Close()

	wav := filepath.Join(t.TempDir(), "full_audio.wav")
	require.NoError(t, os.WriteFile(wav, []byte("RIFF"), 0o644))

	tr, err := NewASR(srv.URL+"/", time.Second).Transcribe(context.Background(), wav)
	require.NoError(t, err)
	assert.Equal(t, "hello there", tr.Text)
	assert.Equal(t, "en", tr.Language)
	require.Len(t, tr.Segments, 2)
	assert.Equal(t, 0.1, tr.Segments[0].NoSpeechProb)
	assert.Equal(t, 0.5, tr.Segments[1].NoSpeechProb)
	assert.Equal(t, 1.5, tr.Segments[0].End)
}

func TestASR_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	wav := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(wav, []byte("RIFF"), 0o644))

	_, err := NewASR(srv.URL, time.Second).Transcribe(context.Background(), wav)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestFaceEmotion_Classify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "false", r.FormValue("enforce_detection"))
		_, _, err := r.FormFile("image")
		require.NoError(t, err)

		_, _ = io.WriteString(w, `[
			{"dominant_emotion": "Happy", "emotion": {"happy": 92.5, "neutral": 7.5}},
			{"dominant_emotion": "", "emotion": {}}
		]`)
	}))
	defer srv.Close()

	faces, err := NewFaceEmotion(srv.URL, time.Second).Classify(context.Background(), []byte{0xff, 0xd8})
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Equal(t, "happy", faces[0].DominantEmotion)
	assert.InDelta(t, 0.925, faces[0].Scores["happy"], 1e-9)
	assert.InDelta(t, 0.075, faces[0].Scores["neutral"], 1e-9)
}

func TestNormalizeScores(t *testing.T) {
	assert.Equal(t, map[string]float64{"sad": 0.4, "fear": 0.6}, normalizeScores(map[string]float64{"sad": 0.4, "fear": 0.6}))
	assert.Equal(t, map[string]float64{"sad": 0.5}, normalizeScores(map[string]float64{"Sad": 50}))
	assert.Empty(t, normalizeScores(nil))
}

func TestLLM_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "session-insights", r.Header.Get("X-Title"))

		var req chatReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test/model", req.Model)
		assert.Equal(t, 0.3, req.Temperature)
		assert.Equal(t, 2000, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "analyze this", req.Messages[0].Content)

		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`)
	}))
	defer srv.Close()

	llm := NewLLM(config.LLM{
		BaseURL: srv.URL, Model: "test/model", APIKey: "sk-test",
		Timeout: 5, Temperature: 0.3, MaxTokens: 2000, Title: "session-insights",
	})
	out, err := llm.Complete(context.Background(), "analyze this")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
}

func TestLLM_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := NewLLM(config.LLM{BaseURL: srv.URL, Model: "m"}).Complete(context.Background(), "x")
	assert.ErrorIs(t, err, errEmptyCompletion)
}

func TestLLM_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewLLM(config.LLM{BaseURL: srv.URL, Model: "m", Timeout: 5}).Complete(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
