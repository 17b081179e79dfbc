package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/maastricht-university/session-insights/config"
)

var errEmptyCompletion = errors.New("llm: response has no choices")

// --- Chat completions (/chat/completions) ---
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResp struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// LLM is an OpenRouter-compatible chat-completions client.
type LLM struct {
	http *HTTP
	cfg  config.LLM
}

func NewLLM(c config.LLM) *LLM {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return &LLM{http: NewHTTP(config.DurSeconds(c.Timeout)), cfg: c}
}

// Complete sends prompt as a single user message and returns the content of
// the first choice.
func (l *LLM) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatReq{
		Model:       l.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: l.cfg.Temperature,
		MaxTokens:   l.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.cfg.APIKey)
	if l.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", l.cfg.Referer)
	}
	if l.cfg.Title != "" {
		req.Header.Set("X-Title", l.cfg.Title)
	}

	var out chatResp
	if err := l.http.do(req, "llm", &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return out.Choices[0].Message.Content, nil
}
