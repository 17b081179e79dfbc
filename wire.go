package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/session-insights/acoustic"
	"github.com/maastricht-university/session-insights/analysis"
	"github.com/maastricht-university/session-insights/clients"
	cfg "github.com/maastricht-university/session-insights/config"
	"github.com/maastricht-university/session-insights/media"
	"github.com/maastricht-university/session-insights/orchestrator"
)

// buildPipeline constructs every analyzer once and injects them. The
// returned func releases the status backend.
func buildPipeline(ctx context.Context, c *cfg.Root, l *logrus.Logger) (*orchestrator.Pipeline, func(), error) {
	log := logrus.NewEntry(l)
	layout := orchestrator.Layout{Root: c.Paths.Storage}

	store, closeFn, err := newStatusStore(ctx, c, layout)
	if err != nil {
		return nil, nil, err
	}

	tool := media.NewTool(c, log)
	an := orchestrator.Analyzers{
		Media:    tool,
		Speech:   newSpeechAnalyzer(c, log),
		Semantic: analysis.NewSemanticAnalyzer(newCompleter(c, log), cfg.DurSeconds(c.LLM.Timeout), log),
		Facial:   newFacialAnalyzer(c, tool, log),
	}
	return orchestrator.NewPipeline(layout, store, an, c.Video.Workers, log), closeFn, nil
}

func newStatusStore(ctx context.Context, c *cfg.Root, layout orchestrator.Layout) (orchestrator.StatusStore, func(), error) {
	if c.Status.Backend != "redis" {
		return orchestrator.NewFileStatusStore(layout), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: c.Status.RedisAddr, DB: c.Status.RedisDB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis status backend %s: %w", c.Status.RedisAddr, err)
	}
	return orchestrator.NewRedisStatusStore(rdb), func() { _ = rdb.Close() }, nil
}

func newSpeechAnalyzer(c *cfg.Root, log *logrus.Entry) *analysis.SpeechAnalyzer {
	var asr analysis.Transcriber
	if c.Services.ASR.URL != "" {
		asr = clients.NewASR(c.Services.ASR.URL, cfg.DurSeconds(c.Services.ASR.Timeout))
	}
	var extractor analysis.AcousticExtractor
	if c.Audio.AcousticFeatures {
		extractor = acoustic.NewExtractor()
	}
	return analysis.NewSpeechAnalyzer(asr, extractor, log)
}

// newCompleter returns nil without an API key so the semantic analyzer goes
// straight to the keyword fallback.
func newCompleter(c *cfg.Root, log *logrus.Entry) analysis.Completer {
	if c.LLM.APIKey == "" {
		log.Warn("no LLM API key configured, transcript analysis will use keyword fallback")
		return nil
	}
	return clients.NewLLM(c.LLM)
}

func newFacialAnalyzer(c *cfg.Root, tool *media.Tool, log *logrus.Entry) *analysis.FacialAnalyzer {
	var classifier analysis.EmotionClassifier
	if c.Services.Emotion.URL != "" {
		classifier = clients.NewFaceEmotion(c.Services.Emotion.URL, cfg.DurSeconds(c.Services.Emotion.Timeout))
	}
	return analysis.NewFacialAnalyzer(tool.Frames(c.Paths.Scratch), classifier, c.Video.FrameStride, log)
}
