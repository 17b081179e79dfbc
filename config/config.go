package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Service struct {
	URL     string `yaml:"url" validate:"omitempty,url"`
	Timeout int    `yaml:"timeout" validate:"gte=0"` // seconds
}

type Services struct {
	ASR     Service `yaml:"asr"`
	Emotion Service `yaml:"emotion"` // facial-emotion classifier
}

type LLM struct {
	BaseURL     string  `yaml:"base_url" validate:"required,url"`
	Model       string  `yaml:"model" validate:"required"`
	APIKey      string  `yaml:"api_key"`
	Timeout     int     `yaml:"timeout" validate:"gte=0"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gte=0"`
	Referer     string  `yaml:"referer"`
	Title       string  `yaml:"title"`
}

type Audio struct {
	SampleRate       int  `yaml:"sample_rate" validate:"gt=0"`
	Channels         int  `yaml:"channels" validate:"gt=0"`
	AcousticFeatures bool `yaml:"acoustic_features"`
}

type Video struct {
	FrameStride int    `yaml:"frame_stride" validate:"gte=1"`
	Workers     int    `yaml:"workers" validate:"gte=1"`
	Codec       string `yaml:"codec" validate:"required"`
	CRF         int    `yaml:"crf" validate:"gte=0,lte=51"`
	Preset      string `yaml:"preset"`
}

type Media struct {
	FFmpeg  string `yaml:"ffmpeg" validate:"required"`
	FFprobe string `yaml:"ffprobe" validate:"required"`
	Timeout int    `yaml:"timeout" validate:"gte=0"`
}

type Status struct {
	Backend   string `yaml:"backend" validate:"oneof=file redis"`
	RedisAddr string `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB   int    `yaml:"redis_db" validate:"gte=0"`
}

type Root struct {
	Pipeline struct {
		Name      string `yaml:"name"`
		Version   string `yaml:"version"`
		LogLvl    string `yaml:"log_level" validate:"oneof=trace debug info warn warning error"`
		LogFormat string `yaml:"log_format" validate:"oneof=text json"`
	} `yaml:"pipeline"`
	Audio    Audio    `yaml:"audio"`
	Video    Video    `yaml:"video"`
	Media    Media    `yaml:"media"`
	Services Services `yaml:"services"`
	LLM      LLM      `yaml:"llm"`
	Status   Status   `yaml:"status"`
	Paths    struct {
		Storage string `yaml:"storage" validate:"required"`
		Scratch string `yaml:"scratch"`
	} `yaml:"paths"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Root {
	c := &Root{}
	c.Pipeline.Name = "session-insights"
	c.Pipeline.Version = "0.1.0"
	c.Pipeline.LogLvl = "info"
	c.Pipeline.LogFormat = "text"
	c.Audio = Audio{SampleRate: 16000, Channels: 1, AcousticFeatures: true}
	c.Video = Video{FrameStride: 30, Workers: 2, Codec: "libx264", CRF: 23, Preset: "veryfast"}
	c.Media = Media{FFmpeg: "ffmpeg", FFprobe: "ffprobe", Timeout: 600}
	c.Services = Services{
		ASR:     Service{URL: "http://localhost:8001", Timeout: 300},
		Emotion: Service{URL: "http://localhost:8002", Timeout: 20},
	}
	c.LLM = LLM{
		BaseURL:     "https://openrouter.ai/api/v1",
		Model:       "anthropic/claude-3.5-sonnet",
		Timeout:     30,
		Temperature: 0.3,
		MaxTokens:   2000,
		Referer:     "http://localhost:8000",
		Title:       "AVC Therapy Analysis",
	}
	c.Status = Status{Backend: "file"}
	c.Paths.Storage = "storage"
	return c
}

// Load reads the YAML config named by the "config" key of v (or the first
// file found on the CONFIG_ENV search path), then applies .env, environment
// and flag overrides through v and validates the result.
func Load(v *viper.Viper) (*Root, error) {
	cfg := Default()

	path := v.GetString("config")
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}

	// a missing .env is the normal case outside development
	_ = godotenv.Load()

	v.SetEnvPrefix("SI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "SI_LLM_API_KEY", "OPENROUTER_API_KEY")
	applyOverrides(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Root) error {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode config %s: %w", path, err)
		}
		return nil
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	guess := []string{
		filepath.Join("config", env, "config.yaml"),
		filepath.Join("config", "config.yaml"),
	}
	for _, p := range guess {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode config %s: %w", p, err)
		}
		return nil
	}
	return nil
}

func applyOverrides(v *viper.Viper, c *Root) {
	keys := map[string]any{
		"pipeline.log_level":      &c.Pipeline.LogLvl,
		"pipeline.log_format":     &c.Pipeline.LogFormat,
		"paths.storage":           &c.Paths.Storage,
		"paths.scratch":           &c.Paths.Scratch,
		"services.asr.url":        &c.Services.ASR.URL,
		"services.emotion.url":    &c.Services.Emotion.URL,
		"llm.base_url":            &c.LLM.BaseURL,
		"llm.model":               &c.LLM.Model,
		"llm.api_key":             &c.LLM.APIKey,
		"llm.timeout":             &c.LLM.Timeout,
		"audio.acoustic_features": &c.Audio.AcousticFeatures,
		"video.frame_stride":      &c.Video.FrameStride,
		"video.workers":           &c.Video.Workers,
		"media.ffmpeg":            &c.Media.FFmpeg,
		"media.ffprobe":           &c.Media.FFprobe,
		"status.backend":          &c.Status.Backend,
		"status.redis_addr":       &c.Status.RedisAddr,
		"status.redis_db":         &c.Status.RedisDB,
	}
	for key, dst := range keys {
		if !v.IsSet(key) {
			continue
		}
		switch p := dst.(type) {
		case *string:
			*p = v.GetString(key)
		case *int:
			*p = v.GetInt(key)
		case *bool:
			*p = v.GetBool(key)
		}
	}
}

// Validate checks struct constraints.
func (c *Root) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
