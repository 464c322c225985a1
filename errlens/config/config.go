package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/errlens/errlens/errlens"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Models  ModelsConfig  `mapstructure:"models"`
	Session SessionConfig `mapstructure:"session"`
	Voice   VoiceConfig   `mapstructure:"voice"`
}

// ModelsConfig stores paths and runtime settings for the on-device models.
type ModelsConfig struct {
	ChatModelPath      string  `mapstructure:"chat_model_path"`
	VisionModelPath    string  `mapstructure:"vision_model_path"`
	WhisperModelPath   string  `mapstructure:"whisper_model_path"`
	SynthesisVoice     string  `mapstructure:"synthesis_voice"`
	ContextSize        int     `mapstructure:"context_size"`
	GPULayers          int     `mapstructure:"gpu_layers"`
	Threads            int     `mapstructure:"threads"`
	MaxNewTokens       int     `mapstructure:"max_new_tokens"`
	Temperature        float32 `mapstructure:"temperature"`
	TopP               float32 `mapstructure:"top_p"`
	LoadTimeoutSeconds int     `mapstructure:"load_timeout_seconds"`
}

// SessionConfig stores controller-level settings.
type SessionConfig struct {
	EnableTracing bool   `mapstructure:"enable_tracing"`
	ArchiveDSN    string `mapstructure:"archive_dsn"` // empty disables the transcript archive
	ExportLocale  string `mapstructure:"export_locale"`
}

// VoiceConfig stores audio capture and activity detection settings.
type VoiceConfig struct {
	SampleRate        int           `mapstructure:"sample_rate"`
	FrameSize         int           `mapstructure:"frame_size"`
	MinSegmentSamples int           `mapstructure:"min_segment_samples"`
	NoiseFloorFactor  float64       `mapstructure:"noise_floor_factor"` // threshold = mean + factor*stddev of recent frame RMS
	HangoverFrames    int           `mapstructure:"hangover_frames"`    // silent frames before speech-ended fires
	MaxCapture        time.Duration `mapstructure:"max_capture"`
	SpeakResponses    bool          `mapstructure:"speak_responses"`
}

// LoadTimeout returns the model load timeout as a duration.
func (m ModelsConfig) LoadTimeout() time.Duration {
	return time.Duration(m.LoadTimeoutSeconds) * time.Second
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Model defaults: small on-device GGUF chat model, whisper base for STT.
	viper.SetDefault("models.chat_model_path", "models/gguf/qwen3-1_7b-instruct.gguf")
	viper.SetDefault("models.vision_model_path", "models/gguf/llava-phi-3-mini.gguf")
	viper.SetDefault("models.whisper_model_path", "models/ggml-base.en.bin")
	viper.SetDefault("models.synthesis_voice", "en")
	viper.SetDefault("models.context_size", 4096)
	viper.SetDefault("models.gpu_layers", 0)
	viper.SetDefault("models.threads", 4)
	viper.SetDefault("models.max_new_tokens", 512)
	viper.SetDefault("models.temperature", 0.3)
	viper.SetDefault("models.top_p", 0.9)
	viper.SetDefault("models.load_timeout_seconds", 120)

	// Session defaults
	viper.SetDefault("session.enable_tracing", true)
	viper.SetDefault("session.archive_dsn", internal.DefaultArchiveDSN)
	viper.SetDefault("session.export_locale", "en-US")

	// Voice defaults: 16 kHz mono capture, 100 ms minimum speech segment.
	viper.SetDefault("voice.sample_rate", 16000)
	viper.SetDefault("voice.frame_size", 320) // 20ms at 16 kHz
	viper.SetDefault("voice.min_segment_samples", 1600)
	viper.SetDefault("voice.noise_floor_factor", 2.5)
	viper.SetDefault("voice.hangover_frames", 30) // 600ms
	viper.SetDefault("voice.max_capture", "15s")
	viper.SetDefault("voice.speak_responses", true)

	viper.SetEnvPrefix(strings.ToUpper(internal.DefaultAppName))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime faults deep inside the orchestrators.
func (c *Config) Validate() error {
	if c.Voice.SampleRate <= 0 {
		return fmt.Errorf("voice.sample_rate must be positive, got %d", c.Voice.SampleRate)
	}
	if c.Voice.FrameSize <= 0 {
		return fmt.Errorf("voice.frame_size must be positive, got %d", c.Voice.FrameSize)
	}
	if c.Voice.MinSegmentSamples < 0 {
		return fmt.Errorf("voice.min_segment_samples cannot be negative, got %d", c.Voice.MinSegmentSamples)
	}
	if c.Models.ContextSize <= 0 {
		return fmt.Errorf("models.context_size must be positive, got %d", c.Models.ContextSize)
	}
	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		return fmt.Errorf("models.temperature must be between 0 and 2, got %f", c.Models.Temperature)
	}
	if c.Models.TopP < 0 || c.Models.TopP > 1 {
		return fmt.Errorf("models.top_p must be between 0 and 1, got %f", c.Models.TopP)
	}
	return nil
}
