// Package config loads settings from defaults, an optional config.yml, a .env
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"audioscribe/gemini"
	"audioscribe/localstore"
	"audioscribe/logging"
	"audioscribe/openai"
	"audioscribe/speech"
)

// EnvPrefix is prepended to every setting's environment variable.
const EnvPrefix = "AUDIOSCRIBE"

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config is the full application configuration.
type Config struct {
	Provider       string         `mapstructure:"provider" validate:"oneof=gemini openai"`
	Model          string         `mapstructure:"model" validate:"required"`
	Gemini         GeminiConfig   `mapstructure:"gemini"`
	OpenAI         OpenAIConfig   `mapstructure:"openai"`
	StateFile      string         `mapstructure:"state_file" validate:"required"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout" validate:"gt=0"`
	Log            LogConfig      `mapstructure:"log"`
	Recorder       RecorderConfig `mapstructure:"recorder"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

// OpenAIConfig configures the OpenAI-compatible backend.
type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url" validate:"omitempty,url"`
	Model              string `mapstructure:"model"`
	TranscriptionModel string `mapstructure:"transcription_model"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
	File   string `mapstructure:"file"`
}

// RecorderConfig configures the ffmpeg microphone recorder.
type RecorderConfig struct {
	FFmpeg      string `mapstructure:"ffmpeg"`
	InputFormat string `mapstructure:"input_format"`
	InputDevice string `mapstructure:"input_device"`
}

// Logging converts the log settings for logging.Init.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		File:   c.Log.File,
	}
}

// SpeechModel is the model name passed with each request.
func (c *Config) SpeechModel() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAI.Model
	}
	return c.Model
}

// APIKey returns the key for the selected provider.
func (c *Config) APIKey() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAI.APIKey
	}
	return c.Gemini.APIKey
}

// LoadOptions overrides file discovery.
type LoadOptions struct {
	ConfigFile string // explicit config file; searched for when empty
	EnvFile    string // explicit .env file; ".env" when empty
}

// Load reads the configuration. It does not validate it.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		// godotenv.Load never overrides variables that are already set
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	} else if opts.EnvFile != "" {
		return nil, fmt.Errorf("env file %s: %w", opts.EnvFile, err)
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "audioscribe"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	statePath, err := localstore.DefaultPath()
	if err != nil {
		statePath = localstore.FileName
	}
	logDefaults := logging.DefaultConfig()

	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model", speech.DefaultModel)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", openai.DefaultModel)
	v.SetDefault("openai.transcription_model", openai.DefaultTranscriptionModel)
	v.SetDefault("state_file", statePath)
	v.SetDefault("request_timeout", 2*time.Minute)
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.format", logDefaults.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("recorder.ffmpeg", "ffmpeg")
	v.SetDefault("recorder.input_format", "")
	v.SetDefault("recorder.input_device", "")
}

// bindEnv adds the conventional unprefixed variables as fallbacks.
func bindEnv(v *viper.Viper) error {
	geminiKeys := append([]string{"gemini.api_key", EnvPrefix + "_GEMINI_API_KEY"}, gemini.EnvKeys...)
	bindings := [][]string{
		geminiKeys,
		{"openai.api_key", EnvPrefix + "_OPENAI_API_KEY", "OPENAI_API_KEY"},
		{"openai.base_url", EnvPrefix + "_OPENAI_BASE_URL", "OPENAI_BASE_URL"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

// GetAPIKeyHelp returns setup instructions for provider's API key.
func GetAPIKeyHelp(provider string) string {
	if provider == ProviderOpenAI {
		return `To use an OpenAI-compatible API for transcription, you need an API key.

1. Go to https://platform.openai.com/api-keys
2. Create a new secret key
3. Set the environment variable:

   export OPENAI_API_KEY="sk-..."
   export AUDIOSCRIBE_PROVIDER=openai

For a self-hosted server, also set OPENAI_BASE_URL (e.g. http://localhost:8000/v1).`
	}
	return gemini.GetAPIKeyHelp()
}
