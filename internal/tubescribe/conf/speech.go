package conf

import (
	"strings"
	"time"

	"github.com/sjzar/tubescribe/internal/speech"
)

// SpeechConfig controls the transcription backend.
type SpeechConfig struct {
	Backend               speech.Kind      `mapstructure:"backend" json:"backend"`
	Model                 speech.ModelSize `mapstructure:"model" json:"model"`
	ModelDir              string           `mapstructure:"model_dir" json:"model_dir"`
	Device                speech.Device    `mapstructure:"device" json:"device"`
	Threads               int              `mapstructure:"threads" json:"threads"`
	Language              string           `mapstructure:"language" json:"language"`
	InitialPrompt         string           `mapstructure:"initial_prompt" json:"initial_prompt"`
	APIKey                string           `mapstructure:"api_key" json:"-"`
	BaseURL               string           `mapstructure:"base_url" json:"base_url"`
	RemoteModel           string           `mapstructure:"remote_model" json:"remote_model"`
	RequestTimeoutSeconds int              `mapstructure:"request_timeout_seconds" json:"request_timeout_seconds"`
}

// ToOptions converts the speech config into per-request options.
func (c *SpeechConfig) ToOptions() speech.Options {
	var opts speech.Options
	if c == nil {
		return opts
	}
	opts.Language = strings.TrimSpace(c.Language)
	opts.Prompt = strings.TrimSpace(c.InitialPrompt)
	if c.Threads > 0 {
		opts.Threads = c.Threads
	}
	return opts
}

// BackendConfig builds the selector input for kind. The model size is taken
// from the config unless model is set.
func (c *SpeechConfig) BackendConfig(kind speech.Kind, model speech.ModelSize) speech.Config {
	if model == "" {
		model = c.Model
	}
	cfg := speech.Config{
		Kind:        kind,
		Options:     c.ToOptions(),
		APIKey:      strings.TrimSpace(c.APIKey),
		BaseURL:     strings.TrimSpace(c.BaseURL),
		RemoteModel: strings.TrimSpace(c.RemoteModel),
		Model:       model,
		ModelDir:    c.ModelDir,
		Device:      c.Device,
	}
	if c.RequestTimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(c.RequestTimeoutSeconds) * time.Second
	}
	return cfg
}
