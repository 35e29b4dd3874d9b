// Package conf loads tubescribe settings from a config file, the environment
// and an optional .env file.
package conf

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/sjzar/tubescribe/internal/errors"
)

const (
	EnvPrefix      = "TUBESCRIBE"
	ConfigName     = "config"
	ConfigDirName  = ".tubescribe"
	DefaultHTTP    = "127.0.0.1:5031"
	DefaultChunkMS = 60000
)

type Config struct {
	ConfigFile    string       `mapstructure:"-" json:"-"`
	WorkDir       string       `mapstructure:"work_dir" json:"work_dir"`
	TmpDir        string       `mapstructure:"tmp_dir" json:"tmp_dir"`
	ChunkLengthMS int64        `mapstructure:"chunk_length_ms" json:"chunk_length_ms"`
	Workers       int          `mapstructure:"workers" json:"workers"`
	Speech        SpeechConfig `mapstructure:"speech" json:"speech"`
	Fetch         FetchConfig  `mapstructure:"fetch" json:"fetch"`
	HTTP          HTTPConfig   `mapstructure:"http" json:"http"`
	Index         IndexConfig  `mapstructure:"index" json:"index"`
	Watch         WatchConfig  `mapstructure:"watch" json:"watch"`
}

type FetchConfig struct {
	YTDLPPath   string `mapstructure:"ytdlp_path" json:"ytdlp_path"`
	AudioFormat string `mapstructure:"audio_format" json:"audio_format"`
	FFmpegPath  string `mapstructure:"ffmpeg_path" json:"ffmpeg_path"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

type IndexConfig struct {
	// Path of the bleve index; "" disables transcript indexing.
	Path string `mapstructure:"path" json:"path"`
}

type WatchConfig struct {
	Inbox    string        `mapstructure:"inbox" json:"inbox"`
	Debounce time.Duration `mapstructure:"debounce" json:"debounce"`
}

// ChunkLength returns the configured chunk length.
func (c *Config) ChunkLength() time.Duration {
	return time.Duration(c.ChunkLengthMS) * time.Millisecond
}

func (c *Config) Validate() error {
	if c.ChunkLengthMS <= 0 {
		return errors.InvalidArg("chunk_length_ms")
	}
	if c.Workers < 1 {
		return errors.InvalidArg("workers")
	}
	if strings.TrimSpace(c.WorkDir) == "" {
		return errors.InvalidArg("work_dir")
	}
	return nil
}

// DefaultDir is $HOME/.tubescribe, or ./.tubescribe when HOME is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ConfigDirName
	}
	return filepath.Join(home, ConfigDirName)
}

func setDefaults(v *viper.Viper) {
	dir := DefaultDir()
	v.SetDefault("work_dir", ".")
	v.SetDefault("tmp_dir", "")
	v.SetDefault("chunk_length_ms", DefaultChunkMS)
	v.SetDefault("workers", 1)

	v.SetDefault("speech.backend", "remote")
	v.SetDefault("speech.model", "small")
	v.SetDefault("speech.model_dir", filepath.Join(dir, "models"))
	v.SetDefault("speech.device", "auto")
	v.SetDefault("speech.threads", 0)
	v.SetDefault("speech.language", "")
	v.SetDefault("speech.initial_prompt", "")
	v.SetDefault("speech.api_key", "")
	v.SetDefault("speech.base_url", "")
	v.SetDefault("speech.remote_model", "whisper-1")
	v.SetDefault("speech.request_timeout_seconds", 600)

	v.SetDefault("fetch.ytdlp_path", "yt-dlp")
	v.SetDefault("fetch.audio_format", "mp3")
	v.SetDefault("fetch.ffmpeg_path", "ffmpeg")

	v.SetDefault("http.addr", DefaultHTTP)
	v.SetDefault("index.path", filepath.Join(dir, "index.bleve"))
	v.SetDefault("watch.inbox", "")
	v.SetDefault("watch.debounce", "2s")
}

// LoadEnv reads KEY=value pairs from the .env files into the process
// environment without overriding variables already set. Missing files are
// ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
		log.Debug().Str("file", f).Msg("loaded env file")
	}
	return nil
}

// New returns a viper instance with defaults and environment bindings. An
// empty path searches $HOME/.tubescribe and the working directory for
// config.yaml.
func New(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("speech.api_key", EnvPrefix+"_SPEECH_API_KEY", "OPENAI_API_KEY")
	return v
}

// Load reads the configuration. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := New(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.New(errors.ErrInput, err, "read config")
		}
	}
	return Decode(v)
}

// Decode unmarshals v into a validated Config.
func Decode(v *viper.Viper) (*Config, error) {
	var c Config
	hook := mapstructure.ComposeDecodeHookFunc(
		trimStringsHook(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&c, viper.DecodeHook(hook)); err != nil {
		return nil, errors.New(errors.ErrInput, err, "decode config")
	}
	c.ConfigFile = v.ConfigFileUsed()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.ConfigFile != "" {
		log.Debug().Str("file", c.ConfigFile).Msg("config loaded")
	}
	return &c, nil
}

func trimStringsHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.String {
			return data, nil
		}
		return strings.TrimSpace(reflect.ValueOf(data).String()), nil
	}
}

func (c *Config) GetHTTPAddr() string {
	if c.HTTP.Addr == "" {
		return DefaultHTTP
	}
	return c.HTTP.Addr
}

func (c *Config) SetHTTPAddr(addr string) {
	c.HTTP.Addr = addr
}
