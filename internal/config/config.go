package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all AgriTool configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Weather  WeatherConfig  `yaml:"weather"`
	Geo      GeoConfig      `yaml:"geo"`
	Speech   SpeechConfig   `yaml:"speech"`
	Session  SessionConfig  `yaml:"session"`
	Jobs     JobsConfig     `yaml:"jobs"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
	Notion   NotionConfig   `yaml:"notion"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string   `yaml:"port"`
	ReadTimeout  string   `yaml:"read_timeout"`
	WriteTimeout string   `yaml:"write_timeout"`
	IdleTimeout  string   `yaml:"idle_timeout"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
	CORSOrigins  []string `yaml:"cors_origins"`
}

// StorageConfig selects where record files live.
type StorageConfig struct {
	Backend string `yaml:"backend"` // local or gcs
	Dir     string `yaml:"dir"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
}

// GeminiConfig configures the generative model and speech models.
type GeminiConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	TTSModel string `yaml:"tts_model"`
	STTModel string `yaml:"stt_model"`
	Voice    string `yaml:"voice"`
	Timeout  string `yaml:"timeout"`
}

// WeatherConfig configures the weatherapi.com client.
type WeatherConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Timeout      string `yaml:"timeout"`
	ForecastDays int    `yaml:"forecast_days"`
}

// GeoConfig configures IP geolocation.
type GeoConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// SpeechConfig bounds voice capture.
type SpeechConfig struct {
	ListenTimeout string `yaml:"listen_timeout"`
	PhraseLimit   string `yaml:"phrase_limit"`
	MaxAudioBytes int64  `yaml:"max_audio_bytes"`
}

// SessionConfig configures the session cookie and expiry.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	TTL        string `yaml:"ttl"`
	Secure     bool   `yaml:"secure"`
}

// JobsConfig sizes the background speech synthesis queue.
type JobsConfig struct {
	BufferSize int `yaml:"buffer_size"`
	Workers    int `yaml:"workers"`
	MaxRetries int `yaml:"max_retries"`
}

// BigQueryConfig configures the ledger export.
type BigQueryConfig struct {
	ProjectID string `yaml:"project_id"`
	Dataset   string `yaml:"dataset"`
	Table     string `yaml:"table"`
}

// NotionConfig configures the ledger mirror.
type NotionConfig struct {
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"database_id"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  "15s",
			WriteTimeout: "90s",
			IdleTimeout:  "60s",
			MaxBodyBytes: 10 << 20,
			CORSOrigins:  []string{"http://localhost:3000"},
		},
		Storage: StorageConfig{
			Backend: "local",
			Dir:     "data",
		},
		Gemini: GeminiConfig{
			Model:    "gemini-2.5-flash",
			TTSModel: "gemini-2.5-flash-preview-tts",
			STTModel: "gemini-2.5-flash",
			Voice:    "Kore",
			Timeout:  "60s",
		},
		Weather: WeatherConfig{
			BaseURL:      "https://api.weatherapi.com/v1",
			Timeout:      "10s",
			ForecastDays: 3,
		},
		Geo: GeoConfig{
			Enabled: true,
			BaseURL: "https://ipinfo.io",
			Timeout: "5s",
		},
		Speech: SpeechConfig{
			ListenTimeout: "3s",
			PhraseLimit:   "6s",
			MaxAudioBytes: 2 << 20,
		},
		Session: SessionConfig{
			CookieName: "agritool_session",
			TTL:        "12h",
		},
		Jobs: JobsConfig{
			BufferSize: 100,
			Workers:    2,
			MaxRetries: 2,
		},
		BigQuery: BigQueryConfig{
			Dataset: "agritool",
			Table:   "ledger",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
			// defaults
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "local":
		if c.Storage.Dir == "" {
			return fmt.Errorf("config: storage.dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config: storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Weather.ForecastDays < 1 || c.Weather.ForecastDays > 14 {
		return fmt.Errorf("config: weather.forecast_days must be between 1 and 14")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Gemini.APIKey = key
	}
	if key := os.Getenv("WEATHERAPI_KEY"); key != "" {
		c.Weather.APIKey = key
	}
	if dir := os.Getenv("AGRITOOL_DATA_DIR"); dir != "" {
		c.Storage.Dir = dir
	}
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		c.Storage.Backend = "gcs"
		c.Storage.Bucket = bucket
	}
	if token := os.Getenv("NOTION_TOKEN"); token != "" {
		c.Notion.Token = token
	}
	if id := os.Getenv("NOTION_DATABASE_ID"); id != "" {
		c.Notion.DatabaseID = id
	}
	if project := os.Getenv("BQ_PROJECT"); project != "" {
		c.BigQuery.ProjectID = project
	}
	if level := os.Getenv("AGRITOOL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetReadTimeout returns the HTTP read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout returns the HTTP write timeout. It must exceed the model
// timeout, otherwise long advisories are cut off mid-response.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 90*time.Second)
}

// GetIdleTimeout returns the HTTP idle timeout.
func (c *Config) GetIdleTimeout() time.Duration {
	return parseDuration(c.Server.IdleTimeout, 60*time.Second)
}

// GetModelTimeout returns the per-call timeout for the generative model.
func (c *Config) GetModelTimeout() time.Duration {
	return parseDuration(c.Gemini.Timeout, 60*time.Second)
}

// GetWeatherTimeout returns the weather API timeout.
func (c *Config) GetWeatherTimeout() time.Duration {
	return parseDuration(c.Weather.Timeout, 10*time.Second)
}

// GetGeoTimeout returns the geolocation lookup timeout.
func (c *Config) GetGeoTimeout() time.Duration {
	return parseDuration(c.Geo.Timeout, 5*time.Second)
}

// GetListenTimeout returns how long transcription may wait for speech.
func (c *Config) GetListenTimeout() time.Duration {
	return parseDuration(c.Speech.ListenTimeout, 3*time.Second)
}

// GetPhraseLimit returns the longest phrase accepted for transcription.
func (c *Config) GetPhraseLimit() time.Duration {
	return parseDuration(c.Speech.PhraseLimit, 6*time.Second)
}

// GetSessionTTL returns how long an idle session survives.
func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.Session.TTL, 12*time.Hour)
}
