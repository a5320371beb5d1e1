// Package core holds process-wide configuration and shared helpers.
package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Engine names accepted by IMAGEGEN_ENGINE.
const (
	EngineProcedural = "procedural"
	EngineOpenAI     = "openai"
	EngineSD         = "sd"
)

// Defaults for zero-config local use.
const (
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 8501
	DefaultOutputDir         = "outputs"
	DefaultEngine            = EngineProcedural
	DefaultImageLLMURL       = "https://api.openai.com/v1"
	DefaultOpenAIImageModel  = "dall-e-2"
	DefaultOpenAIImageSize   = "1024x1024"
	DefaultAzureAPIVersion   = "2024-02-15-preview"
	DefaultPreviewImageSize  = 512
	DefaultHistoryDBPath     = "data/history.db"
	DefaultLogFile           = "app.log"
	DefaultGenerationTimeout = 300 * time.Second
)

// Config holds all configuration values.
type Config struct {
	// Server
	Host string
	Port int

	// Output root; each run gets a timestamped subdirectory.
	OutputDir string

	// Engine selection: procedural, openai or sd.
	Engine string

	// OpenAI-compatible image API (also Azure OpenAI).
	OpenAIAPIKey          string
	ImageLLMURL           string
	OpenAIImageModel      string
	OpenAIImageSize       string
	AzureOpenAIDeployment string
	AzureOpenAIAPIVersion string
	AllowSelfSignedCerts  bool

	// Local stable-diffusion model.
	SDModelPath string

	// Output size of the procedural and local engines.
	PreviewImageSize int

	// Run history database; empty disables history.
	HistoryDBPath string
	// Runs older than this many days are pruned; 0 keeps them forever.
	HistoryRetentionDays int

	// Optional password protecting the web UI.
	WebUIPassword string

	// Logging
	DevMode  bool
	LogLevel string
	LogFile  string

	// GenerationTimeout bounds a single engine call.
	GenerationTimeout time.Duration
}

// fileConfig mirrors Config for the optional YAML file. Keys are the
// lower-case environment variable names.
type fileConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	OutputDir                string `yaml:"output_dir"`
	Engine                   string `yaml:"imagegen_engine"`
	ImageLLMURL              string `yaml:"image_llm_url"`
	OpenAIImageModel         string `yaml:"openai_image_model"`
	OpenAIImageSize          string `yaml:"openai_image_size"`
	AzureOpenAIDeployment    string `yaml:"azure_openai_deployment"`
	AzureOpenAIAPIVersion    string `yaml:"azure_openai_api_version"`
	AllowSelfSignedCerts     bool   `yaml:"allow_self_signed_certs"`
	SDModelPath              string `yaml:"sd_model_path"`
	PreviewImageSize         int    `yaml:"preview_image_size"`
	HistoryDBPath            string `yaml:"history_db_path"`
	HistoryRetentionDays     int    `yaml:"history_retention_days"`
	DevMode                  bool   `yaml:"dev_mode"`
	LogLevel                 string `yaml:"log_level"`
	LogFile                  string `yaml:"log_file"`
	GenerationTimeoutSeconds int    `yaml:"generation_timeout_seconds"`
}

// LoadEnvFile loads path (normally ".env") into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadConfig builds the configuration from defaults, then the YAML file
// named by IMAGEGEN_CONFIG (if set), then environment variables. Secrets
// (OPENAI_API_KEY, WEBUI_PASSWORD) are read from the environment only.
//
// LoadConfig does not validate ranges; call Validate for that.
func LoadConfig() (*Config, error) {
	fc := fileConfig{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		OutputDir:                DefaultOutputDir,
		Engine:                   DefaultEngine,
		ImageLLMURL:              DefaultImageLLMURL,
		OpenAIImageModel:         DefaultOpenAIImageModel,
		OpenAIImageSize:          DefaultOpenAIImageSize,
		AzureOpenAIAPIVersion:    DefaultAzureAPIVersion,
		PreviewImageSize:         DefaultPreviewImageSize,
		HistoryDBPath:            DefaultHistoryDBPath,
		LogFile:                  DefaultLogFile,
		GenerationTimeoutSeconds: int(DefaultGenerationTimeout / time.Second),
	}

	if path := os.Getenv("IMAGEGEN_CONFIG"); path != "" {
		if err := loadYAMLFile(path, &fc); err != nil {
			return nil, err
		}
	}

	historyDB := fc.HistoryDBPath
	if v, ok := os.LookupEnv("HISTORY_DB_PATH"); ok {
		historyDB = v
	}

	cfg := &Config{
		Host:                  GetEnvOrDefault("HOST", fc.Host),
		Port:                  ParseIntEnv("PORT", fc.Port),
		OutputDir:             GetEnvOrDefault("OUTPUT_DIR", fc.OutputDir),
		Engine:                strings.ToLower(GetEnvOrDefault("IMAGEGEN_ENGINE", fc.Engine)),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		ImageLLMURL:           GetEnvOrDefault("IMAGE_LLM_URL", fc.ImageLLMURL),
		OpenAIImageModel:      GetEnvOrDefault("OPENAI_IMAGE_MODEL", fc.OpenAIImageModel),
		OpenAIImageSize:       GetEnvOrDefault("OPENAI_IMAGE_SIZE", fc.OpenAIImageSize),
		AzureOpenAIDeployment: GetEnvOrDefault("AZURE_OPENAI_DEPLOYMENT", fc.AzureOpenAIDeployment),
		AzureOpenAIAPIVersion: GetEnvOrDefault("AZURE_OPENAI_API_VERSION", fc.AzureOpenAIAPIVersion),
		AllowSelfSignedCerts:  ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", fc.AllowSelfSignedCerts),
		SDModelPath:           GetEnvOrDefault("SD_MODEL_PATH", fc.SDModelPath),
		PreviewImageSize:      ParseIntEnv("PREVIEW_IMAGE_SIZE", fc.PreviewImageSize),
		HistoryDBPath:         historyDB,
		HistoryRetentionDays:  ParseIntEnv("HISTORY_RETENTION_DAYS", fc.HistoryRetentionDays),
		WebUIPassword:         os.Getenv("WEBUI_PASSWORD"),
		DevMode:               ParseBoolEnv("DEV_MODE", fc.DevMode),
		LogLevel:              GetEnvOrDefault("LOG_LEVEL", fc.LogLevel),
		LogFile:               GetEnvOrDefault("LOG_FILE", fc.LogFile),
		GenerationTimeout:     ParseDurationEnv("GENERATION_TIMEOUT_SECONDS", time.Duration(fc.GenerationTimeoutSeconds)*time.Second),
	}

	return cfg, nil
}

func loadYAMLFile(path string, fc *fileConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ErrConfigFile(path, err)
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return ErrConfigFile(path, err)
	}
	return nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Port < 1 || c.Port > 65535 {
		result = multierror.Append(result, ErrInvalidValue("PORT", c.Port, "must be between 1 and 65535"))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		result = multierror.Append(result, ErrMissingConfig("OUTPUT_DIR", "directory for generated images"))
	}
	if c.PreviewImageSize < 64 || c.PreviewImageSize > 2048 || c.PreviewImageSize%8 != 0 {
		result = multierror.Append(result, ErrInvalidValue("PREVIEW_IMAGE_SIZE", c.PreviewImageSize, "must be a multiple of 8 between 64 and 2048"))
	}
	if c.HistoryRetentionDays < 0 {
		result = multierror.Append(result, ErrInvalidValue("HISTORY_RETENTION_DAYS", c.HistoryRetentionDays, "must not be negative"))
	}
	if c.GenerationTimeout <= 0 {
		result = multierror.Append(result, ErrInvalidValue("GENERATION_TIMEOUT_SECONDS", c.GenerationTimeout, "must be positive"))
	}

	switch c.Engine {
	case EngineProcedural:
	case EngineOpenAI:
		if c.OpenAIAPIKey == "" {
			result = multierror.Append(result, ErrMissingAuth(EngineOpenAI))
		}
	case EngineSD:
		if c.SDModelPath == "" {
			result = multierror.Append(result, ErrMissingConfig("SD_MODEL_PATH", "path to a .safetensors or .ckpt model"))
		}
	default:
		result = multierror.Append(result, ErrInvalidValue("IMAGEGEN_ENGINE", c.Engine,
			fmt.Sprintf("must be one of %s, %s, %s", EngineProcedural, EngineOpenAI, EngineSD)))
	}

	return result.ErrorOrNil()
}

// Addr returns the listen address host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HistoryEnabled reports whether run history is persisted.
func (c *Config) HistoryEnabled() bool {
	return c.HistoryDBPath != ""
}

// AuthEnabled reports whether the web UI requires a password.
func (c *Config) AuthEnabled() bool {
	return c.WebUIPassword != ""
}

// GetHTTPClient returns an HTTP client with the given timeout and the
// configured TLS settings.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg != nil && cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}
