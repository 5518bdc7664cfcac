package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// DefaultDatasetPath identifies the retail transactions dataset that the
// pipeline consumes when no other path is given.
const DefaultDatasetPath = "carrie1/ecommerce-data"

// Config represents the complete pipeline configuration
type Config struct {
	Source        SourceConfig        `yaml:"source" envconfig:"SOURCE"`
	FeatureStore  FeatureStoreConfig  `yaml:"feature_store" envconfig:"FEATURE_STORE"`
	OfflineStore  OfflineStoreConfig  `yaml:"offline_store" envconfig:"OFFLINE_STORE"`
	Transform     TransformConfig     `yaml:"transform" envconfig:"TRANSFORM"`
	Logging       LoggingConfig       `yaml:"logging" envconfig:"LOGGING"`
	Observability ObservabilityConfig `yaml:"observability" envconfig:"OBSERVABILITY"`
	Paths         PathsConfig         `yaml:"paths" envconfig:"PATHS"`
}

// SourceConfig describes where raw transaction archives are downloaded from
// and how aggressively the downloader may hit the source.
type SourceConfig struct {
	BaseURL           string  `yaml:"base_url" envconfig:"BASE_URL" default:"https://www.kaggle.com/api/v1/datasets/download" validate:"required,url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" default:"1" validate:"gt=0"`
	Burst             int     `yaml:"burst" envconfig:"BURST" default:"1" validate:"gte=1"`
}

// FeatureStoreConfig describes the remote feature store that receives the
// validated daily feature table.
type FeatureStoreConfig struct {
	BaseURL     string `yaml:"base_url" envconfig:"BASE_URL" default:"http://localhost:8620" validate:"required,url"`
	APIKey      string `yaml:"api_key" envconfig:"API_KEY"`
	Project     string `yaml:"project" envconfig:"PROJECT" default:"ecommerce" validate:"required"`
	GroupName   string `yaml:"group_name" envconfig:"GROUP_NAME" default:"e_commerce_data" validate:"required"`
	Description string `yaml:"description" envconfig:"DESCRIPTION" default:"Online E-commerce data ranging from 2011-2012"`
}

// OfflineStoreConfig describes the optional Postgres sink. An empty DSN
// disables it.
type OfflineStoreConfig struct {
	DSN   string `yaml:"dsn" envconfig:"DSN"`
	Table string `yaml:"table" envconfig:"TABLE" default:"e_commerce_features"`
}

// TransformConfig controls the cleaning and aggregation stage. Countries is
// both the allow-list and the code enumeration: the code of a country is its
// position in the list. DeriveCodes switches back to deriving codes from
// first-seen order in the filtered data, which matches the historical
// behavior but is not stable across runs.
type TransformConfig struct {
	Countries     []string `yaml:"countries" envconfig:"COUNTRIES" default:"United Kingdom,France,Germany" validate:"max=128,dive,min=1"`
	DeriveCodes   bool     `yaml:"derive_codes" envconfig:"DERIVE_CODES" default:"false"`
	IQRMultiplier float64  `yaml:"iqr_multiplier" envconfig:"IQR_MULTIPLIER" default:"3" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/pipeline.log"`
}

// ObservabilityConfig controls tracing and metrics export.
type ObservabilityConfig struct {
	EnableTracing bool    `yaml:"enable_tracing" envconfig:"ENABLE_TRACING" default:"false"`
	EnableMetrics bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS" default:"true"`
	SampleRatio   float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1.0" validate:"gte=0,lte=1"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	CacheDir  string `yaml:"cache_dir" envconfig:"CACHE_DIR" default:"output/data"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"output"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables (prefix ECOMFP) take precedence.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("ECOMFP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := findConfigFile(); configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration with the shared validator.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// MetadataPath returns where the run metadata side file is written.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.Paths.OutputDir, "feature_pipeline_metadata.json")
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence for
// fields the environment left unset, envconfig defaults already filled them,
// so only explicitly empty fields fall back to the file).
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Source.BaseURL == "" {
		envConfig.Source.BaseURL = fileConfig.Source.BaseURL
	}
	if envConfig.FeatureStore.BaseURL == "" {
		envConfig.FeatureStore.BaseURL = fileConfig.FeatureStore.BaseURL
	}
	if envConfig.FeatureStore.APIKey == "" {
		envConfig.FeatureStore.APIKey = fileConfig.FeatureStore.APIKey
	}
	if envConfig.OfflineStore.DSN == "" {
		envConfig.OfflineStore.DSN = fileConfig.OfflineStore.DSN
	}
	if len(envConfig.Transform.Countries) == 0 {
		envConfig.Transform.Countries = fileConfig.Transform.Countries
	}
	if envConfig.Logging.FilePath == "" {
		envConfig.Logging.FilePath = fileConfig.Logging.FilePath
	}
	if envConfig.Paths.CacheDir == "" {
		envConfig.Paths.CacheDir = fileConfig.Paths.CacheDir
	}
	if envConfig.Paths.OutputDir == "" {
		envConfig.Paths.OutputDir = fileConfig.Paths.OutputDir
	}

	return envConfig
}

// findConfigFile returns the path to the config file, if one exists
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns the default configuration used when no environment or
// file overrides are present.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:           "https://www.kaggle.com/api/v1/datasets/download",
			RequestsPerSecond: 1,
			Burst:             1,
		},
		FeatureStore: FeatureStoreConfig{
			BaseURL:     "http://localhost:8620",
			Project:     "ecommerce",
			GroupName:   "e_commerce_data",
			Description: "Online E-commerce data ranging from 2011-2012",
		},
		OfflineStore: OfflineStoreConfig{
			Table: "e_commerce_features",
		},
		Transform: TransformConfig{
			Countries:     []string{"United Kingdom", "France", "Germany"},
			IQRMultiplier: 3,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			FilePath: "logs/pipeline.log",
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			SampleRatio:   1.0,
		},
		Paths: PathsConfig{
			CacheDir:  "output/data",
			OutputDir: "output",
		},
	}
}
