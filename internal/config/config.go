package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Model      ModelConfig      `mapstructure:"model"`
	Preprocess PreprocessConfig `mapstructure:"preprocess"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// MongoConfig holds the credential store connection settings.
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// ModelConfig holds the inference backend settings.
type ModelConfig struct {
	Path       string `mapstructure:"path"`
	InputName  string `mapstructure:"input_name"`
	OutputName string `mapstructure:"output_name"`
	ImageSize  int    `mapstructure:"image_size"`

	// MaxConcurrent bounds simultaneous inference invocations.
	MaxConcurrent int64 `mapstructure:"max_concurrent"`
}

// PreprocessConfig holds the image preprocessing settings.
type PreprocessConfig struct {
	FallbackScaling bool `mapstructure:"fallback_scaling"`
}

// Load loads the configuration from a file and environment variables.
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix("skindiag")
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	vip.SetDefault("server.port", 8080)
	vip.SetDefault("mongo.database", "Users")
	vip.SetDefault("mongo.collection", "Users-API-Keys")
	vip.SetDefault("model.path", "models/skin_diagnosis.onnx")
	vip.SetDefault("model.input_name", "input")
	vip.SetDefault("model.output_name", "output_0")
	vip.SetDefault("model.image_size", 300)
	vip.SetDefault("model.max_concurrent", int64(runtime.NumCPU()))
	vip.SetDefault("preprocess.fallback_scaling", false)

	if err := vip.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Mongo.URI == "" {
		return nil, fmt.Errorf("mongo.uri is required")
	}

	return &cfg, nil
}
