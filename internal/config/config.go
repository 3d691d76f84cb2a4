package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Data struct {
		// Dir holds the model bundle, metadata and history logs.
		Dir string `yaml:"dir"`
		// FeedbackDB is the sqlite file for operator-verified records.
		FeedbackDB string `yaml:"feedback_db"`
	} `yaml:"data"`

	Registry struct {
		// Path to a local recipients JSON export. Ignored when URL is set.
		Path string `yaml:"path"`
		// URL of a remote registry service exposing /recipients.
		URL string `yaml:"url"`
	} `yaml:"registry"`

	Training struct {
		// DefaultSamples is the synthetic sample count used when a retrain
		// request does not specify one.
		DefaultSamples int `yaml:"default_samples"`
	} `yaml:"training"`
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Set defaults
	if config.Server.Port == "" {
		config.Server.Port = "5001"
	}

	if config.Data.Dir == "" {
		config.Data.Dir = "./data"
	}

	if config.Data.FeedbackDB == "" {
		config.Data.FeedbackDB = "./data/saved_family_data.db"
	}

	if config.Training.DefaultSamples == 0 {
		config.Training.DefaultSamples = 5000
	}

	return config, nil
}
